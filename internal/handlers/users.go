package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mycolab/apiserver/internal/services"
	"github.com/mycolab/apiserver/internal/store"
	"github.com/mycolab/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler provides CRUD handlers for user accounts. Registration
// and profile updates arrive as form bodies.
type UserHandler struct {
	userService     *services.UserService
	adminSignupCode string
}

func NewUserHandler(userService *services.UserService, adminSignupCode string) *UserHandler {
	return &UserHandler{
		userService:     userService,
		adminSignupCode: adminSignupCode,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Get("/", handler.ListUsers)
	r.Post("/", handler.RegisterUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]types.User{"users": users})
}

func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "Missing username or password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	// Admin rights are granted only when the signup code is supplied
	// in the is_admin field.
	isAdmin := r.PostFormValue("is_admin") == h.adminSignupCode

	_, err = h.userService.Create(r.Context(), types.User{
		Username:     username,
		PasswordHash: string(hashed),
		IsAdmin:      isAdmin,
		Email:        r.PostFormValue("email"),
		Phone:        r.PostFormValue("phone"),
		Provider:     "local",
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "User already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"msg": "User created"})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]types.User{"user": user})
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	isAdmin, _ := strconv.ParseBool(r.PostFormValue("is_admin"))
	_, err = h.userService.Update(r.Context(), types.User{
		ID:       id,
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Phone:    r.PostFormValue("phone"),
		IsAdmin:  isAdmin,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrDuplicate):
			writeError(w, http.StatusBadRequest, "User already exists")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update user")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrHasReferences):
			writeError(w, http.StatusConflict, "User still has tasks, purchases, or receipts")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to delete user")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
