package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mycolab/apiserver/internal/services"
	"github.com/mycolab/apiserver/internal/store"
	"github.com/mycolab/apiserver/types"
)

// MaterialHandler provides CRUD handlers for raw materials.
type MaterialHandler struct {
	materialService *services.MaterialService
}

func NewMaterialHandler(materialService *services.MaterialService) *MaterialHandler {
	return &MaterialHandler{materialService: materialService}
}

// MaterialRouter registers raw-material routes on the given router.
func MaterialRouter(r chi.Router, handler *MaterialHandler) {
	r.Get("/", handler.ListMaterials)
	r.Post("/", handler.RegisterMaterial)
	r.Route("/{materialID}", func(r chi.Router) {
		r.Get("/", handler.GetMaterial)
		r.Put("/", handler.UpdateMaterial)
		r.Delete("/", handler.DeleteMaterial)
		r.Get("/inventory-log", handler.GetInventoryLog)
	})
}

func (h *MaterialHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.materialService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list raw materials")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]types.RawMaterial{"raw_materials": materials})
}

func (h *MaterialHandler) RegisterMaterial(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	name := r.PostFormValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing name")
		return
	}

	_, err := h.materialService.Create(r.Context(), types.RawMaterial{
		Name:        name,
		Category:    r.PostFormValue("category"),
		Subcategory: r.PostFormValue("subcategory"),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "RawMaterial already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create raw material")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"msg": "RawMaterial created"})
}

func (h *MaterialHandler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "materialID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	material, err := h.materialService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "RawMaterial not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch raw material")
		return
	}
	writeJSON(w, http.StatusOK, map[string]types.RawMaterial{"raw_material": material})
}

func (h *MaterialHandler) GetInventoryLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "materialID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log, err := h.materialService.GetInventoryLog(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Inventory log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch inventory log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]types.InventoryLog{"inventory_log": log})
}

func (h *MaterialHandler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "materialID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	_, err = h.materialService.Update(r.Context(), types.RawMaterial{
		ID:          id,
		Name:        r.PostFormValue("name"),
		Category:    r.PostFormValue("category"),
		Subcategory: r.PostFormValue("subcategory"),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "RawMaterial not found")
		case errors.Is(err, store.ErrDuplicate):
			writeError(w, http.StatusBadRequest, "RawMaterial already exists")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update raw material")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteMaterial removes a material and its inventory log. Materials
// with purchase history are protected and the delete is rejected.
func (h *MaterialHandler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "materialID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.materialService.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "RawMaterial not found")
		case errors.Is(err, store.ErrHasReferences):
			writeError(w, http.StatusConflict, "RawMaterial has purchase history")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to delete raw material")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
