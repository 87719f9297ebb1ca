package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mycolab/apiserver/internal/services"
	"github.com/mycolab/apiserver/internal/store"
	"github.com/mycolab/apiserver/types"
)

// ReceiptHandler issues signed upload grants and lists a user's
// receipt entries. The image bytes never pass through this server.
type ReceiptHandler struct {
	coordinator *services.UploadCoordinator
}

func NewReceiptHandler(coordinator *services.UploadCoordinator) *ReceiptHandler {
	return &ReceiptHandler{coordinator: coordinator}
}

// ReceiptRouter registers receipt routes on the given router.
func ReceiptRouter(r chi.Router, handler *ReceiptHandler) {
	r.Get("/", handler.ListReceipts)
	r.Get("/{receiptID}", handler.GetReceipt)
	r.Post("/get-signed-upload-url", handler.GetSignedUploadURL)
}

type SignedUploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// GetSignedUploadURL mints a time-limited PUT URL so the client can
// upload a receipt image directly to object storage.
func (h *ReceiptHandler) GetSignedUploadURL(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	var req SignedUploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	grant, err := h.coordinator.IssueUploadGrant(r.Context(), identity.UserID, req.Filename, req.ContentType)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, "Missing filename")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to sign upload url")
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

// GetReceipt returns one of the caller's receipt entries. Entries
// belonging to other users are reported as missing.
func (h *ReceiptHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	id, err := parseIDParam(r, "receiptID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.coordinator.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Receipt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch receipt")
		return
	}
	if receipt.UserID != identity.UserID {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]types.ReceiptEntry{"receipt_entry": receipt})
}

func (h *ReceiptHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	receipts, err := h.coordinator.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list receipts")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]types.ReceiptEntry{"receipt_entries": receipts})
}
