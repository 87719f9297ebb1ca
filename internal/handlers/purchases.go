package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mycolab/apiserver/internal/services"
	"github.com/mycolab/apiserver/internal/store"
	"github.com/mycolab/apiserver/types"
)

// PurchaseHandler provides the purchase ingestion endpoint plus plain
// CRUD for existing purchase logs.
type PurchaseHandler struct {
	purchaseService *services.PurchaseService
}

func NewPurchaseHandler(purchaseService *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// PurchaseRouter registers purchase-log routes on the given router.
func PurchaseRouter(r chi.Router, handler *PurchaseHandler) {
	r.Route("/raw-materials", func(r chi.Router) {
		r.Get("/", handler.ListPurchaseLogs)
		r.Post("/", handler.IngestPurchase)
		r.Route("/{purchaseLogID}", func(r chi.Router) {
			r.Get("/", handler.GetPurchaseLog)
			r.Put("/", handler.UpdatePurchaseLog)
			r.Delete("/", handler.DeletePurchaseLog)
		})
	})
}

type UpdatePurchaseLogRequest struct {
	PurchaseDate   string  `json:"purchase_date"`
	Brand          string  `json:"brand"`
	PurchaseAmount float64 `json:"purchase_amount"`
	PurchaseUnit   string  `json:"purchase_unit"`
	Cost           float64 `json:"cost"`
	Notes          string  `json:"notes"`
}

func (h *PurchaseHandler) ListPurchaseLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.purchaseService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list purchase logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]types.PurchaseLog{"raw_material_purchase_logs": logs})
}

// IngestPurchase records one purchase event: vendor and material are
// upserted by name, the inventory balance is updated, and the purchase
// log and receipt entry are created in a single transaction.
func (h *PurchaseHandler) IngestPurchase(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	var input services.IngestPurchaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	result, err := h.purchaseService.Ingest(r.Context(), identity.UserID, input)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record purchase")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *PurchaseHandler) GetPurchaseLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "purchaseLogID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log, err := h.purchaseService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Purchase log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch purchase log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]types.PurchaseLog{"raw_material_purchase_log": log})
}

// UpdatePurchaseLog overwrites descriptive fields of an existing log.
// Inventory balances are not re-derived from edits.
func (h *PurchaseHandler) UpdatePurchaseLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "purchaseLogID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdatePurchaseLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	purchaseDate, err := time.Parse(time.RFC3339Nano, req.PurchaseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase_date timestamp")
		return
	}

	_, err = h.purchaseService.Update(r.Context(), types.PurchaseLog{
		ID:             id,
		PurchaseDate:   purchaseDate,
		Brand:          req.Brand,
		PurchaseAmount: req.PurchaseAmount,
		PurchaseUnit:   req.PurchaseUnit,
		Cost:           req.Cost,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Purchase log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update purchase log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PurchaseHandler) DeletePurchaseLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "purchaseLogID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.purchaseService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Purchase log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete purchase log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
