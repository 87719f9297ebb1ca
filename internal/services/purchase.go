package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mycolab/apiserver/types"
)

// PurchaseRepository defines persistence operations for purchase logs.
type PurchaseRepository interface {
	Ingest(ctx context.Context, in types.PurchaseIngestion) (types.IngestionResult, error)
	List(ctx context.Context) ([]types.PurchaseLog, error)
	Get(ctx context.Context, id int) (types.PurchaseLog, error)
	Update(ctx context.Context, log types.PurchaseLog) (types.PurchaseLog, error)
	Delete(ctx context.Context, id int) error
}

// EventPublisher publishes inventory events to the configured broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ValidationError reports a missing or malformed required payload field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid field: %s", e.Field)
}

// IngestPurchaseInput is the user-submitted purchase event. Purchase and
// inventory quantities are recorded independently; no unit conversion is
// performed between them.
type IngestPurchaseInput struct {
	Item        string `json:"item"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`

	Brand        string `json:"brand"`
	PurchaseDate string `json:"purchaseDate"`

	PurchaseQuantity  float64 `json:"purchaseQuantity"`
	PurchaseUnit      string  `json:"purchaseUnit"`
	InventoryQuantity float64 `json:"inventoryQuantity"`
	InventoryUnit     string  `json:"inventoryUnit"`

	// Cost is a pointer so an absent cost is distinguishable from a
	// zero-cost purchase.
	Cost  *float64 `json:"cost"`
	Notes string   `json:"notes"`

	Vendor        string `json:"vendor"`
	VendorPhone   string `json:"vendorPhone"`
	VendorEmail   string `json:"vendorEmail"`
	VendorWebsite string `json:"vendorWebsite"`

	Filename    string `json:"filename"`
	ImageURL    string `json:"imageUrl"`
	ReceiptMemo string `json:"receiptMemo"`
}

// PurchaseService encapsulates the purchase ingestion workflow and the
// plain purchase-log use-cases.
type PurchaseService struct {
	repo      PurchaseRepository
	publisher EventPublisher
	channel   string
}

func NewPurchaseService(repo PurchaseRepository, publisher EventPublisher, channel string) *PurchaseService {
	return &PurchaseService{
		repo:      repo,
		publisher: publisher,
		channel:   channel,
	}
}

// Ingest validates the payload and records the purchase event as one
// atomic transaction. On success an inventory event is published
// best-effort.
func (s *PurchaseService) Ingest(ctx context.Context, userID int, input IngestPurchaseInput) (types.IngestionResult, error) {
	in, err := resolveIngestion(userID, input)
	if err != nil {
		return types.IngestionResult{}, err
	}

	result, err := s.repo.Ingest(ctx, in)
	if err != nil {
		return types.IngestionResult{}, err
	}

	s.publishInventoryEvent(ctx, in, result)
	return result, nil
}

func resolveIngestion(userID int, input IngestPurchaseInput) (types.PurchaseIngestion, error) {
	required := []struct {
		field string
		ok    bool
	}{
		{"item", input.Item != ""},
		{"brand", input.Brand != ""},
		{"purchaseDate", input.PurchaseDate != ""},
		{"purchaseQuantity", input.PurchaseQuantity > 0},
		{"purchaseUnit", input.PurchaseUnit != ""},
		{"inventoryQuantity", input.InventoryQuantity > 0},
		{"inventoryUnit", input.InventoryUnit != ""},
		{"cost", input.Cost != nil && *input.Cost >= 0},
		{"vendor", input.Vendor != ""},
		{"filename", input.Filename != ""},
		{"imageUrl", input.ImageURL != ""},
	}
	for _, check := range required {
		if !check.ok {
			return types.PurchaseIngestion{}, &ValidationError{Field: check.field}
		}
	}

	purchaseDate, err := time.Parse(time.RFC3339Nano, input.PurchaseDate)
	if err != nil {
		return types.PurchaseIngestion{}, &ValidationError{Field: "purchaseDate"}
	}

	return types.PurchaseIngestion{
		UserID:            userID,
		ItemName:          input.Item,
		ItemCategory:      input.Category,
		ItemSubcategory:   input.Subcategory,
		Brand:             input.Brand,
		PurchaseDate:      purchaseDate,
		PurchaseQuantity:  input.PurchaseQuantity,
		PurchaseUnit:      input.PurchaseUnit,
		InventoryQuantity: input.InventoryQuantity,
		InventoryUnit:     input.InventoryUnit,
		Cost:              *input.Cost,
		Notes:             input.Notes,
		VendorName:        input.Vendor,
		VendorPhone:       input.VendorPhone,
		VendorEmail:       input.VendorEmail,
		VendorWebsite:     input.VendorWebsite,
		ReceiptFilename:   input.Filename,
		ReceiptImageURL:   input.ImageURL,
		ReceiptMemo:       input.ReceiptMemo,
	}, nil
}

// publishInventoryEvent notifies the broker that a balance changed.
// Publishing never fails the request; the transaction is already
// committed.
func (s *PurchaseService) publishInventoryEvent(ctx context.Context, in types.PurchaseIngestion, result types.IngestionResult) {
	if s.publisher == nil {
		return
	}

	event := struct {
		PurchaseLogID int     `json:"purchase_log_id"`
		ItemID        int     `json:"item_id"`
		Item          string  `json:"item"`
		AmountAdded   float64 `json:"amount_added"`
		Unit          string  `json:"unit"`
		AmountOnHand  float64 `json:"amount_on_hand"`
	}{
		PurchaseLogID: result.PurchaseLog.ID,
		ItemID:        result.PurchaseLog.ItemID,
		Item:          in.ItemName,
		AmountAdded:   in.InventoryQuantity,
		Unit:          in.InventoryUnit,
		AmountOnHand:  result.AmountOnHand,
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal inventory event", "error", err)
		return
	}

	if _, err := s.publisher.Publish(ctx, s.channel, data, map[string]string{"item": in.ItemName}); err != nil {
		slog.Error("publish inventory event", "channel", s.channel, "error", err)
	}
}

func (s *PurchaseService) List(ctx context.Context) ([]types.PurchaseLog, error) {
	return s.repo.List(ctx)
}

func (s *PurchaseService) Get(ctx context.Context, id int) (types.PurchaseLog, error) {
	return s.repo.Get(ctx, id)
}

func (s *PurchaseService) Update(ctx context.Context, log types.PurchaseLog) (types.PurchaseLog, error) {
	return s.repo.Update(ctx, log)
}

func (s *PurchaseService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
