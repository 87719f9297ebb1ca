package services

import (
	"context"

	"github.com/mycolab/apiserver/types"
)

// MaterialRepository defines persistence operations for raw materials.
type MaterialRepository interface {
	List(ctx context.Context) ([]types.RawMaterial, error)
	Get(ctx context.Context, id int) (types.RawMaterial, error)
	Create(ctx context.Context, material types.RawMaterial) (types.RawMaterial, error)
	Update(ctx context.Context, material types.RawMaterial) (types.RawMaterial, error)
	Delete(ctx context.Context, id int) error
	GetInventoryLog(ctx context.Context, itemID int) (types.InventoryLog, error)
}

// MaterialService encapsulates raw-material use-cases.
type MaterialService struct {
	repo MaterialRepository
}

func NewMaterialService(repo MaterialRepository) *MaterialService {
	return &MaterialService{repo: repo}
}

func (s *MaterialService) List(ctx context.Context) ([]types.RawMaterial, error) {
	return s.repo.List(ctx)
}

func (s *MaterialService) Get(ctx context.Context, id int) (types.RawMaterial, error) {
	return s.repo.Get(ctx, id)
}

func (s *MaterialService) Create(ctx context.Context, material types.RawMaterial) (types.RawMaterial, error) {
	return s.repo.Create(ctx, material)
}

func (s *MaterialService) Update(ctx context.Context, material types.RawMaterial) (types.RawMaterial, error) {
	return s.repo.Update(ctx, material)
}

func (s *MaterialService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *MaterialService) GetInventoryLog(ctx context.Context, itemID int) (types.InventoryLog, error) {
	return s.repo.GetInventoryLog(ctx, itemID)
}
