package warehouses

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

type Service interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	Create(ctx context.Context, wh Warehouse) (Warehouse, error)
	Update(ctx context.Context, id int64, wh Warehouse) (Warehouse, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *service) Get(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Create(ctx context.Context, wh Warehouse) (Warehouse, error) {
	if err := validateWarehouse(&wh); err != nil {
		return Warehouse{}, err
	}
	return s.repo.Create(ctx, wh)
}

func (s *service) Update(ctx context.Context, id int64, wh Warehouse) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, shared.ErrInvalidID
	}
	if err := validateWarehouse(&wh); err != nil {
		return Warehouse{}, err
	}
	if err := s.repo.Update(ctx, id, wh); err != nil {
		return Warehouse{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func validateWarehouse(wh *Warehouse) error {
	wh.Code = strings.ToUpper(strings.TrimSpace(wh.Code))
	wh.Name = strings.TrimSpace(wh.Name)
	wh.Address = strings.TrimSpace(wh.Address)
	if wh.Code == "" {
		return fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if wh.Name == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return nil
}
