package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

type Service interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	GetByCode(ctx context.Context, code string) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id int64, item Item) (Item, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *service) GetByCode(ctx context.Context, code string) (Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Item{}, fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	return s.repo.GetByCode(ctx, code)
}

func (s *service) Create(ctx context.Context, item Item) (Item, error) {
	if err := validateItem(&item); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

func (s *service) Update(ctx context.Context, id int64, item Item) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrInvalidID
	}
	if err := validateItem(&item); err != nil {
		return Item{}, err
	}
	if err := s.repo.Update(ctx, id, item); err != nil {
		return Item{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func validateItem(item *Item) error {
	item.Code = strings.ToUpper(strings.TrimSpace(item.Code))
	item.Name = strings.TrimSpace(item.Name)
	item.Unit = strings.TrimSpace(item.Unit)
	item.Category = strings.TrimSpace(item.Category)
	if item.Code == "" {
		return fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if item.Name == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if item.Unit == "" {
		return fmt.Errorf("%w: unit", shared.ErrRequiredField)
	}
	if item.PurchasePrice.IsNegative() || item.SalePrice.IsNegative() {
		return errors.Join(shared.ErrValidation, errors.New("prices must not be negative"))
	}
	return nil
}
