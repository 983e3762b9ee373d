package partners

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

type Service interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Partner, int, error)
	Get(ctx context.Context, id int64) (Partner, error)
	Create(ctx context.Context, p Partner) (Partner, error)
	Update(ctx context.Context, id int64, p Partner) (Partner, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, filters shared.ListFilters) ([]Partner, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *service) Get(ctx context.Context, id int64) (Partner, error) {
	if id <= 0 {
		return Partner{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Create(ctx context.Context, p Partner) (Partner, error) {
	if err := validatePartner(&p); err != nil {
		return Partner{}, err
	}
	return s.repo.Create(ctx, p)
}

func (s *service) Update(ctx context.Context, id int64, p Partner) (Partner, error) {
	if id <= 0 {
		return Partner{}, shared.ErrInvalidID
	}
	if err := validatePartner(&p); err != nil {
		return Partner{}, err
	}
	if err := s.repo.Update(ctx, id, p); err != nil {
		return Partner{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func validatePartner(p *Partner) error {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Code == "" {
		return fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return nil
}
