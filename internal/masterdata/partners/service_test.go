package partners

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

type fakeRepo struct {
	byID   map[int64]Partner
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[int64]Partner{}, nextID: 1}
}

func (f *fakeRepo) List(_ context.Context, filters shared.ListFilters) ([]Partner, int, error) {
	filters = filters.Normalize()
	var out []Partner
	for _, p := range f.byID {
		if filters.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Partner, error) {
	p, ok := f.byID[id]
	if !ok {
		return Partner{}, shared.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Create(_ context.Context, p Partner) (Partner, error) {
	for _, existing := range f.byID {
		if existing.Code == p.Code {
			return Partner{}, shared.ErrDuplicate
		}
	}
	p.ID = f.nextID
	f.nextID++
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, p Partner) error {
	if _, ok := f.byID[id]; !ok {
		return shared.ErrNotFound
	}
	p.ID = id
	f.byID[id] = p
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func TestCreateNormalizesCode(t *testing.T) {
	svc := NewService(newFakeRepo())

	created, err := svc.Create(context.Background(), Partner{Code: "  sup-01 ", Name: " Acme Foods "})
	require.NoError(t, err)
	require.Equal(t, "SUP-01", created.Code)
	require.Equal(t, "Acme Foods", created.Name)
}

func TestCreateRequiresCodeAndName(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), Partner{Name: "No Code"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(context.Background(), Partner{Code: "C1"})
	require.ErrorIs(t, err, shared.ErrRequiredField)
}

func TestCreateDuplicateCode(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), Partner{Code: "SUP-01", Name: "First"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Partner{Code: "SUP-01", Name: "Second"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateUnknownPartner(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Update(context.Background(), 404, Partner{Code: "C1", Name: "X"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetRejectsInvalidID(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
