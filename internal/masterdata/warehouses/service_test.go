package warehouses

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

type fakeRepo struct {
	byID   map[int64]Warehouse
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[int64]Warehouse{}, nextID: 1}
}

func (f *fakeRepo) List(_ context.Context, _ shared.ListFilters) ([]Warehouse, int, error) {
	var out []Warehouse
	for _, wh := range f.byID {
		out = append(out, wh)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Warehouse, error) {
	wh, ok := f.byID[id]
	if !ok {
		return Warehouse{}, shared.ErrNotFound
	}
	return wh, nil
}

func (f *fakeRepo) Create(_ context.Context, wh Warehouse) (Warehouse, error) {
	for _, existing := range f.byID {
		if existing.Code == wh.Code {
			return Warehouse{}, shared.ErrDuplicate
		}
	}
	wh.ID = f.nextID
	f.nextID++
	f.byID[wh.ID] = wh
	return wh, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, wh Warehouse) error {
	if _, ok := f.byID[id]; !ok {
		return shared.ErrNotFound
	}
	wh.ID = id
	f.byID[id] = wh
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

	created, err := svc.Create(context.Background(), Warehouse{Code: "  wh-main ", Name: " Main Warehouse ", Address: " Dock 4 "})
	require.NoError(t, err)
	require.Equal(t, "WH-MAIN", created.Code)
	require.Equal(t, "Main Warehouse", created.Name)
	require.Equal(t, "Dock 4", created.Address)
}

func TestCreateRequiresCodeAndName(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), Warehouse{Name: "No Code"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(context.Background(), Warehouse{Code: "WH1"})
	require.ErrorIs(t, err, shared.ErrRequiredField)
}

func TestCreateDuplicateCode(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), Warehouse{Code: "WH-MAIN", Name: "First"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Warehouse{Code: "WH-MAIN", Name: "Second"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateMissingWarehouse(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Update(context.Background(), 404, Warehouse{Code: "WH1", Name: "X"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetRejectsInvalidID(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
