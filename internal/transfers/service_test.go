package transfers

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockline-wms/stockline/internal/inventory"
)

type memoryRepo struct {
	transfers map[int64]Transfer
	nextID    int64
	nextSeq   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transfers: map[int64]Transfer{}, nextID: 1, nextSeq: 1}
}

func (m *memoryRepo) Create(_ context.Context, t Transfer) (Transfer, error) {
	t.ID = m.nextID
	m.nextID++
	t.DocNumber = fmt.Sprintf("TR%010d", m.nextSeq)
	m.nextSeq++
	t.Status = StatusPending
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	for i := range t.Lines {
		t.Lines[i].ID = int64(i + 1)
		t.Lines[i].TransferID = t.ID
	}
	m.transfers[t.ID] = t
	return t, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Transfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) List(_ context.Context, _ ListFilter) ([]Transfer, int, error) {
	out := make([]Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Decide(ctx context.Context, id int64, d Decision, apply func(context.Context, inventory.TxRepository, Transfer) error) (Transfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	if t.Status != StatusPending {
		return Transfer{}, ErrAlreadyDecided
	}
	if apply != nil {
		if err := apply(ctx, nil, t); err != nil {
			return Transfer{}, err
		}
	}
	now := time.Now()
	t.Status = d.Status
	t.DecidedBy = d.ActorID
	t.DecidedAt = &now
	t.DecisionReason = d.Reason
	m.transfers[id] = t
	return t, nil
}

// fakeStock keeps a toy ledger so tests can check conservation.
type fakeStock struct {
	calls       []inventory.TransferInput
	balances    map[[2]int64]float64 // (warehouse, item) -> qty
	failWith    error
	invalidated int
}

func newFakeStock() *fakeStock {
	return &fakeStock{balances: map[[2]int64]float64{}}
}

func (f *fakeStock) TransferTx(_ context.Context, _ inventory.TxRepository, input inventory.TransferInput) (inventory.TransferResult, error) {
	if f.failWith != nil {
		return inventory.TransferResult{}, f.failWith
	}
	f.calls = append(f.calls, input)
	f.balances[[2]int64{input.SrcWarehouse, input.ItemID}] -= input.Qty
	f.balances[[2]int64{input.DstWarehouse, input.ItemID}] += input.Qty
	return inventory.TransferResult{
		ItemID:             input.ItemID,
		SourceBalance:      f.balances[[2]int64{input.SrcWarehouse, input.ItemID}],
		DestinationBalance: f.balances[[2]int64{input.DstWarehouse, input.ItemID}],
	}, nil
}

func (f *fakeStock) InvalidateOnhand(_ context.Context, _, _ int64) {
	f.invalidated++
}

func newTestService(stock *fakeStock) (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	logger := slog.Default()
	return NewService(logger, repo, stock, nil), repo
}

func pendingTransfer(t *testing.T, svc *Service, lines ...LineInput) Transfer {
	t.Helper()
	if len(lines) == 0 {
		lines = []LineInput{{ItemID: 1, Qty: 5}}
	}
	created, err := svc.Create(context.Background(), CreateInput{
		SourceID:      10,
		DestinationID: 20,
		RequestedBy:   99,
		Lines:         lines,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)
	require.Equal(t, "TR0000000001", created.DocNumber)
	return created
}

func TestCreateRejectsSameWarehouse(t *testing.T) {
	svc, _ := newTestService(newFakeStock())

	_, err := svc.Create(context.Background(), CreateInput{
		SourceID: 10, DestinationID: 10,
		Lines: []LineInput{{ItemID: 1, Qty: 5}},
	})
	require.ErrorIs(t, err, ErrSameWarehouse)
}

func TestCreateRejectsNonPositiveQty(t *testing.T) {
	svc, _ := newTestService(newFakeStock())

	_, err := svc.Create(context.Background(), CreateInput{
		SourceID: 10, DestinationID: 20,
		Lines: []LineInput{{ItemID: 1, Qty: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCreateRejectsEmptyAndDuplicateLines(t *testing.T) {
	svc, _ := newTestService(newFakeStock())

	_, err := svc.Create(context.Background(), CreateInput{SourceID: 10, DestinationID: 20})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = svc.Create(context.Background(), CreateInput{
		SourceID: 10, DestinationID: 20,
		Lines: []LineInput{{ItemID: 1, Qty: 2}, {ItemID: 1, Qty: 3}},
	})
	require.ErrorIs(t, err, ErrDuplicateItem)
}

func TestApprovePostsEveryLineOnce(t *testing.T) {
	stock := newFakeStock()
	stock.balances[[2]int64{10, 1}] = 8
	stock.balances[[2]int64{10, 2}] = 4
	svc, _ := newTestService(stock)
	created := pendingTransfer(t, svc, LineInput{ItemID: 1, Qty: 5}, LineInput{ItemID: 2, Qty: 3})

	res, err := svc.Approve(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, res.Transfer.Status)
	require.EqualValues(t, 7, res.Transfer.DecidedBy)

	require.Len(t, stock.calls, 2)
	require.Equal(t, created.DocNumber, stock.calls[0].Code)
	require.EqualValues(t, 10, stock.calls[0].SrcWarehouse)
	require.EqualValues(t, 20, stock.calls[0].DstWarehouse)

	// conservation per line: source lost exactly what destination gained
	require.Len(t, res.Results, 2)
	require.InDelta(t, 3, res.Results[0].SourceBalance, 1e-9)
	require.InDelta(t, 5, res.Results[0].DestinationBalance, 1e-9)
	require.InDelta(t, 1, res.Results[1].SourceBalance, 1e-9)
	require.InDelta(t, 3, res.Results[1].DestinationBalance, 1e-9)

	// both warehouses invalidated per line
	require.Equal(t, 4, stock.invalidated)
}

func TestDoubleApprovalRefused(t *testing.T) {
	stock := newFakeStock()
	svc, _ := newTestService(stock)
	created := pendingTransfer(t, svc)

	_, err := svc.Approve(context.Background(), created.ID, 7)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), created.ID, 7)
	require.ErrorIs(t, err, ErrAlreadyDecided)
	require.Len(t, stock.calls, 1, "stock must move exactly once")
}

func TestApproveAfterRejectRefused(t *testing.T) {
	stock := newFakeStock()
	svc, _ := newTestService(stock)
	created := pendingTransfer(t, svc)

	rejected, err := svc.Reject(context.Background(), created.ID, 7, "out of season")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "out of season", rejected.DecisionReason)

	_, err = svc.Approve(context.Background(), created.ID, 7)
	require.ErrorIs(t, err, ErrAlreadyDecided)
	require.Empty(t, stock.calls)
}

func TestApproveFailsWhenStockShort(t *testing.T) {
	stock := newFakeStock()
	stock.failWith = inventory.ErrInsufficientStock
	svc, repo := newTestService(stock)
	created := pendingTransfer(t, svc)

	_, err := svc.Approve(context.Background(), created.ID, 7)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	after, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, after.Status, "failed approval must leave the request pending")
}

func TestRejectUnknownTransfer(t *testing.T) {
	svc, _ := newTestService(newFakeStock())

	_, err := svc.Reject(context.Background(), 404, 7, "")
	require.ErrorIs(t, err, ErrNotFound)
}
