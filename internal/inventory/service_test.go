package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	balances map[string]Balance
	entries  []StockEntry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[string]Balance)}
}

func balKey(warehouseID, itemID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, itemID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBalance(ctx context.Context, warehouseID, itemID int64) (Balance, error) {
	if bal, ok := r.balances[balKey(warehouseID, itemID)]; ok {
		return bal, nil
	}
	return Balance{WarehouseID: warehouseID, ItemID: itemID}, nil
}

func (r *memoryRepo) GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockEntry, error) {
	result := []StockEntry{}
	for _, e := range r.entries {
		if e.WarehouseID == filter.WarehouseID && e.ItemID == filter.ItemID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, _ Movement) (int64, error) {
	tx.repo.nextID++
	return tx.repo.nextID, nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, warehouseID, itemID int64) (Balance, error) {
	if bal, ok := tx.repo.balances[balKey(warehouseID, itemID)]; ok {
		return bal, nil
	}
	return Balance{WarehouseID: warehouseID, ItemID: itemID}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[balKey(balance.WarehouseID, balance.ItemID)] = balance
	return nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry StockEntry) error {
	tx.repo.entries = append(tx.repo.entries, entry)
	return nil
}

type staticCatalog map[int64]ItemMeta

func (c staticCatalog) GetItemMeta(ctx context.Context, itemID int64) (ItemMeta, error) {
	meta, ok := c[itemID]
	if !ok {
		return ItemMeta{}, fmt.Errorf("item %d not in catalog", itemID)
	}
	return meta, nil
}

func testCatalog() staticCatalog {
	return staticCatalog{
		1: {Code: "SKU1", Name: "Widget", Category: "Hardware", Unit: "PCS"},
		2: {Code: "SKU2", Name: "Gadget", Category: "Hardware", Unit: "BOX"},
	}
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, testCatalog(), nil, nil, nil, ServiceConfig{})
}

func (r *memoryRepo) lastEntry(t *testing.T) StockEntry {
	t.Helper()
	require.NotEmpty(t, r.entries)
	return r.entries[len(r.entries)-1]
}

func TestInboundThenOutbound(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	entry, err := svc.PostInbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: 10, Note: "PR0000000001"})
	require.NoError(t, err)
	require.InDelta(t, 10.0, entry.BalanceQty, 1e-9)
	require.Equal(t, "SKU1", entry.ItemCode)
	require.Equal(t, MovementIn, entry.Activity)

	entry, err = svc.PostOutbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: 4, Note: "DO0000000001"})
	require.NoError(t, err)
	require.InDelta(t, 6.0, entry.BalanceQty, 1e-9)
	require.InDelta(t, 4.0, entry.OutQty, 1e-9)
}

func TestOutboundInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostInbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: 3})
	require.NoError(t, err)

	_, err = svc.PostOutbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// the failed movement must leave no trace
	bal, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 3.0, bal.Qty, 1e-9)
}

func TestAdjustmentClampsAtZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{WarehouseID: 1, ItemID: 1, Qty: 5, Note: "initial count"})
	require.NoError(t, err)

	entry, err := svc.PostAdjustment(ctx, AdjustmentInput{WarehouseID: 1, ItemID: 1, Qty: -8, Note: "shrinkage"})
	require.NoError(t, err)
	require.InDelta(t, 0.0, entry.BalanceQty, 1e-9)
	require.InDelta(t, 5.0, entry.OutQty, 1e-9)

	bal, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.0, bal.Qty, 1e-9)
}

func TestTransferConservation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostInbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: 20})
	require.NoError(t, err)

	res, err := svc.PostTransfer(ctx, TransferInput{SrcWarehouse: 1, DstWarehouse: 2, ItemID: 1, Qty: 5, Note: "Restock"})
	require.NoError(t, err)
	require.InDelta(t, 15.0, res.SourceBalance, 1e-9)
	require.InDelta(t, 5.0, res.DestinationBalance, 1e-9)
	require.Equal(t, "SKU1", res.ItemCode)

	src, _ := repo.GetBalance(ctx, 1, 1)
	dst, _ := repo.GetBalance(ctx, 2, 1)
	require.InDelta(t, 20.0, src.Qty+dst.Qty, 1e-9)
}

func TestTransferInsufficientStockRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostInbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: 2})
	require.NoError(t, err)

	_, err = svc.PostTransfer(ctx, TransferInput{SrcWarehouse: 1, DstWarehouse: 2, ItemID: 1, Qty: 50})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestTransferSameWarehouseRejected(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.PostTransfer(context.Background(), TransferInput{SrcWarehouse: 1, DstWarehouse: 1, ItemID: 1, Qty: 5})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUnknownItemFailsMovement(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.PostInbound(context.Background(), MovementInput{WarehouseID: 1, ItemID: 99, Qty: 5})
	require.ErrorIs(t, err, ErrItemUnknown)
}

func TestLogLedgerAgreement(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	moves := []struct {
		in  bool
		qty float64
	}{{true, 10}, {false, 3}, {true, 7}, {false, 6}}

	for _, m := range moves {
		var err error
		if m.in {
			_, err = svc.PostInbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: m.qty})
		} else {
			_, err = svc.PostOutbound(ctx, MovementInput{WarehouseID: 1, ItemID: 1, Qty: m.qty})
		}
		require.NoError(t, err)

		bal, err := repo.GetBalance(ctx, 1, 1)
		require.NoError(t, err)
		require.InDelta(t, bal.Qty, repo.lastEntry(t).BalanceQty, 1e-9)
	}
}
