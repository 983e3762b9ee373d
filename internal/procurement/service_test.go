package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockline-wms/stockline/internal/inventory"
)

// memoryRepo backs both ports with maps; WithTx just runs fn, matching the
// all-or-nothing contract only for the error paths the tests assert.
type memoryRepo struct {
	seq          map[string]int64
	pos          map[int64]PurchaseOrder
	poLines      map[int64]POLine
	receipts     map[int64]PurchaseReceipt
	receiptLines map[int64]ReceiptLine
	returns      map[int64]PurchaseReturn
	returnLines  map[int64]ReturnLine
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		seq:          map[string]int64{},
		pos:          map[int64]PurchaseOrder{},
		poLines:      map[int64]POLine{},
		receipts:     map[int64]PurchaseReceipt{},
		receiptLines: map[int64]ReceiptLine{},
		returns:      map[int64]PurchaseReturn{},
		returnLines:  map[int64]ReturnLine{},
		nextID:       1,
	}
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) NextDocNumber(_ context.Context, prefix string) (string, error) {
	m.seq[prefix]++
	return fmt.Sprintf("%s%010d", prefix, m.seq[prefix]), nil
}

func (m *memoryRepo) Stock() inventory.TxRepository { return nil }

func (m *memoryRepo) GetPO(_ context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, ok := m.pos[id]
	if !ok {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	return po, m.linesOf(id), nil
}

func (m *memoryRepo) linesOf(poID int64) []POLine {
	var lines []POLine
	for _, l := range m.poLines {
		if l.POID == poID {
			lines = append(lines, l)
		}
	}
	return lines
}

func (m *memoryRepo) ListPOs(_ context.Context, _ ListFilter) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, po := range m.pos {
		out = append(out, po)
	}
	return out, len(out), nil
}

func (m *memoryRepo) InsertPO(_ context.Context, po PurchaseOrder) (int64, error) {
	po.ID = m.id()
	m.pos[po.ID] = po
	return po.ID, nil
}

func (m *memoryRepo) InsertPOLine(_ context.Context, line POLine) error {
	line.ID = m.id()
	m.poLines[line.ID] = line
	return nil
}

func (m *memoryRepo) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	return m.GetPO(ctx, id)
}

func (m *memoryRepo) UpdatePOStatus(_ context.Context, id int64, from []POStatus, to POStatus) (bool, error) {
	po, ok := m.pos[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, s := range from {
		if po.Status == s {
			po.Status = to
			m.pos[id] = po
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) AddReceivedQty(_ context.Context, poLineID int64, qty float64) error {
	line, ok := m.poLines[poLineID]
	if !ok {
		return ErrNotFound
	}
	if line.ReceivedQty+qty > line.OrderedQty+1e-9 {
		return ErrOverReceipt
	}
	line.ReceivedQty += qty
	m.poLines[poLineID] = line
	return nil
}

func (m *memoryRepo) GetReceipt(_ context.Context, id int64) (PurchaseReceipt, []ReceiptLine, error) {
	rc, ok := m.receipts[id]
	if !ok {
		return PurchaseReceipt{}, nil, ErrNotFound
	}
	var lines []ReceiptLine
	for _, l := range m.receiptLines {
		if l.ReceiptID == id {
			lines = append(lines, l)
		}
	}
	return rc, lines, nil
}

func (m *memoryRepo) ListReceipts(_ context.Context, _ ListFilter) ([]PurchaseReceipt, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) InsertReceipt(_ context.Context, receipt PurchaseReceipt) (int64, error) {
	receipt.ID = m.id()
	m.receipts[receipt.ID] = receipt
	return receipt.ID, nil
}

func (m *memoryRepo) InsertReceiptLine(_ context.Context, line ReceiptLine) error {
	line.ID = m.id()
	m.receiptLines[line.ID] = line
	return nil
}

func (m *memoryRepo) GetReceiptForUpdate(ctx context.Context, id int64) (PurchaseReceipt, []ReceiptLine, error) {
	return m.GetReceipt(ctx, id)
}

func (m *memoryRepo) UpdateReceiptStatus(_ context.Context, id int64, from, to ReceiptStatus) (bool, error) {
	rc, ok := m.receipts[id]
	if !ok {
		return false, ErrNotFound
	}
	if rc.Status != from {
		return false, nil
	}
	rc.Status = to
	m.receipts[id] = rc
	return true, nil
}

func (m *memoryRepo) SubtractQtyLeft(_ context.Context, receiptLineID int64, qty float64) error {
	line, ok := m.receiptLines[receiptLineID]
	if !ok {
		return ErrNotFound
	}
	if line.QtyLeft < qty-1e-9 {
		return ErrOverReturn
	}
	line.QtyLeft -= qty
	m.receiptLines[receiptLineID] = line
	return nil
}

func (m *memoryRepo) GetReturn(_ context.Context, id int64) (PurchaseReturn, []ReturnLine, error) {
	ret, ok := m.returns[id]
	if !ok {
		return PurchaseReturn{}, nil, ErrNotFound
	}
	var lines []ReturnLine
	for _, l := range m.returnLines {
		if l.ReturnID == id {
			lines = append(lines, l)
		}
	}
	return ret, lines, nil
}

func (m *memoryRepo) ListReturns(_ context.Context, _ ListFilter) ([]PurchaseReturn, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) InsertReturn(_ context.Context, ret PurchaseReturn) (int64, error) {
	ret.ID = m.id()
	m.returns[ret.ID] = ret
	return ret.ID, nil
}

func (m *memoryRepo) InsertReturnLine(_ context.Context, line ReturnLine) error {
	line.ID = m.id()
	m.returnLines[line.ID] = line
	return nil
}

func (m *memoryRepo) GetReturnForUpdate(ctx context.Context, id int64) (PurchaseReturn, []ReturnLine, error) {
	return m.GetReturn(ctx, id)
}

func (m *memoryRepo) UpdateReturnStatus(_ context.Context, id int64, from, to ReturnStatus, actorID int64) (bool, error) {
	ret, ok := m.returns[id]
	if !ok {
		return false, ErrNotFound
	}
	if ret.Status != from {
		return false, nil
	}
	now := time.Now()
	ret.Status = to
	ret.DecidedBy = actorID
	ret.DecidedAt = &now
	m.returns[id] = ret
	return true, nil
}

type stockCall struct {
	Code   string
	ItemID int64
	Qty    float64
	Type   inventory.MovementType
}

// fakeStock keeps a toy ledger keyed by warehouse and item so posting tests
// can assert the balances the service reports back.
type fakeStock struct {
	calls    []stockCall
	balances map[[2]int64]float64
}

func (f *fakeStock) InboundTx(_ context.Context, _ inventory.TxRepository, input inventory.MovementInput) (inventory.StockEntry, error) {
	f.calls = append(f.calls, stockCall{Code: input.Code, ItemID: input.ItemID, Qty: input.Qty, Type: inventory.MovementIn})
	key := [2]int64{input.WarehouseID, input.ItemID}
	f.balances[key] += input.Qty
	return inventory.StockEntry{
		ItemID:     input.ItemID,
		ItemCode:   fmt.Sprintf("ITM-%03d", input.ItemID),
		InQty:      input.Qty,
		BalanceQty: f.balances[key],
	}, nil
}

func (f *fakeStock) OutboundTx(_ context.Context, _ inventory.TxRepository, input inventory.MovementInput, txType inventory.MovementType) (inventory.StockEntry, error) {
	f.calls = append(f.calls, stockCall{Code: input.Code, ItemID: input.ItemID, Qty: input.Qty, Type: txType})
	key := [2]int64{input.WarehouseID, input.ItemID}
	f.balances[key] -= input.Qty
	return inventory.StockEntry{
		ItemID:     input.ItemID,
		ItemCode:   fmt.Sprintf("ITM-%03d", input.ItemID),
		OutQty:     input.Qty,
		BalanceQty: f.balances[key],
	}, nil
}

func (f *fakeStock) InvalidateOnhand(_ context.Context, _, _ int64) {}

func newTestService() (*Service, *memoryRepo, *fakeStock) {
	repo := newMemoryRepo()
	stock := &fakeStock{balances: map[[2]int64]float64{}}
	return NewService(slog.Default(), repo, stock, nil, nil), repo, stock
}

func approvedPO(t *testing.T, svc *Service) (PurchaseOrder, []POLine) {
	t.Helper()
	po, err := svc.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID:  1,
		WarehouseID: 10,
		Lines: []POLineInput{
			{ItemID: 1, Qty: 10, UnitPrice: decimal.NewFromFloat(2.50)},
			{ItemID: 2, Qty: 4, UnitPrice: decimal.NewFromInt(5)},
		},
	})
	require.NoError(t, err)
	require.NoError(t, svc.ApprovePurchaseOrder(context.Background(), po.ID, 9))
	_, lines, err := svc.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	return po, lines
}

func lineForItem(t *testing.T, lines []POLine, itemID int64) POLine {
	t.Helper()
	for _, l := range lines {
		if l.ItemID == itemID {
			return l
		}
	}
	t.Fatalf("no line for item %d", itemID)
	return POLine{}
}

func TestCreatePurchaseOrderTotals(t *testing.T) {
	svc, _, _ := newTestService()

	po, err := svc.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID:  1,
		WarehouseID: 10,
		Lines: []POLineInput{
			{ItemID: 1, Qty: 3, UnitPrice: decimal.NewFromFloat(1.25)},
			{ItemID: 2, Qty: 2, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "PO0000000001", po.Number)
	require.Equal(t, POStatusDraft, po.Status)
	require.True(t, po.Total.Equal(decimal.NewFromFloat(23.75)), "got total %s", po.Total)
}

func TestCreatePurchaseOrderNeedsLines(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreatePurchaseOrder(context.Background(), CreatePOInput{SupplierID: 1, WarehouseID: 10})
	require.ErrorIs(t, err, ErrNoLines)
}

func TestApprovePurchaseOrderTwice(t *testing.T) {
	svc, _, _ := newTestService()
	po, err := svc.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID: 1, WarehouseID: 10,
		Lines: []POLineInput{{ItemID: 1, Qty: 1, UnitPrice: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ApprovePurchaseOrder(context.Background(), po.ID, 9))
	require.ErrorIs(t, svc.ApprovePurchaseOrder(context.Background(), po.ID, 9), ErrInvalidState)
}

func TestReceiptAgainstDraftOrderRefused(t *testing.T) {
	svc, _, _ := newTestService()
	po, err := svc.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID: 1, WarehouseID: 10,
		Lines: []POLineInput{{ItemID: 1, Qty: 1, UnitPrice: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)

	_, err = svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{POLineID: 1, Qty: 1}},
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestPostReceiptPartialThenCompleted(t *testing.T) {
	svc, _, stock := newTestService()
	po, lines := approvedPO(t, svc)
	item1 := lineForItem(t, lines, 1)
	item2 := lineForItem(t, lines, 2)

	first, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID: po.ID,
		Lines: []ReceiptLineInput{
			{POLineID: item1.ID, Qty: 6},
			{POLineID: item2.ID, Qty: 4},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "PR0000000001", first.Number)

	results, err := svc.PostReceipt(context.Background(), first.ID, 9)
	require.NoError(t, err)
	require.Len(t, stock.calls, 2)
	require.Len(t, results, 2)
	byItem := map[int64]PostingResult{}
	for _, res := range results {
		byItem[res.ItemID] = res
	}
	require.Equal(t, "ITM-001", byItem[1].ItemCode)
	require.InDelta(t, 6, byItem[1].NewBalance, 1e-9)
	require.InDelta(t, 4, byItem[2].NewBalance, 1e-9)

	after, _, err := svc.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusPartial, after.Status)

	second, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{POLineID: item1.ID, Qty: 4}},
	})
	require.NoError(t, err)
	results, err = svc.PostReceipt(context.Background(), second.ID, 9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 10, results[0].NewBalance, 1e-9, "balance must accumulate across receipts")

	done, doneLines, err := svc.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusCompleted, done.Status)
	require.InDelta(t, 10, lineForItem(t, doneLines, 1).ReceivedQty, 1e-9)
	require.InDelta(t, 10, lineForItem(t, doneLines, 1).OrderedQty, 1e-9, "ordered qty must survive receiving")
}

func TestPostReceiptTwiceRefused(t *testing.T) {
	svc, _, stock := newTestService()
	po, lines := approvedPO(t, svc)

	receipt, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{POLineID: lineForItem(t, lines, 1).ID, Qty: 5}},
	})
	require.NoError(t, err)

	_, err = svc.PostReceipt(context.Background(), receipt.ID, 9)
	require.NoError(t, err)
	_, err = svc.PostReceipt(context.Background(), receipt.ID, 9)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Len(t, stock.calls, 1, "stock must receive exactly once")
}

func TestOverReceiptRefused(t *testing.T) {
	svc, _, _ := newTestService()
	po, lines := approvedPO(t, svc)
	item2 := lineForItem(t, lines, 2)

	receipt, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{POLineID: item2.ID, Qty: 5}},
	})
	require.NoError(t, err)

	_, err = svc.PostReceipt(context.Background(), receipt.ID, 9)
	require.ErrorIs(t, err, ErrOverReceipt)
}

func postedReceipt(t *testing.T, svc *Service) (PurchaseReceipt, []ReceiptLine) {
	t.Helper()
	po, lines := approvedPO(t, svc)
	receipt, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{POLineID: lineForItem(t, lines, 1).ID, Qty: 6}},
	})
	require.NoError(t, err)
	_, err = svc.PostReceipt(context.Background(), receipt.ID, 9)
	require.NoError(t, err)
	receipt, receiptLines, err := svc.GetReceipt(context.Background(), receipt.ID)
	require.NoError(t, err)
	return receipt, receiptLines
}

func TestReturnOverRemainderRefused(t *testing.T) {
	svc, _, _ := newTestService()
	receipt, lines := postedReceipt(t, svc)

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: lines[0].ID, Qty: 7}},
	})
	require.ErrorIs(t, err, ErrOverReturn)
}

func TestApproveReturnPostsOutboundAndDecrements(t *testing.T) {
	svc, _, stock := newTestService()
	receipt, lines := postedReceipt(t, svc)
	stock.calls = nil

	ret, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		ReceiptID: receipt.ID,
		Reason:    "damaged in transit",
		Lines:     []ReturnLineInput{{ReceiptLineID: lines[0].ID, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, "RET0000000001", ret.Number)
	require.Equal(t, ReturnStatusPending, ret.Status)

	results, err := svc.ApproveReturn(context.Background(), ret.ID, 9)
	require.NoError(t, err)
	require.Len(t, stock.calls, 1)
	require.Equal(t, inventory.MovementReturn, stock.calls[0].Type)
	require.InDelta(t, 2, stock.calls[0].Qty, 1e-9)
	require.Len(t, results, 1)
	require.Equal(t, "ITM-001", results[0].ItemCode)
	require.InDelta(t, 4, results[0].NewBalance, 1e-9, "6 received minus 2 returned")

	_, afterLines, err := svc.GetReceipt(context.Background(), receipt.ID)
	require.NoError(t, err)
	require.InDelta(t, 4, afterLines[0].QtyLeft, 1e-9)

	_, err = svc.ApproveReturn(context.Background(), ret.ID, 9)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Len(t, stock.calls, 1)
}

func TestRejectReturnLeavesStockAlone(t *testing.T) {
	svc, _, stock := newTestService()
	receipt, lines := postedReceipt(t, svc)
	stock.calls = nil

	ret, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: lines[0].ID, Qty: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.RejectReturn(context.Background(), ret.ID, 9))
	require.Empty(t, stock.calls)

	_, err = svc.ApproveReturn(context.Background(), ret.ID, 9)
	require.ErrorIs(t, err, ErrInvalidState)
}
