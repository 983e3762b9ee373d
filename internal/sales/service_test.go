package sales

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockline-wms/stockline/internal/inventory"
)

type memoryRepo struct {
	seq           map[string]int64
	orders        map[int64]SalesOrder
	orderLines    map[int64]OrderLine
	deliveries    map[int64]Delivery
	deliveryLines map[int64]DeliveryLine
	invoices      map[int64]Invoice
	nextID        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		seq:           map[string]int64{},
		orders:        map[int64]SalesOrder{},
		orderLines:    map[int64]OrderLine{},
		deliveries:    map[int64]Delivery{},
		deliveryLines: map[int64]DeliveryLine{},
		invoices:      map[int64]Invoice{},
		nextID:        1,
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

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (SalesOrder, []OrderLine, error) {
	order, ok := m.orders[id]
	if !ok {
		return SalesOrder{}, nil, ErrNotFound
	}
	var lines []OrderLine
	for _, l := range m.orderLines {
		if l.OrderID == id {
			lines = append(lines, l)
		}
	}
	return order, lines, nil
}

func (m *memoryRepo) ListOrders(_ context.Context, _ ListFilter) ([]SalesOrder, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) InsertOrder(_ context.Context, order SalesOrder) (int64, error) {
	order.ID = m.id()
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *memoryRepo) InsertOrderLine(_ context.Context, line OrderLine) error {
	line.ID = m.id()
	m.orderLines[line.ID] = line
	return nil
}

func (m *memoryRepo) GetOrderForUpdate(ctx context.Context, id int64) (SalesOrder, []OrderLine, error) {
	return m.GetOrder(ctx, id)
}

func (m *memoryRepo) UpdateOrderStatus(_ context.Context, id int64, from []OrderStatus, to OrderStatus) (bool, error) {
	order, ok := m.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, s := range from {
		if order.Status == s {
			order.Status = to
			m.orders[id] = order
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) AddDeliveredQty(_ context.Context, orderLineID int64, qty float64) error {
	line, ok := m.orderLines[orderLineID]
	if !ok {
		return ErrNotFound
	}
	if line.DeliveredQty+qty > line.OrderedQty+1e-9 {
		return ErrOverDelivery
	}
	line.DeliveredQty += qty
	m.orderLines[orderLineID] = line
	return nil
}

func (m *memoryRepo) GetDelivery(_ context.Context, id int64) (Delivery, []DeliveryLine, error) {
	d, ok := m.deliveries[id]
	if !ok {
		return Delivery{}, nil, ErrNotFound
	}
	var lines []DeliveryLine
	for _, l := range m.deliveryLines {
		if l.DeliveryID == id {
			lines = append(lines, l)
		}
	}
	return d, lines, nil
}

func (m *memoryRepo) ListDeliveries(_ context.Context, _ ListFilter) ([]Delivery, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) InsertDelivery(_ context.Context, delivery Delivery) (int64, error) {
	delivery.ID = m.id()
	m.deliveries[delivery.ID] = delivery
	return delivery.ID, nil
}

func (m *memoryRepo) InsertDeliveryLine(_ context.Context, line DeliveryLine) error {
	line.ID = m.id()
	m.deliveryLines[line.ID] = line
	return nil
}

func (m *memoryRepo) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, []DeliveryLine, error) {
	return m.GetDelivery(ctx, id)
}

func (m *memoryRepo) UpdateDeliveryStatus(_ context.Context, id int64, from, to DeliveryStatus) (bool, error) {
	d, ok := m.deliveries[id]
	if !ok {
		return false, ErrNotFound
	}
	if d.Status != from {
		return false, nil
	}
	d.Status = to
	m.deliveries[id] = d
	return true, nil
}

func (m *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepo) ListInvoices(_ context.Context, _ ListFilter) ([]Invoice, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) InsertInvoice(_ context.Context, invoice Invoice) (int64, error) {
	invoice.ID = m.id()
	m.invoices[invoice.ID] = invoice
	return invoice.ID, nil
}

func (m *memoryRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memoryRepo) UpdateInvoice(_ context.Context, invoice Invoice) error {
	if _, ok := m.invoices[invoice.ID]; !ok {
		return ErrNotFound
	}
	m.invoices[invoice.ID] = invoice
	return nil
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
	// opening stock for warehouse 10 so shipped balances stay positive
	stock := &fakeStock{balances: map[[2]int64]float64{
		{10, 1}: 20,
		{10, 2}: 20,
	}}
	return NewService(slog.Default(), repo, stock, nil, nil), repo, stock
}

func pendingOrder(t *testing.T, svc *Service) (SalesOrder, []OrderLine) {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:  1,
		WarehouseID: 10,
		Lines: []OrderLineInput{
			{ItemID: 1, Qty: 8, UnitPrice: decimal.NewFromInt(3)},
			{ItemID: 2, Qty: 2, UnitPrice: decimal.NewFromFloat(1.5)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "SO0000000001", order.Number)
	_, lines, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	return order, lines
}

func lineForItem(t *testing.T, lines []OrderLine, itemID int64) OrderLine {
	t.Helper()
	for _, l := range lines {
		if l.ItemID == itemID {
			return l
		}
	}
	t.Fatalf("no line for item %d", itemID)
	return OrderLine{}
}

func TestCreateOrderTotals(t *testing.T) {
	svc, _, _ := newTestService()
	order, _ := pendingOrder(t, svc)

	require.Equal(t, OrderStatusPending, order.Status)
	require.True(t, order.Total.Equal(decimal.NewFromInt(27)), "got total %s", order.Total)
}

func TestDeliveryOverAvailabilityRefused(t *testing.T) {
	svc, _, _ := newTestService()
	order, lines := pendingOrder(t, svc)

	_, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: order.ID,
		Lines:   []DeliveryLineInput{{OrderLineID: lineForItem(t, lines, 2).ID, Qty: 3}},
	})
	require.ErrorIs(t, err, ErrOverDelivery)
}

func TestPostDeliveryPartialThenPrepared(t *testing.T) {
	svc, _, stock := newTestService()
	order, lines := pendingOrder(t, svc)
	item1 := lineForItem(t, lines, 1)
	item2 := lineForItem(t, lines, 2)

	first, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: order.ID,
		Lines: []DeliveryLineInput{
			{OrderLineID: item1.ID, Qty: 5},
			{OrderLineID: item2.ID, Qty: 2},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "DO0000000001", first.Number)

	results, err := svc.PostDelivery(context.Background(), first.ID, 9)
	require.NoError(t, err)
	require.Len(t, stock.calls, 2)
	require.Equal(t, inventory.MovementOut, stock.calls[0].Type)
	require.Len(t, results, 2)
	byItem := map[int64]PostingResult{}
	for _, res := range results {
		byItem[res.ItemID] = res
	}
	require.Equal(t, "ITM-001", byItem[1].ItemCode)
	require.InDelta(t, 15, byItem[1].NewBalance, 1e-9, "20 on hand minus 5 shipped")
	require.InDelta(t, 18, byItem[2].NewBalance, 1e-9)

	after, _, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusPartial, after.Status)

	second, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: order.ID,
		Lines:   []DeliveryLineInput{{OrderLineID: item1.ID, Qty: 3}},
	})
	require.NoError(t, err)
	results, err = svc.PostDelivery(context.Background(), second.ID, 9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 12, results[0].NewBalance, 1e-9, "balance must drop across deliveries")

	done, doneLines, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusPrepared, done.Status)
	require.InDelta(t, 0, lineForItem(t, doneLines, 1).Available(), 1e-9)
}

func TestPostDeliveryTwiceRefused(t *testing.T) {
	svc, _, stock := newTestService()
	order, lines := pendingOrder(t, svc)

	delivery, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: order.ID,
		Lines:   []DeliveryLineInput{{OrderLineID: lineForItem(t, lines, 1).ID, Qty: 4}},
	})
	require.NoError(t, err)

	_, err = svc.PostDelivery(context.Background(), delivery.ID, 9)
	require.NoError(t, err)
	_, err = svc.PostDelivery(context.Background(), delivery.ID, 9)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Len(t, stock.calls, 1, "stock must ship exactly once")
}

func TestCancelOrderWithDeliveriesRefused(t *testing.T) {
	svc, _, _ := newTestService()
	order, lines := pendingOrder(t, svc)

	delivery, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: order.ID,
		Lines:   []DeliveryLineInput{{OrderLineID: lineForItem(t, lines, 1).ID, Qty: 1}},
	})
	require.NoError(t, err)
	_, err = svc.PostDelivery(context.Background(), delivery.ID, 9)
	require.NoError(t, err)

	require.ErrorIs(t, svc.CancelOrder(context.Background(), order.ID, 9), ErrInvalidState)
}

func TestInvoiceLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	order, _ := pendingOrder(t, svc)

	invoice, err := svc.CreateInvoice(context.Background(), order.ID, nil, 9)
	require.NoError(t, err)
	require.Equal(t, "INV0000000001", invoice.Number)
	require.Equal(t, InvoiceStatusDraft, invoice.Status)
	require.True(t, invoice.Total.Equal(order.Total))

	// payments only apply to issued invoices
	_, err = svc.RegisterPayment(context.Background(), PaymentInput{InvoiceID: invoice.ID, Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, svc.IssueInvoice(context.Background(), invoice.ID, 9))

	_, err = svc.RegisterPayment(context.Background(), PaymentInput{InvoiceID: invoice.ID, Amount: decimal.NewFromInt(30)})
	require.ErrorIs(t, err, ErrOverPayment)

	partial, err := svc.RegisterPayment(context.Background(), PaymentInput{InvoiceID: invoice.ID, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusIssued, partial.Status)

	settled, err := svc.RegisterPayment(context.Background(), PaymentInput{InvoiceID: invoice.ID, Amount: decimal.NewFromInt(17)})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, settled.Status)

	require.ErrorIs(t, svc.VoidInvoice(context.Background(), invoice.ID, 9), ErrInvalidState)
}

func TestVoidDraftInvoice(t *testing.T) {
	svc, repo, _ := newTestService()
	order, _ := pendingOrder(t, svc)

	invoice, err := svc.CreateInvoice(context.Background(), order.ID, nil, 9)
	require.NoError(t, err)
	require.NoError(t, svc.VoidInvoice(context.Background(), invoice.ID, 9))

	after, err := repo.GetInvoice(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusVoid, after.Status)
}
