package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (SalesOrder, []OrderLine, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]SalesOrder, int, error)
	GetDelivery(ctx context.Context, id int64) (Delivery, []DeliveryLine, error)
	ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
}

// TxRepository is the transactional slice; Stock exposes the same
// transaction to the inventory ledger.
type TxRepository interface {
	NextDocNumber(ctx context.Context, prefix string) (string, error)
	Stock() inventory.TxRepository

	InsertOrder(ctx context.Context, order SalesOrder) (int64, error)
	InsertOrderLine(ctx context.Context, line OrderLine) error
	GetOrderForUpdate(ctx context.Context, id int64) (SalesOrder, []OrderLine, error)
	UpdateOrderStatus(ctx context.Context, id int64, from []OrderStatus, to OrderStatus) (bool, error)
	AddDeliveredQty(ctx context.Context, orderLineID int64, qty float64) error

	InsertDelivery(ctx context.Context, delivery Delivery) (int64, error)
	InsertDeliveryLine(ctx context.Context, line DeliveryLine) error
	GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, []DeliveryLine, error)
	UpdateDeliveryStatus(ctx context.Context, id int64, from, to DeliveryStatus) (bool, error)

	InsertInvoice(ctx context.Context, invoice Invoice) (int64, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoice(ctx context.Context, invoice Invoice) error
}

// InventoryPort is the slice of the stock ledger delivery posting uses.
type InventoryPort interface {
	OutboundTx(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput, txType inventory.MovementType) (inventory.StockEntry, error)
	InvalidateOnhand(ctx context.Context, warehouseID, itemID int64)
}

// AuditPort records document decisions.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service orchestrates sales flows.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	stock       InventoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

func NewService(logger *slog.Logger, repo RepositoryPort, stock InventoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{logger: logger, repo: repo, stock: stock, audit: audit, idempotency: idem}
}

// OrderLineInput is one ordered item.
type OrderLineInput struct {
	ItemID    int64
	Qty       float64
	UnitPrice decimal.Decimal
}

// CreateOrderInput describes a new sales order.
type CreateOrderInput struct {
	CustomerID  int64
	WarehouseID int64
	Note        string
	OrderedAt   time.Time
	CreatedBy   int64
	Lines       []OrderLineInput
}

// DeliveryLineInput ships against one order line.
type DeliveryLineInput struct {
	OrderLineID int64
	Qty         float64
}

// CreateDeliveryInput describes a new draft delivery.
type CreateDeliveryInput struct {
	OrderID     int64
	Note        string
	DeliveredAt time.Time
	CreatedBy   int64
	Lines       []DeliveryLineInput
}

// PaymentInput registers money against an issued invoice.
type PaymentInput struct {
	InvoiceID int64
	Amount    decimal.Decimal
	ActorID   int64
}

// CreateOrder persists a pending order with its lines and totals.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (SalesOrder, error) {
	if len(input.Lines) == 0 {
		return SalesOrder{}, ErrNoLines
	}
	if input.CustomerID <= 0 || input.WarehouseID <= 0 {
		return SalesOrder{}, fmt.Errorf("%w: customer and warehouse required", ErrValidation)
	}
	total := decimal.Zero
	for _, line := range input.Lines {
		if line.ItemID <= 0 || line.Qty <= 0 {
			return SalesOrder{}, fmt.Errorf("%w: line item and qty required", ErrValidation)
		}
		if line.UnitPrice.IsNegative() {
			return SalesOrder{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromFloat(line.Qty)))
	}

	order := SalesOrder{
		CustomerID:  input.CustomerID,
		WarehouseID: input.WarehouseID,
		Status:      OrderStatusPending,
		Total:       total,
		Note:        input.Note,
		OrderedAt:   defaultTime(input.OrderedAt),
		CreatedBy:   input.CreatedBy,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, "SO")
		if err != nil {
			return err
		}
		order.Number = number
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for _, line := range input.Lines {
			err := tx.InsertOrderLine(ctx, OrderLine{
				OrderID:    id,
				ItemID:     line.ItemID,
				OrderedQty: line.Qty,
				UnitPrice:  line.UnitPrice,
				LineTotal:  line.UnitPrice.Mul(decimal.NewFromFloat(line.Qty)),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "order.created", shared.EntitySalesOrder, order.ID, map[string]any{"number": order.Number})
	return order, nil
}

// CancelOrder cancels an order with no deliveries against it.
func (s *Service) CancelOrder(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, lines, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if line.DeliveredQty > 0 {
				return fmt.Errorf("%w: order has deliveries", ErrInvalidState)
			}
		}
		flipped, err := tx.UpdateOrderStatus(ctx, id, []OrderStatus{OrderStatusPending}, OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "order.cancelled", shared.EntitySalesOrder, id, nil)
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (SalesOrder, []OrderLine, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]SalesOrder, int, error) {
	return s.repo.ListOrders(ctx, filter)
}

// CreateDelivery registers a draft delivery. Each line is capped by the
// order line's undelivered remainder at creation time; posting re-checks
// under lock.
func (s *Service) CreateDelivery(ctx context.Context, input CreateDeliveryInput) (Delivery, error) {
	if len(input.Lines) == 0 {
		return Delivery{}, ErrNoLines
	}
	order, orderLines, err := s.repo.GetOrder(ctx, input.OrderID)
	if err != nil {
		return Delivery{}, err
	}
	if order.Status != OrderStatusPending && order.Status != OrderStatusPartial {
		return Delivery{}, fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
	}
	byLineID := make(map[int64]OrderLine, len(orderLines))
	for _, line := range orderLines {
		byLineID[line.ID] = line
	}

	delivery := Delivery{
		OrderID:     order.ID,
		WarehouseID: order.WarehouseID,
		Status:      DeliveryStatusDraft,
		Note:        input.Note,
		DeliveredAt: defaultTime(input.DeliveredAt),
		CreatedBy:   input.CreatedBy,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, "DO")
		if err != nil {
			return err
		}
		delivery.Number = number
		id, err := tx.InsertDelivery(ctx, delivery)
		if err != nil {
			return err
		}
		delivery.ID = id
		for _, line := range input.Lines {
			orderLine, ok := byLineID[line.OrderLineID]
			if !ok {
				return fmt.Errorf("%w: line %d does not belong to order %s", ErrValidation, line.OrderLineID, order.Number)
			}
			if line.Qty <= 0 {
				return fmt.Errorf("%w: qty must be positive", ErrValidation)
			}
			if line.Qty > orderLine.Available()+1e-9 {
				return fmt.Errorf("%w: item %d has %.2f available", ErrOverDelivery, orderLine.ItemID, orderLine.Available())
			}
			err := tx.InsertDeliveryLine(ctx, DeliveryLine{
				DeliveryID:  id,
				OrderLineID: orderLine.ID,
				ItemID:      orderLine.ItemID,
				Qty:         line.Qty,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Delivery{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "delivery.created", shared.EntityDelivery, delivery.ID, map[string]any{"number": delivery.Number, "order": order.Number})
	return delivery, nil
}

// PostDelivery ships a draft delivery: the status flip, the order line
// delivered quantities, the outbound ledger legs and the order status
// derivation commit in one transaction. The delivery number doubles as
// idempotency key. The returned results carry the post-movement balance of
// every line.
func (s *Service) PostDelivery(ctx context.Context, id, actorID int64) ([]PostingResult, error) {
	delivery, _, err := s.repo.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("DELIVERY:%s", delivery.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales.delivery"); err != nil {
			return nil, err
		}
		inserted = true
	}

	var touched []DeliveryLine
	var results []PostingResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		results = results[:0]
		delivery, lines, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		flipped, err := tx.UpdateDeliveryStatus(ctx, id, DeliveryStatusDraft, DeliveryStatusPosted)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrInvalidState
		}
		order, orderLines, err := tx.GetOrderForUpdate(ctx, delivery.OrderID)
		if err != nil {
			return err
		}
		byLineID := make(map[int64]OrderLine, len(orderLines))
		for _, line := range orderLines {
			byLineID[line.ID] = line
		}

		for _, line := range lines {
			orderLine, ok := byLineID[line.OrderLineID]
			if !ok {
				return fmt.Errorf("%w: delivery line %d has no order line", ErrValidation, line.ID)
			}
			if line.Qty > orderLine.Available()+1e-9 {
				return fmt.Errorf("%w: item %d has %.2f available", ErrOverDelivery, orderLine.ItemID, orderLine.Available())
			}
			if err := tx.AddDeliveredQty(ctx, orderLine.ID, line.Qty); err != nil {
				return err
			}
			orderLine.DeliveredQty += line.Qty
			byLineID[orderLine.ID] = orderLine

			entry, err := s.stock.OutboundTx(ctx, tx.Stock(), inventory.MovementInput{
				Code:        fmt.Sprintf("%s-%d", delivery.Number, line.ItemID),
				WarehouseID: delivery.WarehouseID,
				ItemID:      line.ItemID,
				Qty:         line.Qty,
				Note:        fmt.Sprintf("delivery %s for %s", delivery.Number, order.Number),
				ActorID:     actorID,
				RefModule:   "sales",
				RefID:       fmt.Sprintf("%d", delivery.ID),
			}, inventory.MovementOut)
			if err != nil {
				return err
			}
			results = append(results, PostingResult{
				ItemID:     entry.ItemID,
				ItemCode:   entry.ItemCode,
				Qty:        line.Qty,
				NewBalance: entry.BalanceQty,
			})
		}

		prepared := true
		for _, orderLine := range byLineID {
			if orderLine.DeliveredQty+1e-9 < orderLine.OrderedQty {
				prepared = false
				break
			}
		}
		next := OrderStatusPartial
		if prepared {
			next = OrderStatusPrepared
		}
		flipped, err = tx.UpdateOrderStatus(ctx, order.ID, []OrderStatus{OrderStatusPending, OrderStatusPartial}, next)
		if err != nil {
			return err
		}
		if !flipped {
			return fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
		}
		touched = lines
		return nil
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return nil, err
	}
	for _, line := range touched {
		s.stock.InvalidateOnhand(ctx, delivery.WarehouseID, line.ItemID)
	}
	s.recordAudit(ctx, actorID, "delivery.posted", shared.EntityDelivery, id, map[string]any{"number": delivery.Number})
	return results, nil
}

func (s *Service) GetDelivery(ctx context.Context, id int64) (Delivery, []DeliveryLine, error) {
	return s.repo.GetDelivery(ctx, id)
}

func (s *Service) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	return s.repo.ListDeliveries(ctx, filter)
}

// CreateInvoice bills the full order total. Drafted, then issued separately.
func (s *Service) CreateInvoice(ctx context.Context, orderID int64, dueAt *time.Time, actorID int64) (Invoice, error) {
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Invoice{}, err
	}
	if order.Status == OrderStatusCancelled {
		return Invoice{}, fmt.Errorf("%w: order is cancelled", ErrInvalidState)
	}
	invoice := Invoice{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     InvoiceStatusDraft,
		Total:      order.Total,
		Paid:       decimal.Zero,
		DueAt:      dueAt,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, "INV")
		if err != nil {
			return err
		}
		invoice.Number = number
		id, err := tx.InsertInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		invoice.ID = id
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, actorID, "invoice.created", shared.EntityInvoice, invoice.ID, map[string]any{"number": invoice.Number})
	return invoice, nil
}

// IssueInvoice flips DRAFT to ISSUED and stamps the issue time.
func (s *Service) IssueInvoice(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusDraft {
			return ErrInvalidState
		}
		now := time.Now()
		invoice.Status = InvoiceStatusIssued
		invoice.IssuedAt = &now
		return tx.UpdateInvoice(ctx, invoice)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "invoice.issued", shared.EntityInvoice, id, nil)
	return nil
}

// RegisterPayment adds a payment to an issued invoice and marks it PAID
// once settled. Over-payment is refused.
func (s *Service) RegisterPayment(ctx context.Context, input PaymentInput) (Invoice, error) {
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return Invoice{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	var result Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusIssued {
			return ErrInvalidState
		}
		paid := invoice.Paid.Add(input.Amount)
		if paid.GreaterThan(invoice.Total) {
			return ErrOverPayment
		}
		invoice.Paid = paid
		if paid.Equal(invoice.Total) {
			invoice.Status = InvoiceStatusPaid
		}
		if err := tx.UpdateInvoice(ctx, invoice); err != nil {
			return err
		}
		result = invoice
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, input.ActorID, "invoice.payment", shared.EntityInvoice, result.ID, map[string]any{
		"amount": input.Amount.String(),
		"paid":   result.Paid.String(),
	})
	return result, nil
}

// VoidInvoice cancels a draft or issued invoice with no payments.
func (s *Service) VoidInvoice(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusDraft && invoice.Status != InvoiceStatusIssued {
			return ErrInvalidState
		}
		if !invoice.Paid.IsZero() {
			return fmt.Errorf("%w: invoice has payments", ErrInvalidState)
		}
		invoice.Status = InvoiceStatusVoid
		return tx.UpdateInvoice(ctx, invoice)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "invoice.voided", shared.EntityInvoice, id, nil)
	return nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	return s.repo.ListInvoices(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func defaultTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
