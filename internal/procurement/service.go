package procurement

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
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
	GetReceipt(ctx context.Context, id int64) (PurchaseReceipt, []ReceiptLine, error)
	ListReceipts(ctx context.Context, filter ListFilter) ([]PurchaseReceipt, int, error)
	GetReturn(ctx context.Context, id int64) (PurchaseReturn, []ReturnLine, error)
	ListReturns(ctx context.Context, filter ListFilter) ([]PurchaseReturn, int, error)
}

// TxRepository is the transactional slice; Stock exposes the same
// transaction to the inventory ledger so document flips and stock legs
// commit together.
type TxRepository interface {
	NextDocNumber(ctx context.Context, prefix string) (string, error)
	Stock() inventory.TxRepository

	InsertPO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertPOLine(ctx context.Context, line POLine) error
	GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	UpdatePOStatus(ctx context.Context, id int64, from []POStatus, to POStatus) (bool, error)
	AddReceivedQty(ctx context.Context, poLineID int64, qty float64) error

	InsertReceipt(ctx context.Context, receipt PurchaseReceipt) (int64, error)
	InsertReceiptLine(ctx context.Context, line ReceiptLine) error
	GetReceiptForUpdate(ctx context.Context, id int64) (PurchaseReceipt, []ReceiptLine, error)
	UpdateReceiptStatus(ctx context.Context, id int64, from, to ReceiptStatus) (bool, error)
	SubtractQtyLeft(ctx context.Context, receiptLineID int64, qty float64) error

	InsertReturn(ctx context.Context, ret PurchaseReturn) (int64, error)
	InsertReturnLine(ctx context.Context, line ReturnLine) error
	GetReturnForUpdate(ctx context.Context, id int64) (PurchaseReturn, []ReturnLine, error)
	UpdateReturnStatus(ctx context.Context, id int64, from, to ReturnStatus, actorID int64) (bool, error)
}

// InventoryPort is the slice of the stock ledger posting flows use.
type InventoryPort interface {
	InboundTx(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.StockEntry, error)
	OutboundTx(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput, txType inventory.MovementType) (inventory.StockEntry, error)
	InvalidateOnhand(ctx context.Context, warehouseID, itemID int64)
}

// AuditPort records document decisions.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service orchestrates procurement flows.
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

// POLineInput is one ordered item.
type POLineInput struct {
	ItemID    int64
	Qty       float64
	UnitPrice decimal.Decimal
}

// CreatePOInput describes a new purchase order.
type CreatePOInput struct {
	SupplierID  int64
	WarehouseID int64
	Note        string
	OrderedAt   time.Time
	CreatedBy   int64
	Lines       []POLineInput
}

// ReceiptLineInput receives against one PO line.
type ReceiptLineInput struct {
	POLineID int64
	Qty      float64
}

// CreateReceiptInput describes a new draft receipt.
type CreateReceiptInput struct {
	POID       int64
	Note       string
	ReceivedAt time.Time
	CreatedBy  int64
	Lines      []ReceiptLineInput
}

// ReturnLineInput returns against one receipt line.
type ReturnLineInput struct {
	ReceiptLineID int64
	Qty           float64
}

// CreateReturnInput describes a new pending supplier return.
type CreateReturnInput struct {
	ReceiptID int64
	Reason    string
	CreatedBy int64
	Lines     []ReturnLineInput
}

// CreatePurchaseOrder persists a draft PO with its lines and totals.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, ErrNoLines
	}
	if input.SupplierID <= 0 || input.WarehouseID <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier and warehouse required", ErrValidation)
	}
	total := decimal.Zero
	for _, line := range input.Lines {
		if line.ItemID <= 0 || line.Qty <= 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: line item and qty required", ErrValidation)
		}
		if line.UnitPrice.IsNegative() {
			return PurchaseOrder{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromFloat(line.Qty)))
	}

	po := PurchaseOrder{
		SupplierID:  input.SupplierID,
		WarehouseID: input.WarehouseID,
		Status:      POStatusDraft,
		Total:       total,
		Note:        input.Note,
		OrderedAt:   defaultTime(input.OrderedAt),
		CreatedBy:   input.CreatedBy,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, "PO")
		if err != nil {
			return err
		}
		po.Number = number
		id, err := tx.InsertPO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		for _, line := range input.Lines {
			err := tx.InsertPOLine(ctx, POLine{
				POID:       id,
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
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "po.created", shared.EntityPurchaseOrder, po.ID, map[string]any{"number": po.Number})
	return po, nil
}

// ApprovePurchaseOrder flips DRAFT to APPROVED. Repeating the call finds the
// order out of DRAFT and fails without side effects.
func (s *Service) ApprovePurchaseOrder(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		flipped, err := tx.UpdatePOStatus(ctx, id, []POStatus{POStatusDraft}, POStatusApproved)
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
	s.recordAudit(ctx, actorID, "po.approved", shared.EntityPurchaseOrder, id, nil)
	return nil
}

// CancelPurchaseOrder cancels an order that has not received anything yet.
func (s *Service) CancelPurchaseOrder(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, lines, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if line.ReceivedQty > 0 {
				return fmt.Errorf("%w: order has received stock", ErrInvalidState)
			}
		}
		flipped, err := tx.UpdatePOStatus(ctx, id, []POStatus{POStatusDraft, POStatusApproved}, POStatusCancelled)
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
	s.recordAudit(ctx, actorID, "po.cancelled", shared.EntityPurchaseOrder, id, nil)
	return nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	return s.repo.GetPO(ctx, id)
}

func (s *Service) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	return s.repo.ListPOs(ctx, filter)
}

// CreateReceipt registers a draft receipt against an approved or partially
// received order. Stock does not move until the receipt is posted.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (PurchaseReceipt, error) {
	if len(input.Lines) == 0 {
		return PurchaseReceipt{}, ErrNoLines
	}
	po, poLines, err := s.repo.GetPO(ctx, input.POID)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	if po.Status != POStatusApproved && po.Status != POStatusPartial {
		return PurchaseReceipt{}, fmt.Errorf("%w: order is %s", ErrInvalidState, po.Status)
	}
	byLineID := make(map[int64]POLine, len(poLines))
	for _, line := range poLines {
		byLineID[line.ID] = line
	}

	receipt := PurchaseReceipt{
		POID:        po.ID,
		WarehouseID: po.WarehouseID,
		Status:      ReceiptStatusDraft,
		Note:        input.Note,
		ReceivedAt:  defaultTime(input.ReceivedAt),
		CreatedBy:   input.CreatedBy,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, "PR")
		if err != nil {
			return err
		}
		receipt.Number = number
		id, err := tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		receipt.ID = id
		for _, line := range input.Lines {
			poLine, ok := byLineID[line.POLineID]
			if !ok {
				return fmt.Errorf("%w: line %d does not belong to order %s", ErrValidation, line.POLineID, po.Number)
			}
			if line.Qty <= 0 {
				return fmt.Errorf("%w: qty must be positive", ErrValidation)
			}
			err := tx.InsertReceiptLine(ctx, ReceiptLine{
				ReceiptID: id,
				POLineID:  poLine.ID,
				ItemID:    poLine.ItemID,
				Qty:       line.Qty,
				QtyLeft:   line.Qty,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "receipt.created", shared.EntityPurchaseReceipt, receipt.ID, map[string]any{"number": receipt.Number, "po": po.Number})
	return receipt, nil
}

// PostReceipt applies a draft receipt: the status flip, the PO received
// quantities, the inbound ledger legs and the PO status derivation all
// commit in one transaction. The receipt number doubles as idempotency key.
// The returned results carry the post-movement balance of every line.
func (s *Service) PostReceipt(ctx context.Context, id, actorID int64) ([]PostingResult, error) {
	receipt, _, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("RECEIPT:%s", receipt.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "procurement.receipt"); err != nil {
			return nil, err
		}
		inserted = true
	}

	var touched []ReceiptLine
	var results []PostingResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		results = results[:0]
		receipt, lines, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		flipped, err := tx.UpdateReceiptStatus(ctx, id, ReceiptStatusDraft, ReceiptStatusPosted)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrInvalidState
		}
		po, poLines, err := tx.GetPOForUpdate(ctx, receipt.POID)
		if err != nil {
			return err
		}
		byLineID := make(map[int64]POLine, len(poLines))
		for _, line := range poLines {
			byLineID[line.ID] = line
		}

		for _, line := range lines {
			poLine, ok := byLineID[line.POLineID]
			if !ok {
				return fmt.Errorf("%w: receipt line %d has no order line", ErrValidation, line.ID)
			}
			if poLine.ReceivedQty+line.Qty > poLine.OrderedQty+1e-9 {
				return fmt.Errorf("%w: item %d ordered %.2f already received %.2f got %.2f",
					ErrOverReceipt, poLine.ItemID, poLine.OrderedQty, poLine.ReceivedQty, line.Qty)
			}
			if err := tx.AddReceivedQty(ctx, poLine.ID, line.Qty); err != nil {
				return err
			}
			poLine.ReceivedQty += line.Qty
			byLineID[poLine.ID] = poLine

			entry, err := s.stock.InboundTx(ctx, tx.Stock(), inventory.MovementInput{
				Code:        fmt.Sprintf("%s-%d", receipt.Number, line.ItemID),
				WarehouseID: receipt.WarehouseID,
				ItemID:      line.ItemID,
				Qty:         line.Qty,
				Note:        fmt.Sprintf("receipt %s for %s", receipt.Number, po.Number),
				ActorID:     actorID,
				RefModule:   "procurement",
				RefID:       fmt.Sprintf("%d", receipt.ID),
			})
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

		completed := true
		for _, poLine := range byLineID {
			if poLine.ReceivedQty+1e-9 < poLine.OrderedQty {
				completed = false
				break
			}
		}
		next := POStatusPartial
		if completed {
			next = POStatusCompleted
		}
		flipped, err = tx.UpdatePOStatus(ctx, po.ID, []POStatus{POStatusApproved, POStatusPartial}, next)
		if err != nil {
			return err
		}
		if !flipped {
			return fmt.Errorf("%w: order is %s", ErrInvalidState, po.Status)
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
		s.stock.InvalidateOnhand(ctx, receipt.WarehouseID, line.ItemID)
	}
	s.recordAudit(ctx, actorID, "receipt.posted", shared.EntityPurchaseReceipt, id, map[string]any{"number": receipt.Number})
	return results, nil
}

func (s *Service) GetReceipt(ctx context.Context, id int64) (PurchaseReceipt, []ReceiptLine, error) {
	return s.repo.GetReceipt(ctx, id)
}

func (s *Service) ListReceipts(ctx context.Context, filter ListFilter) ([]PurchaseReceipt, int, error) {
	return s.repo.ListReceipts(ctx, filter)
}

// CreateReturn registers a pending supplier return against a posted receipt.
func (s *Service) CreateReturn(ctx context.Context, input CreateReturnInput) (PurchaseReturn, error) {
	if len(input.Lines) == 0 {
		return PurchaseReturn{}, ErrNoLines
	}
	receipt, receiptLines, err := s.repo.GetReceipt(ctx, input.ReceiptID)
	if err != nil {
		return PurchaseReturn{}, err
	}
	if receipt.Status != ReceiptStatusPosted {
		return PurchaseReturn{}, fmt.Errorf("%w: receipt is %s", ErrInvalidState, receipt.Status)
	}
	byLineID := make(map[int64]ReceiptLine, len(receiptLines))
	for _, line := range receiptLines {
		byLineID[line.ID] = line
	}

	ret := PurchaseReturn{
		ReceiptID: receipt.ID,
		Status:    ReturnStatusPending,
		Reason:    input.Reason,
		CreatedBy: input.CreatedBy,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, "RET")
		if err != nil {
			return err
		}
		ret.Number = number
		id, err := tx.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.ID = id
		for _, line := range input.Lines {
			receiptLine, ok := byLineID[line.ReceiptLineID]
			if !ok {
				return fmt.Errorf("%w: line %d does not belong to receipt %s", ErrValidation, line.ReceiptLineID, receipt.Number)
			}
			if line.Qty <= 0 {
				return fmt.Errorf("%w: qty must be positive", ErrValidation)
			}
			if line.Qty > receiptLine.QtyLeft+1e-9 {
				return fmt.Errorf("%w: item %d has %.2f left", ErrOverReturn, receiptLine.ItemID, receiptLine.QtyLeft)
			}
			err := tx.InsertReturnLine(ctx, ReturnLine{
				ReturnID:      id,
				ReceiptLineID: receiptLine.ID,
				ItemID:        receiptLine.ItemID,
				Qty:           line.Qty,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseReturn{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "return.created", shared.EntityPurchaseReturn, ret.ID, map[string]any{"number": ret.Number})
	return ret, nil
}

// ApproveReturn flips PENDING to APPROVED and posts the outbound legs with
// activity RETURN, decrementing each receipt line's remainder, all in one
// transaction. A decided return fails the flip and nothing moves. The
// returned results carry the post-movement balance of every line.
func (s *Service) ApproveReturn(ctx context.Context, id, actorID int64) ([]PostingResult, error) {
	var receipt PurchaseReceipt
	var touched []ReturnLine
	var results []PostingResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		results = results[:0]
		ret, lines, err := tx.GetReturnForUpdate(ctx, id)
		if err != nil {
			return err
		}
		flipped, err := tx.UpdateReturnStatus(ctx, id, ReturnStatusPending, ReturnStatusApproved, actorID)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrInvalidState
		}
		rcpt, receiptLines, err := tx.GetReceiptForUpdate(ctx, ret.ReceiptID)
		if err != nil {
			return err
		}
		receipt = rcpt
		byLineID := make(map[int64]ReceiptLine, len(receiptLines))
		for _, line := range receiptLines {
			byLineID[line.ID] = line
		}
		for _, line := range lines {
			receiptLine, ok := byLineID[line.ReceiptLineID]
			if !ok {
				return fmt.Errorf("%w: return line %d has no receipt line", ErrValidation, line.ID)
			}
			if line.Qty > receiptLine.QtyLeft+1e-9 {
				return fmt.Errorf("%w: item %d has %.2f left", ErrOverReturn, receiptLine.ItemID, receiptLine.QtyLeft)
			}
			if err := tx.SubtractQtyLeft(ctx, receiptLine.ID, line.Qty); err != nil {
				return err
			}
			entry, err := s.stock.OutboundTx(ctx, tx.Stock(), inventory.MovementInput{
				Code:        fmt.Sprintf("%s-%d", ret.Number, line.ItemID),
				WarehouseID: rcpt.WarehouseID,
				ItemID:      line.ItemID,
				Qty:         line.Qty,
				Note:        fmt.Sprintf("return %s against %s", ret.Number, rcpt.Number),
				ActorID:     actorID,
				RefModule:   "procurement",
				RefID:       fmt.Sprintf("%d", ret.ID),
			}, inventory.MovementReturn)
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
		touched = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, line := range touched {
		s.stock.InvalidateOnhand(ctx, receipt.WarehouseID, line.ItemID)
	}
	s.recordAudit(ctx, actorID, "return.approved", shared.EntityPurchaseReturn, id, nil)
	return results, nil
}

// RejectReturn flips PENDING to REJECTED without touching stock.
func (s *Service) RejectReturn(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		flipped, err := tx.UpdateReturnStatus(ctx, id, ReturnStatusPending, ReturnStatusRejected, actorID)
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
	s.recordAudit(ctx, actorID, "return.rejected", shared.EntityPurchaseReturn, id, nil)
	return nil
}

func (s *Service) GetReturn(ctx context.Context, id int64) (PurchaseReturn, []ReturnLine, error) {
	return s.repo.GetReturn(ctx, id)
}

func (s *Service) ListReturns(ctx context.Context, filter ListFilter) ([]PurchaseReturn, int, error) {
	return s.repo.ListReturns(ctx, filter)
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
