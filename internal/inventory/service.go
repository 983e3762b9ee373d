package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/stockline-wms/stockline/internal/platform/cache"
	"github.com/stockline-wms/stockline/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, warehouseID, itemID int64) (Balance, error)
	GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockEntry, error)
}

// CatalogPort resolves item metadata recorded on log entries. A missing item
// fails the movement; there is no placeholder substitution.
type CatalogPort interface {
	GetItemMeta(ctx context.Context, itemID int64) (ItemMeta, error)
}

// ItemMeta is the catalog projection snapshotted onto log entries.
type ItemMeta struct {
	Code     string
	Name     string
	Category string
	Unit     string
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service coordinates all ledger and log mutations. Every quantity-affecting
// event flows through postMovementTx so the balance update, log append and
// movement header land in one database transaction.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       *cache.Cache
	group       singleflight.Group
	allowNeg    bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort, audit AuditPort, idem *shared.IdempotencyStore, onhand *cache.Cache, cfg ServiceConfig) *Service {
	return &Service{repo: repo, catalog: catalog, audit: audit, idempotency: idem, cache: onhand, allowNeg: cfg.AllowNegativeStock}
}

// PostInbound applies a positive delta, e.g. a posted purchase receipt line.
func (s *Service) PostInbound(ctx context.Context, input MovementInput) (StockEntry, error) {
	if input.WarehouseID == 0 || input.ItemID == 0 {
		return StockEntry{}, fmt.Errorf("%w: warehouse and item required", ErrInvalidQuantity)
	}
	if input.Qty <= 0 {
		return StockEntry{}, ErrInvalidQuantity
	}
	return s.postSingle(ctx, movementParams{
		Code:        input.Code,
		WarehouseID: input.WarehouseID,
		ItemID:      input.ItemID,
		QtyChange:   input.Qty,
		TxType:      MovementIn,
		Note:        input.Note,
		ActorID:     input.ActorID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
	})
}

// PostOutbound applies a negative delta, e.g. a posted delivery line.
func (s *Service) PostOutbound(ctx context.Context, input MovementInput) (StockEntry, error) {
	return s.postOutboundAs(ctx, input, MovementOut)
}

// PostReturn applies a negative delta recorded with RETURN activity.
func (s *Service) PostReturn(ctx context.Context, input MovementInput) (StockEntry, error) {
	return s.postOutboundAs(ctx, input, MovementReturn)
}

func (s *Service) postOutboundAs(ctx context.Context, input MovementInput, txType MovementType) (StockEntry, error) {
	if input.WarehouseID == 0 || input.ItemID == 0 {
		return StockEntry{}, fmt.Errorf("%w: warehouse and item required", ErrInvalidQuantity)
	}
	if input.Qty <= 0 {
		return StockEntry{}, ErrInvalidQuantity
	}
	return s.postSingle(ctx, movementParams{
		Code:        input.Code,
		WarehouseID: input.WarehouseID,
		ItemID:      input.ItemID,
		QtyChange:   -input.Qty,
		TxType:      txType,
		Note:        input.Note,
		ActorID:     input.ActorID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
	})
}

// PostAdjustment applies a direct add/subtract. A subtraction larger than the
// current balance is clamped so the ledger lands on zero; the log entry
// records the quantity actually applied.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (StockEntry, error) {
	if input.WarehouseID == 0 || input.ItemID == 0 {
		return StockEntry{}, fmt.Errorf("%w: warehouse and item required", ErrInvalidQuantity)
	}
	if math.Abs(input.Qty) < 1e-9 {
		return StockEntry{}, ErrInvalidQuantity
	}
	return s.postSingle(ctx, movementParams{
		Code:        input.Code,
		WarehouseID: input.WarehouseID,
		ItemID:      input.ItemID,
		QtyChange:   input.Qty,
		TxType:      MovementAdjust,
		Note:        input.Note,
		ActorID:     input.ActorID,
		RefModule:   "INVENTORY",
		ClampAtZero: true,
	})
}

// PostTransfer moves stock between warehouses. Both legs, the source debit
// and the destination credit, commit in one transaction or not at all.
func (s *Service) PostTransfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.SrcWarehouse == 0 || input.DstWarehouse == 0 || input.ItemID == 0 {
		return TransferResult{}, fmt.Errorf("%w: warehouse and item required", ErrInvalidQuantity)
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return TransferResult{}, fmt.Errorf("%w: source and destination warehouse must differ", ErrInvalidQuantity)
	}
	if input.Qty <= 0 {
		return TransferResult{}, ErrInvalidQuantity
	}

	code := baseCode(input.Code)
	key := fmt.Sprintf("TRANSFER:%s:%d", code, input.ItemID)
	insertedKey, err := s.reserveKey(ctx, key)
	if err != nil {
		return TransferResult{}, err
	}

	var out, in StockEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = s.postMovementTx(ctx, tx, movementParams{
			Code:        fmt.Sprintf("%s-OUT", code),
			WarehouseID: input.SrcWarehouse,
			ItemID:      input.ItemID,
			QtyChange:   -input.Qty,
			TxType:      MovementTransfer,
			Note:        fmt.Sprintf("Transfer to warehouse %d: %s", input.DstWarehouse, input.Note),
			ActorID:     input.ActorID,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
		})
		if err != nil {
			return err
		}
		in, err = s.postMovementTx(ctx, tx, movementParams{
			Code:        fmt.Sprintf("%s-IN", code),
			WarehouseID: input.DstWarehouse,
			ItemID:      input.ItemID,
			QtyChange:   input.Qty,
			TxType:      MovementTransfer,
			Note:        fmt.Sprintf("Transfer from warehouse %d: %s", input.SrcWarehouse, input.Note),
			ActorID:     input.ActorID,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
		})
		return err
	})
	if err != nil {
		s.releaseKey(ctx, insertedKey, key)
		return TransferResult{}, err
	}

	s.invalidateOnhand(ctx, input.SrcWarehouse, input.ItemID)
	s.invalidateOnhand(ctx, input.DstWarehouse, input.ItemID)
	s.recordAudit(ctx, input.ActorID, "inventory:TRANSFER", input.ItemID, map[string]any{
		"src_warehouse": input.SrcWarehouse,
		"dst_warehouse": input.DstWarehouse,
		"qty":           input.Qty,
	})
	return TransferResult{
		ItemID:             input.ItemID,
		ItemCode:           out.ItemCode,
		SourceBalance:      out.BalanceQty,
		DestinationBalance: in.BalanceQty,
	}, nil
}

// TransferTx runs both transfer legs inside an existing transaction. Used by
// the transfer-approval flow so the status flip shares the commit.
func (s *Service) TransferTx(ctx context.Context, tx TxRepository, input TransferInput) (TransferResult, error) {
	if input.Qty <= 0 {
		return TransferResult{}, ErrInvalidQuantity
	}
	code := baseCode(input.Code)
	out, err := s.postMovementTx(ctx, tx, movementParams{
		Code:        fmt.Sprintf("%s-OUT", code),
		WarehouseID: input.SrcWarehouse,
		ItemID:      input.ItemID,
		QtyChange:   -input.Qty,
		TxType:      MovementTransfer,
		Note:        input.Note,
		ActorID:     input.ActorID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
	})
	if err != nil {
		return TransferResult{}, err
	}
	in, err := s.postMovementTx(ctx, tx, movementParams{
		Code:        fmt.Sprintf("%s-IN", code),
		WarehouseID: input.DstWarehouse,
		ItemID:      input.ItemID,
		QtyChange:   input.Qty,
		TxType:      MovementTransfer,
		Note:        input.Note,
		ActorID:     input.ActorID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
	})
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		ItemID:             input.ItemID,
		ItemCode:           out.ItemCode,
		SourceBalance:      out.BalanceQty,
		DestinationBalance: in.BalanceQty,
	}, nil
}

// InboundTx posts an inbound leg inside an existing transaction.
func (s *Service) InboundTx(ctx context.Context, tx TxRepository, input MovementInput) (StockEntry, error) {
	if input.Qty <= 0 {
		return StockEntry{}, ErrInvalidQuantity
	}
	return s.postMovementTx(ctx, tx, movementParams{
		Code:        input.Code,
		WarehouseID: input.WarehouseID,
		ItemID:      input.ItemID,
		QtyChange:   input.Qty,
		TxType:      MovementIn,
		Note:        input.Note,
		ActorID:     input.ActorID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
	})
}

// OutboundTx posts an outbound leg inside an existing transaction.
func (s *Service) OutboundTx(ctx context.Context, tx TxRepository, input MovementInput, txType MovementType) (StockEntry, error) {
	if input.Qty <= 0 {
		return StockEntry{}, ErrInvalidQuantity
	}
	return s.postMovementTx(ctx, tx, movementParams{
		Code:        input.Code,
		WarehouseID: input.WarehouseID,
		ItemID:      input.ItemID,
		QtyChange:   -input.Qty,
		TxType:      txType,
		Note:        input.Note,
		ActorID:     input.ActorID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
	})
}

// Repo exposes the repository port for services that compose their own
// transaction around inventory legs.
func (s *Service) Repo() RepositoryPort {
	return s.repo
}

// InvalidateOnhand drops cached balances after an out-of-band commit.
func (s *Service) InvalidateOnhand(ctx context.Context, warehouseID, itemID int64) {
	s.invalidateOnhand(ctx, warehouseID, itemID)
}

// GetStockCard lists log entries for one (warehouse, item) pair.
func (s *Service) GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockEntry, error) {
	if filter.WarehouseID == 0 || filter.ItemID == 0 {
		return nil, fmt.Errorf("%w: warehouse and item required", ErrInvalidQuantity)
	}
	return s.repo.GetStockCard(ctx, filter)
}

// GetOnhand returns the current ledger balance, served through the TTL cache
// and deduplicated across concurrent callers.
func (s *Service) GetOnhand(ctx context.Context, warehouseID, itemID int64) (Balance, error) {
	if warehouseID == 0 || itemID == 0 {
		return Balance{}, fmt.Errorf("%w: warehouse and item required", ErrInvalidQuantity)
	}
	key := onhandKey(warehouseID, itemID)
	v, err, _ := s.group.Do(key, func() (any, error) {
		var bal Balance
		err := s.cache.FetchJSON(ctx, key, &bal, func(ctx context.Context) (any, error) {
			return s.repo.GetBalance(ctx, warehouseID, itemID)
		})
		return bal, err
	})
	if err != nil {
		return Balance{}, err
	}
	return v.(Balance), nil
}

type movementParams struct {
	Code        string
	WarehouseID int64
	ItemID      int64
	QtyChange   float64
	TxType      MovementType
	Note        string
	ActorID     int64
	RefModule   string
	RefID       string
	ClampAtZero bool
}

// postSingle wraps one movement in its own transaction with idempotency and
// audit handling around it.
func (s *Service) postSingle(ctx context.Context, params movementParams) (StockEntry, error) {
	if params.Code == "" {
		params.Code = "MV-" + uuid.NewString()
	}
	key := fmt.Sprintf("%s:%s:%d:%d", params.TxType, params.Code, params.WarehouseID, params.ItemID)
	insertedKey, err := s.reserveKey(ctx, key)
	if err != nil {
		return StockEntry{}, err
	}

	var entry StockEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.postMovementTx(ctx, tx, params)
		return err
	})
	if err != nil {
		s.releaseKey(ctx, insertedKey, key)
		return StockEntry{}, err
	}

	s.invalidateOnhand(ctx, params.WarehouseID, params.ItemID)
	s.recordAudit(ctx, params.ActorID, fmt.Sprintf("inventory:%s", params.TxType), params.ItemID, map[string]any{
		"warehouse_id": params.WarehouseID,
		"qty":          params.QtyChange,
		"note":         params.Note,
	})
	return entry, nil
}

// postMovementTx is the reconciliation core: lock the balance row, apply the
// delta, write the movement header and append the log entry with the fresh
// balance snapshot. All inside the caller's transaction.
func (s *Service) postMovementTx(ctx context.Context, tx TxRepository, params movementParams) (StockEntry, error) {
	if params.QtyChange == 0 {
		return StockEntry{}, ErrInvalidQuantity
	}
	if params.WarehouseID == 0 || params.ItemID == 0 {
		return StockEntry{}, fmt.Errorf("%w: warehouse and item required", ErrInvalidQuantity)
	}
	meta, err := s.catalog.GetItemMeta(ctx, params.ItemID)
	if err != nil {
		return StockEntry{}, fmt.Errorf("%w: item %d: %v", ErrItemUnknown, params.ItemID, err)
	}

	now := time.Now().UTC()
	code := params.Code
	if code == "" {
		code = "MV-" + uuid.NewString()
	}

	balance, err := tx.GetBalanceForUpdate(ctx, params.WarehouseID, params.ItemID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return StockEntry{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{WarehouseID: params.WarehouseID, ItemID: params.ItemID}
	}

	qtyChange := params.QtyChange
	newQty := balance.Qty + qtyChange
	if newQty < -1e-4 && !s.allowNeg {
		if !params.ClampAtZero {
			return StockEntry{}, fmt.Errorf("%w: item %s in warehouse %d has %.2f, need %.2f",
				ErrInsufficientStock, meta.Code, params.WarehouseID, balance.Qty, -qtyChange)
		}
		qtyChange = -balance.Qty
		newQty = 0
	}
	if math.Abs(newQty) < 1e-4 {
		newQty = 0
	}

	movement := Movement{
		Code:        code,
		Type:        params.TxType,
		WarehouseID: params.WarehouseID,
		RefModule:   params.RefModule,
		RefID:       params.RefID,
		Note:        params.Note,
		PostedAt:    now,
		CreatedBy:   params.ActorID,
	}
	movementID, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return StockEntry{}, err
	}

	balance.Qty = newQty
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return StockEntry{}, err
	}

	entry := StockEntry{
		MovementID:  movementID,
		WarehouseID: params.WarehouseID,
		ItemID:      params.ItemID,
		ItemCode:    meta.Code,
		ItemName:    meta.Name,
		Category:    meta.Category,
		Unit:        meta.Unit,
		InQty:       math.Max(qtyChange, 0),
		OutQty:      math.Max(-qtyChange, 0),
		BalanceQty:  newQty,
		Activity:    params.TxType,
		ActorID:     params.ActorID,
		Particulars: params.Note,
		PostedAt:    now,
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return StockEntry{}, err
	}
	return entry, nil
}

func (s *Service) reserveKey(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil {
		return false, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) releaseKey(ctx context.Context, inserted bool, key string) {
	if inserted {
		_ = s.idempotency.Delete(ctx, key)
	}
}

func (s *Service) invalidateOnhand(ctx context.Context, warehouseID, itemID int64) {
	_ = s.cache.Invalidate(ctx, onhandKey(warehouseID, itemID))
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, itemID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.EntityStockMovement,
		EntityID: fmt.Sprintf("item:%d", itemID),
		Meta:     meta,
	})
}

func onhandKey(warehouseID, itemID int64) string {
	return cache.Key("onhand", fmt.Sprint(warehouseID), fmt.Sprint(itemID))
}

func baseCode(code string) string {
	if code != "" {
		return code
	}
	return fmt.Sprintf("TRF-%d", time.Now().UnixNano())
}
