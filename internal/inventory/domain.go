package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement (purchase receipt leg).
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement (delivery leg).
	MovementOut MovementType = "OUT"
	// MovementTransfer is used for inter-warehouse transfer legs.
	MovementTransfer MovementType = "TRANSFER"
	// MovementReturn indicates a purchase return leg.
	MovementReturn MovementType = "RETURN"
	// MovementAdjust indicates a manual adjustment.
	MovementAdjust MovementType = "ADJUST"
)

// Movement models the header of a stock movement.
type Movement struct {
	ID          int64
	Code        string
	Type        MovementType
	WarehouseID int64
	RefModule   string
	RefID       string
	Note        string
	PostedAt    time.Time
	CreatedBy   int64
	CreatedAt   time.Time
}

// Balance is the ledger row: the running quantity for an item in a warehouse.
type Balance struct {
	WarehouseID int64     `json:"warehouse_id"`
	ItemID      int64     `json:"item_id"`
	Qty         float64   `json:"qty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockEntry is one line of the append-only movement log. BalanceQty is the
// ledger quantity snapshotted in the same transaction that applied the delta,
// so the newest entry always agrees with the ledger.
type StockEntry struct {
	MovementID  int64        `json:"-"`
	WarehouseID int64        `json:"warehouse_id"`
	ItemID      int64        `json:"item_id"`
	ItemCode    string       `json:"item_code"`
	ItemName    string       `json:"item_name"`
	Category    string       `json:"category"`
	Unit        string       `json:"unit"`
	InQty       float64      `json:"in_qty"`
	OutQty      float64      `json:"out_qty"`
	BalanceQty  float64      `json:"balance_qty"`
	Activity    MovementType `json:"activity"`
	ActorID     int64        `json:"actor_id"`
	Particulars string       `json:"particulars"`
	PostedAt    time.Time    `json:"posted_at"`
}

// MovementInput describes a single-leg stock movement request.
type MovementInput struct {
	Code        string
	WarehouseID int64
	ItemID      int64
	Qty         float64
	Note        string
	ActorID     int64
	RefModule   string
	RefID       string
}

// AdjustmentInput describes a direct add/subtract of stock.
type AdjustmentInput struct {
	Code        string
	WarehouseID int64
	ItemID      int64
	Qty         float64
	Note        string
	ActorID     int64
}

// TransferInput describes a transfer of one item between warehouses.
type TransferInput struct {
	Code         string
	ItemID       int64
	Qty          float64
	SrcWarehouse int64
	DstWarehouse int64
	Note         string
	ActorID      int64
	RefModule    string
	RefID        string
}

// TransferResult reports the post-apply balances of both legs.
type TransferResult struct {
	ItemID             int64   `json:"item_id"`
	ItemCode           string  `json:"item_code"`
	SourceBalance      float64 `json:"source_balance"`
	DestinationBalance float64 `json:"destination_balance"`
}

// StockCardFilter filters log entries for the stock card listing.
type StockCardFilter struct {
	WarehouseID int64
	ItemID      int64
	From        time.Time
	To          time.Time
	Limit       int
}

// ErrInsufficientStock is returned when an outbound movement would drive the
// ledger below zero.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")

// ErrItemUnknown indicates the item catalog has no record for the item.
var ErrItemUnknown = errors.New("inventory: unknown item")
