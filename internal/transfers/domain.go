// Package transfers manages inter-warehouse transfer requests. A request
// carries no stock effect until it is approved; approval posts both ledger
// legs of every line and the status flip in a single transaction.
package transfers

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a transfer request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Line is one item position on a transfer request.
type Line struct {
	ID         int64   `json:"id"`
	TransferID int64   `json:"transfer_id"`
	ItemID     int64   `json:"item_id"`
	Qty        float64 `json:"qty"`
}

// LineResult reports the post-approval balances at both warehouses.
type LineResult struct {
	ItemID             int64   `json:"item_id"`
	ItemCode           string  `json:"item_code"`
	Qty                float64 `json:"qty"`
	SourceBalance      float64 `json:"source_balance"`
	DestinationBalance float64 `json:"destination_balance"`
}

// Transfer is a request to move stock between two warehouses.
type Transfer struct {
	ID             int64      `json:"id"`
	DocNumber      string     `json:"doc_number"`
	SourceID       int64      `json:"source_warehouse_id"`
	DestinationID  int64      `json:"destination_warehouse_id"`
	Note           string     `json:"note"`
	Status         Status     `json:"status"`
	RequestedBy    int64      `json:"requested_by"`
	DecidedBy      int64      `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	DecisionReason string     `json:"decision_reason,omitempty"`
	Lines          []Line     `json:"lines"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ListFilter narrows transfer listings.
type ListFilter struct {
	Status      Status
	WarehouseID int64
	Page        int
	Limit       int
}

var (
	// ErrNotFound indicates no transfer with the given id exists.
	ErrNotFound = errors.New("transfers: not found")
	// ErrAlreadyDecided indicates the request left PENDING earlier; a second
	// approval or rejection is refused without touching stock.
	ErrAlreadyDecided = errors.New("transfers: request already decided")
	// ErrSameWarehouse indicates source and destination are equal.
	ErrSameWarehouse = errors.New("transfers: source and destination must differ")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("transfers: quantity must be positive")
	// ErrNoLines indicates a request without any item lines.
	ErrNoLines = errors.New("transfers: at least one line required")
	// ErrDuplicateItem indicates the same item appears on two lines.
	ErrDuplicateItem = errors.New("transfers: duplicate item line")
)
