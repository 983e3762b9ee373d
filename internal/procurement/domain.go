// Package procurement covers the inbound side of the warehouse: purchase
// orders, goods receipts against them, and supplier returns.
package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// POStatus is the purchase order lifecycle.
type POStatus string

const (
	POStatusDraft     POStatus = "DRAFT"
	POStatusApproved  POStatus = "APPROVED"
	POStatusPartial   POStatus = "PARTIAL"
	POStatusCompleted POStatus = "COMPLETED"
	POStatusCancelled POStatus = "CANCELLED"
)

// ReceiptStatus is the goods receipt lifecycle.
type ReceiptStatus string

const (
	ReceiptStatusDraft     ReceiptStatus = "DRAFT"
	ReceiptStatusPosted    ReceiptStatus = "POSTED"
	ReceiptStatusCancelled ReceiptStatus = "CANCELLED"
)

// ReturnStatus is the supplier return lifecycle.
type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "PENDING"
	ReturnStatusApproved ReturnStatus = "APPROVED"
	ReturnStatusRejected ReturnStatus = "REJECTED"
)

// PurchaseOrder is the commercial document ordering stock from a supplier.
type PurchaseOrder struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	SupplierID  int64           `json:"supplier_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Status      POStatus        `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Note        string          `json:"note"`
	OrderedAt   time.Time       `json:"ordered_at"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// POLine keeps ordered and received side by side. Ordered qty is never
// rewritten after approval; the remainder is ordered minus received.
type POLine struct {
	ID          int64           `json:"id"`
	POID        int64           `json:"po_id"`
	ItemID      int64           `json:"item_id"`
	OrderedQty  float64         `json:"ordered_qty"`
	ReceivedQty float64         `json:"received_qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PurchaseReceipt records goods arriving against a purchase order.
type PurchaseReceipt struct {
	ID          int64         `json:"id"`
	Number      string        `json:"number"`
	POID        int64         `json:"po_id"`
	WarehouseID int64         `json:"warehouse_id"`
	Status      ReceiptStatus `json:"status"`
	Note        string        `json:"note"`
	ReceivedAt  time.Time     `json:"received_at"`
	CreatedBy   int64         `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ReceiptLine is one received item. QtyLeft is how much of the line can
// still be returned to the supplier.
type ReceiptLine struct {
	ID        int64   `json:"id"`
	ReceiptID int64   `json:"receipt_id"`
	POLineID  int64   `json:"po_line_id"`
	ItemID    int64   `json:"item_id"`
	Qty       float64 `json:"qty"`
	QtyLeft   float64 `json:"qty_left"`
}

// PurchaseReturn sends previously received goods back to the supplier.
type PurchaseReturn struct {
	ID        int64        `json:"id"`
	Number    string       `json:"number"`
	ReceiptID int64        `json:"receipt_id"`
	Status    ReturnStatus `json:"status"`
	Reason    string       `json:"reason"`
	CreatedBy int64        `json:"created_by"`
	DecidedBy int64        `json:"decided_by,omitempty"`
	DecidedAt *time.Time   `json:"decided_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ReturnLine is one returned item.
type ReturnLine struct {
	ID            int64   `json:"id"`
	ReturnID      int64   `json:"return_id"`
	ReceiptLineID int64   `json:"receipt_line_id"`
	ItemID        int64   `json:"item_id"`
	Qty           float64 `json:"qty"`
}

// PostingResult reports one reconciled line after a posting: the item the
// movement touched and its on-hand balance in the document's warehouse right
// after the leg committed.
type PostingResult struct {
	ItemID     int64   `json:"item_id"`
	ItemCode   string  `json:"item_code"`
	Qty        float64 `json:"qty"`
	NewBalance float64 `json:"new_balance"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	Status string
	Page   int
	Limit  int
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("procurement: not found")
	// ErrValidation indicates a malformed document.
	ErrValidation = errors.New("procurement: validation failed")
	// ErrInvalidState indicates the document left the state the operation
	// requires; repeating a posting or approval lands here.
	ErrInvalidState = errors.New("procurement: invalid document state")
	// ErrOverReceipt indicates a receipt would exceed a line's ordered qty.
	ErrOverReceipt = errors.New("procurement: received qty exceeds ordered qty")
	// ErrOverReturn indicates a return exceeds what the receipt has left.
	ErrOverReturn = errors.New("procurement: return qty exceeds receipt remainder")
	// ErrNoLines indicates a document without lines.
	ErrNoLines = errors.New("procurement: at least one line required")
)
