// Package sales covers the outbound side of the warehouse: customer orders,
// deliveries against them, and invoices.
package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the sales order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusPrepared  OrderStatus = "PREPARED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// DeliveryStatus is the delivery order lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusDraft     DeliveryStatus = "DRAFT"
	DeliveryStatusPosted    DeliveryStatus = "POSTED"
	DeliveryStatusCancelled DeliveryStatus = "CANCELLED"
)

// InvoiceStatus is the sales invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "DRAFT"
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// SalesOrder is a customer's order against one warehouse.
type SalesOrder struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	CustomerID  int64           `json:"customer_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Status      OrderStatus     `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Note        string          `json:"note"`
	OrderedAt   time.Time       `json:"ordered_at"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderLine tracks ordered against delivered. The undelivered remainder is
// the line's availability for the next delivery.
type OrderLine struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ItemID       int64           `json:"item_id"`
	OrderedQty   float64         `json:"ordered_qty"`
	DeliveredQty float64         `json:"delivered_qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// Available is the qty still deliverable on the line.
func (l OrderLine) Available() float64 {
	return l.OrderedQty - l.DeliveredQty
}

// Delivery ships goods against a sales order.
type Delivery struct {
	ID          int64          `json:"id"`
	Number      string         `json:"number"`
	OrderID     int64          `json:"order_id"`
	WarehouseID int64          `json:"warehouse_id"`
	Status      DeliveryStatus `json:"status"`
	Note        string         `json:"note"`
	DeliveredAt time.Time      `json:"delivered_at"`
	CreatedBy   int64          `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DeliveryLine is one shipped item.
type DeliveryLine struct {
	ID          int64   `json:"id"`
	DeliveryID  int64   `json:"delivery_id"`
	OrderLineID int64   `json:"order_line_id"`
	ItemID      int64   `json:"item_id"`
	Qty         float64 `json:"qty"`
}

// Invoice bills a customer for an order.
type Invoice struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	Status     InvoiceStatus   `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Paid       decimal.Decimal `json:"paid"`
	IssuedAt   *time.Time      `json:"issued_at,omitempty"`
	DueAt      *time.Time      `json:"due_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// PostingResult reports one shipped line after a delivery posting: the item
// the movement touched and its on-hand balance in the delivery warehouse
// right after the leg committed.
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
	ErrNotFound = errors.New("sales: not found")
	// ErrValidation indicates a malformed document.
	ErrValidation = errors.New("sales: validation failed")
	// ErrInvalidState indicates the document left the state the operation
	// requires.
	ErrInvalidState = errors.New("sales: invalid document state")
	// ErrOverDelivery indicates a delivery exceeds a line's remainder.
	ErrOverDelivery = errors.New("sales: delivery qty exceeds ordered remainder")
	// ErrOverPayment indicates a payment exceeds the invoice balance.
	ErrOverPayment = errors.New("sales: payment exceeds invoice balance")
	// ErrNoLines indicates a document without lines.
	ErrNoLines = errors.New("sales: at least one line required")
)
