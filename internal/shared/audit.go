package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audited entity kinds across the warehouse domain.
const (
	EntityStockMovement   = "stock_movement"
	EntityTransfer        = "transfer"
	EntityPurchaseOrder   = "purchase_order"
	EntityPurchaseReceipt = "purchase_receipt"
	EntityPurchaseReturn  = "purchase_return"
	EntitySalesOrder      = "sales_order"
	EntityDelivery        = "delivery"
	EntityInvoice         = "invoice"
)

// AuditEntry is one row of the audit trail: who did what to which document.
type AuditEntry struct {
	ActorID  int64
	Action   string // dotted verb, e.g. "receipt.posted"
	Entity   string // one of the Entity* constants
	EntityID string
	Meta     map[string]any // free-form detail, stored as jsonb
	At       time.Time      // zero means now
}

func (e AuditEntry) validate() error {
	switch {
	case e.Action == "":
		return errors.New("audit entry needs an action")
	case e.Entity == "":
		return errors.New("audit entry needs an entity")
	case e.EntityID == "":
		return errors.New("audit entry needs an entity id")
	}
	return nil
}

// AuditLogger appends entries to the audit_logs table. Services treat it as
// best-effort: a failed write is logged and never rolls back the document.
type AuditLogger struct {
	pool *pgxpool.Pool
}

func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry, stamping it with the current time when At is
// zero.
func (l *AuditLogger) Record(ctx context.Context, e AuditEntry) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if err := e.validate(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil {
		return err
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ActorID, e.Action, e.Entity, e.EntityID, metaJSON, at)
	return err
}
