// Package jobs holds the background workers: the nightly stock integrity
// scan and the idempotency key cleanup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockIntegrity compares ledger balances against the newest log
	// entry for every (warehouse, item) pair.
	TaskStockIntegrity = "stock:integrity"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StockIntegrityPayload scopes the scan; a zero WarehouseID scans everything.
type StockIntegrityPayload struct {
	WarehouseID int64 `json:"warehouse_id,omitempty"`
}

// NewStockIntegrityTask constructs the integrity scan task.
func NewStockIntegrityTask(warehouseID int64) (*asynq.Task, error) {
	data, err := json.Marshal(StockIntegrityPayload{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockIntegrity, data), nil
}

// IdempotencyCleanupPayload sets the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
