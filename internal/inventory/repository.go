package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
	GetBalanceForUpdate(ctx context.Context, warehouseID, itemID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertEntry(ctx context.Context, entry StockEntry) error
}

type txRepository struct {
	tx pgx.Tx
}

// ErrBalanceNotFound indicates a missing ledger row.
var ErrBalanceNotFound = errors.New("inventory balance not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Wrap adapts an externally owned pgx.Tx, letting other modules run inventory
// legs inside their own transaction.
func Wrap(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// GetBalance reads the current ledger row without locking.
func (r *Repository) GetBalance(ctx context.Context, warehouseID, itemID int64) (Balance, error) {
	var bal Balance
	err := r.pool.QueryRow(ctx, `SELECT warehouse_id, item_id, qty, updated_at FROM stock_balances WHERE warehouse_id=$1 AND item_id=$2`, warehouseID, itemID).
		Scan(&bal.WarehouseID, &bal.ItemID, &bal.Qty, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{WarehouseID: warehouseID, ItemID: itemID}, nil
		}
		return Balance{}, err
	}
	return bal, nil
}

// GetStockCard lists log entries ordered by posting time.
func (r *Repository) GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockEntry, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT movement_id, warehouse_id, item_id, item_code, item_name, category, unit, in_qty, out_qty, balance_qty, activity, actor_id, particulars, posted_at
FROM stock_entries
WHERE warehouse_id=$1 AND item_id=$2 AND posted_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $5`, filter.WarehouseID, filter.ItemID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []StockEntry{}
	for rows.Next() {
		var e StockEntry
		if err := rows.Scan(&e.MovementID, &e.WarehouseID, &e.ItemID, &e.ItemCode, &e.ItemName, &e.Category, &e.Unit, &e.InQty, &e.OutQty, &e.BalanceQty, &e.Activity, &e.ActorID, &e.Particulars, &e.PostedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (code, mv_type, warehouse_id, ref_module, ref_id, note, posted_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`, mv.Code, string(mv.Type), nullInt(mv.WarehouseID), mv.RefModule, nullStr(mv.RefID), mv.Note, mv.PostedAt, nullInt(mv.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, warehouseID, itemID int64) (Balance, error) {
	var bal Balance
	err := r.tx.QueryRow(ctx, `SELECT warehouse_id, item_id, qty, updated_at FROM stock_balances WHERE warehouse_id=$1 AND item_id=$2 FOR UPDATE`, warehouseID, itemID).
		Scan(&bal.WarehouseID, &bal.ItemID, &bal.Qty, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{WarehouseID: warehouseID, ItemID: itemID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (warehouse_id, item_id, qty, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (warehouse_id, item_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`, balance.WarehouseID, balance.ItemID, balance.Qty)
	return err
}

func (r *txRepository) InsertEntry(ctx context.Context, entry StockEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_entries (movement_id, warehouse_id, item_id, item_code, item_name, category, unit, in_qty, out_qty, balance_qty, activity, actor_id, particulars, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		entry.MovementID, entry.WarehouseID, entry.ItemID, entry.ItemCode, entry.ItemName, entry.Category, entry.Unit,
		entry.InQty, entry.OutQty, entry.BalanceQty, string(entry.Activity), nullInt(entry.ActorID), entry.Particulars, entry.PostedAt)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
