package transfers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/platform/db"
	"github.com/stockline-wms/stockline/internal/shared"
)

// Decision captures the outcome applied to a pending transfer.
type Decision struct {
	Status  Status
	ActorID int64
	Reason  string
}

// Repository persists transfer requests.
type Repository interface {
	Create(ctx context.Context, t Transfer) (Transfer, error)
	Get(ctx context.Context, id int64) (Transfer, error)
	List(ctx context.Context, filter ListFilter) ([]Transfer, int, error)
	// Decide locks the header, refuses anything not PENDING, runs apply
	// inside the same transaction, then records the decision. Stock legs
	// posted by apply therefore commit or roll back together with the
	// status flip.
	Decide(ctx context.Context, id int64, d Decision, apply func(ctx context.Context, tx inventory.TxRepository, t Transfer) error) (Transfer, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const transferColumns = `id, doc_number, source_warehouse_id, destination_warehouse_id, note, status, requested_by, decided_by, decided_at, decision_reason, created_at, updated_at`

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	var decidedBy *int64
	var reason *string
	err := row.Scan(&t.ID, &t.DocNumber, &t.SourceID, &t.DestinationID, &t.Note, &t.Status,
		&t.RequestedBy, &decidedBy, &t.DecidedAt, &reason, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transfer{}, err
	}
	if decidedBy != nil {
		t.DecidedBy = *decidedBy
	}
	if reason != nil {
		t.DecisionReason = *reason
	}
	return t, nil
}

func loadLines(ctx context.Context, q rowQuerier, transferID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, transfer_id, item_id, qty FROM transfer_lines WHERE transfer_id = $1 ORDER BY id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TransferID, &l.ItemID, &l.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Create(ctx context.Context, t Transfer) (Transfer, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		doc, err := shared.NextDocNumber(ctx, tx, "TR")
		if err != nil {
			return err
		}
		t.DocNumber = doc
		t.Status = StatusPending
		now := time.Now()
		t.CreatedAt = now
		t.UpdatedAt = now
		err = tx.QueryRow(ctx, `INSERT INTO transfers (doc_number, source_warehouse_id, destination_warehouse_id, note, status, requested_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			t.DocNumber, t.SourceID, t.DestinationID, t.Note, t.Status, t.RequestedBy, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
		if err != nil {
			return err
		}
		for i := range t.Lines {
			t.Lines[i].TransferID = t.ID
			err = tx.QueryRow(ctx, `INSERT INTO transfer_lines (transfer_id, item_id, qty) VALUES ($1, $2, $3) RETURNING id`,
				t.ID, t.Lines[i].ItemID, t.Lines[i].Qty).Scan(&t.Lines[i].ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	return t, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Transfer, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transfer{}, ErrNotFound
	}
	if err != nil {
		return Transfer{}, err
	}
	t.Lines, err = loadLines(ctx, r.pool, t.ID)
	if err != nil {
		return Transfer{}, err
	}
	return t, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	query := `SELECT ` + transferColumns + ` FROM transfers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM transfers WHERE 1=1`
	args := []any{}
	countArgs := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		countArgs = append(countArgs, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
		countQuery += ` AND status = $` + strconv.Itoa(len(countArgs))
	}
	if filter.WarehouseID > 0 {
		args = append(args, filter.WarehouseID)
		countArgs = append(countArgs, filter.WarehouseID)
		n := strconv.Itoa(len(args))
		query += ` AND (source_warehouse_id = $` + n + ` OR destination_warehouse_id = $` + n + `)`
		m := strconv.Itoa(len(countArgs))
		countQuery += ` AND (source_warehouse_id = $` + m + ` OR destination_warehouse_id = $` + m + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, (filter.Page-1)*filter.Limit)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range result {
		result[i].Lines, err = loadLines(ctx, r.pool, result[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return result, total, nil
}

func (r *repository) Decide(ctx context.Context, id int64, d Decision, apply func(ctx context.Context, tx inventory.TxRepository, t Transfer) error) (Transfer, error) {
	var decided Transfer
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := scanTransfer(tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return ErrAlreadyDecided
		}
		t.Lines, err = loadLines(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if apply != nil {
			if err := apply(ctx, inventory.Wrap(tx), t); err != nil {
				return err
			}
		}
		now := time.Now()
		tag, err := tx.Exec(ctx, `UPDATE transfers SET status = $1, decided_by = $2, decided_at = $3, decision_reason = $4, updated_at = $5 WHERE id = $6 AND status = $7`,
			d.Status, d.ActorID, now, d.Reason, now, id, StatusPending)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyDecided
		}
		t.Status = d.Status
		t.DecidedBy = d.ActorID
		t.DecidedAt = &now
		t.DecisionReason = d.Reason
		t.UpdatedAt = now
		decided = t
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	return decided, nil
}
