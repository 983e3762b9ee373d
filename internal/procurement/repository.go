package procurement

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

// Repository is the pgx-backed persistence layer.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn in one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) NextDocNumber(ctx context.Context, prefix string) (string, error) {
	return shared.NextDocNumber(ctx, t.tx, prefix)
}

func (t *txRepository) Stock() inventory.TxRepository {
	return inventory.Wrap(t.tx)
}

const poColumns = `id, number, supplier_id, warehouse_id, status, total, note, ordered_at, created_by, created_at, updated_at`
const poLineColumns = `id, po_id, item_id, ordered_qty, received_qty, unit_price, line_total`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.WarehouseID, &po.Status, &po.Total, &po.Note, &po.OrderedAt, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func poLinesQuery(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, poID int64) ([]POLine, error) {
	rows, err := q.Query(ctx, `SELECT `+poLineColumns+` FROM purchase_order_lines WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []POLine
	for rows.Next() {
		var l POLine
		if err := rows.Scan(&l.ID, &l.POID, &l.ItemID, &l.OrderedQty, &l.ReceivedQty, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	lines, err := poLinesQuery(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

func (r *Repository) ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	return listDocs(ctx, r.pool, "purchase_orders", poColumns, filter, func(row pgx.Row) (PurchaseOrder, error) {
		return scanPO(row)
	})
}

func (t *txRepository) InsertPO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, supplier_id, warehouse_id, status, total, note, ordered_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		po.Number, po.SupplierID, po.WarehouseID, po.Status, po.Total, po.Note, po.OrderedAt, po.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (t *txRepository) InsertPOLine(ctx context.Context, line POLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_order_lines (po_id, item_id, ordered_qty, received_qty, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6)`,
		line.POID, line.ItemID, line.OrderedQty, line.ReceivedQty, line.UnitPrice, line.LineTotal)
	return err
}

func (t *txRepository) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(t.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	lines, err := poLinesQuery(ctx, t.tx, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

func (t *txRepository) UpdatePOStatus(ctx context.Context, id int64, from []POStatus, to POStatus) (bool, error) {
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`,
		to, time.Now(), id, states)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepository) AddReceivedQty(ctx context.Context, poLineID int64, qty float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_order_lines SET received_qty = received_qty + $1 WHERE id = $2 AND received_qty + $1 <= ordered_qty + 1e-9`, qty, poLineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverReceipt
	}
	return nil
}

const receiptColumns = `id, number, po_id, warehouse_id, status, note, received_at, created_by, created_at, updated_at`
const receiptLineColumns = `id, receipt_id, po_line_id, item_id, qty, qty_left`

func scanReceipt(row pgx.Row) (PurchaseReceipt, error) {
	var rc PurchaseReceipt
	err := row.Scan(&rc.ID, &rc.Number, &rc.POID, &rc.WarehouseID, &rc.Status, &rc.Note, &rc.ReceivedAt, &rc.CreatedBy, &rc.CreatedAt, &rc.UpdatedAt)
	return rc, err
}

func receiptLinesQuery(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, receiptID int64) ([]ReceiptLine, error) {
	rows, err := q.Query(ctx, `SELECT `+receiptLineColumns+` FROM purchase_receipt_lines WHERE receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ReceiptLine
	for rows.Next() {
		var l ReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.POLineID, &l.ItemID, &l.Qty, &l.QtyLeft); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) GetReceipt(ctx context.Context, id int64) (PurchaseReceipt, []ReceiptLine, error) {
	rc, err := scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM purchase_receipts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseReceipt{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseReceipt{}, nil, err
	}
	lines, err := receiptLinesQuery(ctx, r.pool, id)
	if err != nil {
		return PurchaseReceipt{}, nil, err
	}
	return rc, lines, nil
}

func (r *Repository) ListReceipts(ctx context.Context, filter ListFilter) ([]PurchaseReceipt, int, error) {
	return listDocs(ctx, r.pool, "purchase_receipts", receiptColumns, filter, func(row pgx.Row) (PurchaseReceipt, error) {
		return scanReceipt(row)
	})
}

func (t *txRepository) InsertReceipt(ctx context.Context, receipt PurchaseReceipt) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_receipts (number, po_id, warehouse_id, status, note, received_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		receipt.Number, receipt.POID, receipt.WarehouseID, receipt.Status, receipt.Note, receipt.ReceivedAt, receipt.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (t *txRepository) InsertReceiptLine(ctx context.Context, line ReceiptLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_receipt_lines (receipt_id, po_line_id, item_id, qty, qty_left)
VALUES ($1, $2, $3, $4, $5)`,
		line.ReceiptID, line.POLineID, line.ItemID, line.Qty, line.QtyLeft)
	return err
}

func (t *txRepository) GetReceiptForUpdate(ctx context.Context, id int64) (PurchaseReceipt, []ReceiptLine, error) {
	rc, err := scanReceipt(t.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM purchase_receipts WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseReceipt{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseReceipt{}, nil, err
	}
	lines, err := receiptLinesQuery(ctx, t.tx, id)
	if err != nil {
		return PurchaseReceipt{}, nil, err
	}
	return rc, lines, nil
}

func (t *txRepository) UpdateReceiptStatus(ctx context.Context, id int64, from, to ReceiptStatus) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_receipts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now(), id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepository) SubtractQtyLeft(ctx context.Context, receiptLineID int64, qty float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_receipt_lines SET qty_left = qty_left - $1 WHERE id = $2 AND qty_left >= $1 - 1e-9`, qty, receiptLineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverReturn
	}
	return nil
}

const returnColumns = `id, number, receipt_id, status, reason, created_by, decided_by, decided_at, created_at, updated_at`
const returnLineColumns = `id, return_id, receipt_line_id, item_id, qty`

func scanReturn(row pgx.Row) (PurchaseReturn, error) {
	var ret PurchaseReturn
	var decidedBy *int64
	err := row.Scan(&ret.ID, &ret.Number, &ret.ReceiptID, &ret.Status, &ret.Reason, &ret.CreatedBy, &decidedBy, &ret.DecidedAt, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		return PurchaseReturn{}, err
	}
	if decidedBy != nil {
		ret.DecidedBy = *decidedBy
	}
	return ret, nil
}

func returnLinesQuery(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, returnID int64) ([]ReturnLine, error) {
	rows, err := q.Query(ctx, `SELECT `+returnLineColumns+` FROM purchase_return_lines WHERE return_id = $1 ORDER BY id`, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ReturnLine
	for rows.Next() {
		var l ReturnLine
		if err := rows.Scan(&l.ID, &l.ReturnID, &l.ReceiptLineID, &l.ItemID, &l.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) GetReturn(ctx context.Context, id int64) (PurchaseReturn, []ReturnLine, error) {
	ret, err := scanReturn(r.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM purchase_returns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseReturn{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseReturn{}, nil, err
	}
	lines, err := returnLinesQuery(ctx, r.pool, id)
	if err != nil {
		return PurchaseReturn{}, nil, err
	}
	return ret, lines, nil
}

func (r *Repository) ListReturns(ctx context.Context, filter ListFilter) ([]PurchaseReturn, int, error) {
	return listDocs(ctx, r.pool, "purchase_returns", returnColumns, filter, func(row pgx.Row) (PurchaseReturn, error) {
		return scanReturn(row)
	})
}

func (t *txRepository) InsertReturn(ctx context.Context, ret PurchaseReturn) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_returns (number, receipt_id, status, reason, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		ret.Number, ret.ReceiptID, ret.Status, ret.Reason, ret.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (t *txRepository) InsertReturnLine(ctx context.Context, line ReturnLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_return_lines (return_id, receipt_line_id, item_id, qty)
VALUES ($1, $2, $3, $4)`,
		line.ReturnID, line.ReceiptLineID, line.ItemID, line.Qty)
	return err
}

func (t *txRepository) GetReturnForUpdate(ctx context.Context, id int64) (PurchaseReturn, []ReturnLine, error) {
	ret, err := scanReturn(t.tx.QueryRow(ctx, `SELECT `+returnColumns+` FROM purchase_returns WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseReturn{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseReturn{}, nil, err
	}
	lines, err := returnLinesQuery(ctx, t.tx, id)
	if err != nil {
		return PurchaseReturn{}, nil, err
	}
	return ret, lines, nil
}

func (t *txRepository) UpdateReturnStatus(ctx context.Context, id int64, from, to ReturnStatus, actorID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_returns SET status = $1, decided_by = $2, decided_at = $3, updated_at = $3 WHERE id = $4 AND status = $5`,
		to, actorID, time.Now(), id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// listDocs pages a document table filtered by status.
func listDocs[T any](ctx context.Context, pool *pgxpool.Pool, table, columns string, filter ListFilter, scan func(pgx.Row) (T, error)) ([]T, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	query := `SELECT ` + columns + ` FROM ` + table + ` WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM ` + table + ` WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		countArgs = append(countArgs, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
		countQuery += ` AND status = $` + strconv.Itoa(len(countArgs))
	}

	var total int
	if err := pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, (filter.Page-1)*filter.Limit)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		doc, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, doc)
	}
	return result, total, rows.Err()
}
