package sales

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

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const orderColumns = `id, number, customer_id, warehouse_id, status, total, note, ordered_at, created_by, created_at, updated_at`
const orderLineColumns = `id, order_id, item_id, ordered_qty, delivered_qty, unit_price, line_total`

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var o SalesOrder
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.WarehouseID, &o.Status, &o.Total, &o.Note, &o.OrderedAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func orderLines(ctx context.Context, q querier, orderID int64) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `SELECT `+orderLineColumns+` FROM sales_order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.OrderedQty, &l.DeliveredQty, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (SalesOrder, []OrderLine, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesOrder{}, nil, ErrNotFound
	}
	if err != nil {
		return SalesOrder{}, nil, err
	}
	lines, err := orderLines(ctx, r.pool, id)
	if err != nil {
		return SalesOrder{}, nil, err
	}
	return order, lines, nil
}

func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]SalesOrder, int, error) {
	return listDocs(ctx, r.pool, "sales_orders", orderColumns, filter, scanOrder)
}

func (t *txRepository) InsertOrder(ctx context.Context, order SalesOrder) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO sales_orders (number, customer_id, warehouse_id, status, total, note, ordered_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		order.Number, order.CustomerID, order.WarehouseID, order.Status, order.Total, order.Note, order.OrderedAt, order.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (t *txRepository) InsertOrderLine(ctx context.Context, line OrderLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO sales_order_lines (order_id, item_id, ordered_qty, delivered_qty, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6)`,
		line.OrderID, line.ItemID, line.OrderedQty, line.DeliveredQty, line.UnitPrice, line.LineTotal)
	return err
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (SalesOrder, []OrderLine, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesOrder{}, nil, ErrNotFound
	}
	if err != nil {
		return SalesOrder{}, nil, err
	}
	lines, err := orderLines(ctx, t.tx, id)
	if err != nil {
		return SalesOrder{}, nil, err
	}
	return order, lines, nil
}

func (t *txRepository) UpdateOrderStatus(ctx context.Context, id int64, from []OrderStatus, to OrderStatus) (bool, error) {
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}
	tag, err := t.tx.Exec(ctx, `UPDATE sales_orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`,
		to, time.Now(), id, states)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepository) AddDeliveredQty(ctx context.Context, orderLineID int64, qty float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales_order_lines SET delivered_qty = delivered_qty + $1 WHERE id = $2 AND delivered_qty + $1 <= ordered_qty + 1e-9`, qty, orderLineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverDelivery
	}
	return nil
}

const deliveryColumns = `id, number, order_id, warehouse_id, status, note, delivered_at, created_by, created_at, updated_at`
const deliveryLineColumns = `id, delivery_id, order_line_id, item_id, qty`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.Number, &d.OrderID, &d.WarehouseID, &d.Status, &d.Note, &d.DeliveredAt, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func deliveryLines(ctx context.Context, q querier, deliveryID int64) ([]DeliveryLine, error) {
	rows, err := q.Query(ctx, `SELECT `+deliveryLineColumns+` FROM delivery_lines WHERE delivery_id = $1 ORDER BY id`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []DeliveryLine
	for rows.Next() {
		var l DeliveryLine
		if err := rows.Scan(&l.ID, &l.DeliveryID, &l.OrderLineID, &l.ItemID, &l.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) GetDelivery(ctx context.Context, id int64) (Delivery, []DeliveryLine, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, nil, ErrNotFound
	}
	if err != nil {
		return Delivery{}, nil, err
	}
	lines, err := deliveryLines(ctx, r.pool, id)
	if err != nil {
		return Delivery{}, nil, err
	}
	return d, lines, nil
}

func (r *Repository) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	return listDocs(ctx, r.pool, "deliveries", deliveryColumns, filter, scanDelivery)
}

func (t *txRepository) InsertDelivery(ctx context.Context, delivery Delivery) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO deliveries (number, order_id, warehouse_id, status, note, delivered_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		delivery.Number, delivery.OrderID, delivery.WarehouseID, delivery.Status, delivery.Note, delivery.DeliveredAt, delivery.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (t *txRepository) InsertDeliveryLine(ctx context.Context, line DeliveryLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO delivery_lines (delivery_id, order_line_id, item_id, qty)
VALUES ($1, $2, $3, $4)`,
		line.DeliveryID, line.OrderLineID, line.ItemID, line.Qty)
	return err
}

func (t *txRepository) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, []DeliveryLine, error) {
	d, err := scanDelivery(t.tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, nil, ErrNotFound
	}
	if err != nil {
		return Delivery{}, nil, err
	}
	lines, err := deliveryLines(ctx, t.tx, id)
	if err != nil {
		return Delivery{}, nil, err
	}
	return d, lines, nil
}

func (t *txRepository) UpdateDeliveryStatus(ctx context.Context, id int64, from, to DeliveryStatus) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE deliveries SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now(), id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const invoiceColumns = `id, number, order_id, customer_id, status, total, paid, issued_at, due_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.CustomerID, &inv.Status, &inv.Total, &inv.Paid, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	return listDocs(ctx, r.pool, "sales_invoices", invoiceColumns, filter, scanInvoice)
}

func (t *txRepository) InsertInvoice(ctx context.Context, invoice Invoice) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO sales_invoices (number, order_id, customer_id, status, total, paid, issued_at, due_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		invoice.Number, invoice.OrderID, invoice.CustomerID, invoice.Status, invoice.Total, invoice.Paid, invoice.IssuedAt, invoice.DueAt, now, now).Scan(&id)
	return id, err
}

func (t *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func (t *txRepository) UpdateInvoice(ctx context.Context, invoice Invoice) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales_invoices SET status = $1, paid = $2, issued_at = $3, updated_at = $4 WHERE id = $5`,
		invoice.Status, invoice.Paid, invoice.IssuedAt, time.Now(), invoice.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
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
