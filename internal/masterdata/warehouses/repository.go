package warehouses

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	Create(ctx context.Context, wh Warehouse) (Warehouse, error)
	Update(ctx context.Context, id int64, wh Warehouse) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	filters = filters.Normalize()

	query := `SELECT id, code, name, address, is_active, created_at, updated_at FROM warehouses WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM warehouses WHERE 1=1`
	args := []any{}
	countArgs := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
		clause := ` AND (name ILIKE $` + strconv.Itoa(len(args)) + ` OR code ILIKE $` + strconv.Itoa(len(args)) + `)`
		query += clause
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(len(countArgs)) + ` OR code ILIKE $` + strconv.Itoa(len(countArgs)) + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		countArgs = append(countArgs, *filters.IsActive)
		query += ` AND is_active = $` + strconv.Itoa(len(args))
		countQuery += ` AND is_active = $` + strconv.Itoa(len(countArgs))
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filters.SortDir == "desc" {
		dir = "DESC"
	}
	switch filters.SortBy {
	case "code":
		query += ` ORDER BY code ` + dir
	case "created_at":
		query += ` ORDER BY created_at ` + dir
	default:
		query += ` ORDER BY name ` + dir
	}
	args = append(args, filters.Limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filters.Offset())
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Warehouse
	for rows.Next() {
		var wh Warehouse
		if err := rows.Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Address, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, wh)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	var wh Warehouse
	err := r.db.QueryRow(ctx, `SELECT id, code, name, address, is_active, created_at, updated_at FROM warehouses WHERE id = $1`, id).
		Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Address, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt)
	if err != nil {
		return Warehouse{}, shared.MapPgError(err)
	}
	return wh, nil
}

func (r *repository) Create(ctx context.Context, wh Warehouse) (Warehouse, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO warehouses (code, name, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		wh.Code, wh.Name, wh.Address, wh.IsActive, now, now).Scan(&wh.ID)
	if err != nil {
		return Warehouse{}, shared.MapPgError(err)
	}
	wh.CreatedAt = now
	wh.UpdatedAt = now
	return wh, nil
}

func (r *repository) Update(ctx context.Context, id int64, wh Warehouse) error {
	tag, err := r.db.Exec(ctx, `UPDATE warehouses SET code = $1, name = $2, address = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		wh.Code, wh.Name, wh.Address, wh.IsActive, time.Now(), id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM warehouses WHERE id = $1`, id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
