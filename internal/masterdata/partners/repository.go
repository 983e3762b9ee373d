package partners

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Partner, int, error)
	Get(ctx context.Context, id int64) (Partner, error)
	Create(ctx context.Context, p Partner) (Partner, error)
	Update(ctx context.Context, id int64, p Partner) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db    *pgxpool.Pool
	table string
}

// NewSupplierRepository stores partners in the suppliers table.
func NewSupplierRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db, table: "suppliers"}
}

// NewCustomerRepository stores partners in the customers table.
func NewCustomerRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db, table: "customers"}
}

const partnerColumns = `id, code, name, contact_name, phone, email, address, is_active, created_at, updated_at`

func scanPartner(row interface{ Scan(dest ...any) error }) (Partner, error) {
	var p Partner
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.ContactName, &p.Phone, &p.Email, &p.Address, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Partner, int, error) {
	filters = filters.Normalize()

	query := `SELECT ` + partnerColumns + ` FROM ` + r.table + ` WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM ` + r.table + ` WHERE 1=1`
	args := []any{}
	countArgs := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
		m := strconv.Itoa(len(countArgs))
		countQuery += ` AND (name ILIKE $` + m + ` OR code ILIKE $` + m + `)`
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

	var result []Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Partner, error) {
	p, err := scanPartner(r.db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM `+r.table+` WHERE id = $1`, id))
	if err != nil {
		return Partner{}, shared.MapPgError(err)
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, p Partner) (Partner, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO `+r.table+` (code, name, contact_name, phone, email, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		p.Code, p.Name, p.ContactName, p.Phone, p.Email, p.Address, p.IsActive, now, now).Scan(&p.ID)
	if err != nil {
		return Partner{}, shared.MapPgError(err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *repository) Update(ctx context.Context, id int64, p Partner) error {
	tag, err := r.db.Exec(ctx, `UPDATE `+r.table+` SET code = $1, name = $2, contact_name = $3, phone = $4, email = $5, address = $6, is_active = $7, updated_at = $8 WHERE id = $9`,
		p.Code, p.Name, p.ContactName, p.Phone, p.Email, p.Address, p.IsActive, time.Now(), id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
