package shared

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/stockline-wms/stockline/internal/platform/httpx"
)

// ParseListFilters extracts standard list filters from the request query.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{
		Search:  q.Get("search"),
		SortBy:  q.Get("sort_by"),
		SortDir: q.Get("sort_dir"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if active := q.Get("is_active"); active != "" {
		if v, err := strconv.ParseBool(active); err == nil {
			f.IsActive = &v
		}
	}
	return f.Normalize()
}

// ParseID extracts a positive integer route parameter.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// MapError translates master data errors into transport sentinels.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errors.Join(httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicate):
		return errors.Join(httpx.ErrDuplicate, err)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidID), errors.Is(err, ErrRequiredField):
		return errors.Join(httpx.ErrValidation, err)
	default:
		return err
	}
}
