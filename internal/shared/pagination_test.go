package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
}

func TestNewPaginationExact(t *testing.T) {
	p := NewPagination(2, 10, 40)
	require.Equal(t, 4, p.TotalPages)
	require.Equal(t, 40, p.Total)
}
