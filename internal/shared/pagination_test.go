package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, meta := Paginate(items, 2, 2)
	require.Equal(t, []int{3, 4}, page)
	require.Equal(t, Pagination{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}, meta)

	page, _ = Paginate(items, 3, 2)
	require.Equal(t, []int{5}, page)

	page, meta = Paginate(items, 9, 2)
	require.Empty(t, page)
	require.Equal(t, 9, meta.Page)
}

func TestNewPaginationDefaults(t *testing.T) {
	require.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 0, TotalPages: 0}, NewPagination(0, 0, 0))
	require.Equal(t, maxPerPage, NewPagination(1, 5000, 10).PerPage)
}
