package mino

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter_ApplyFilters(t *testing.T) {
	filters := ApplyFilters([]Filter{IndexFilter(1)})
	require.Equal(t, []int{1}, filters.Indices)

	filters = ApplyFilters(nil)
	require.Empty(t, filters.Indices)
}

func TestFilter_IndexFilter(t *testing.T) {
	filters := &Filters{Indices: []int{}}

	IndexFilter(1)(filters)
	require.Equal(t, []int{1}, filters.Indices)

	IndexFilter(2)(filters)
	require.Equal(t, []int{1, 2}, filters.Indices)

	IndexFilter(0)(filters)
	require.Equal(t, []int{0, 1, 2}, filters.Indices)

	IndexFilter(0)(filters)
	IndexFilter(1)(filters)
	IndexFilter(2)(filters)
	require.Equal(t, []int{0, 1, 2}, filters.Indices)
}
