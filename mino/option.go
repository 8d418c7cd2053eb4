package mino

import "sort"

// Filters is the set of parameters for the Players.Take function.
type Filters struct {
	// Indices is the sorted list of indices of the players to keep, without
	// duplicates.
	Indices []int
}

// Filter is a function to update the filters.
type Filter func(*Filters)

// ApplyFilters applies the filters in order and returns the result.
func ApplyFilters(filters []Filter) *Filters {
	f := &Filters{Indices: []int{}}

	for _, filter := range filters {
		filter(f)
	}

	return f
}

// IndexFilter keeps the player at the index. The leader of a roster is taken
// with IndexFilter(0).
func IndexFilter(index int) Filter {
	return func(filters *Filters) {
		for _, i := range filters.Indices {
			if i == index {
				return
			}
		}

		filters.Indices = append(filters.Indices, index)
		sort.Ints(filters.Indices)
	}
}
