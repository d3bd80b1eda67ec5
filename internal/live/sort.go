package live

import (
	"cmp"
	"slices"

	"github.com/mesh-intelligence/showcase/pkg/types"
)

// SortItems sorts items in place into rendered order: ascending by order
// key, items without one after all ordered items, ties broken by the
// lexicographically smaller ID.
func SortItems(items []types.Item) {
	slices.SortStableFunc(items, CompareItems)
}

// CompareItems is the rendered-order comparison used by SortItems.
func CompareItems(a, b types.Item) int {
	switch {
	case a.Order == nil && b.Order != nil:
		return 1
	case a.Order != nil && b.Order == nil:
		return -1
	case a.Order != nil && b.Order != nil:
		if c := cmp.Compare(*a.Order, *b.Order); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID, b.ID)
}
