package opt

import (
	"slices"

	"waterflow/internal/dow"
)

// SortByTopology orders neighbours by objective difference to o, most
// promising first. Equal differences keep their input order.
func SortByTopology(o *dow.DOW, neighbors []*dow.DOW) []*dow.DOW {
	base := objective(o)
	out := slices.Clone(neighbors)
	slices.SortStableFunc(out, func(a, b *dow.DOW) int {
		da, db := objective(a)-base, objective(b)-base
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
	return out
}
