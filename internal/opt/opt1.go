package opt

import (
	"context"
	"slices"

	"waterflow/internal/dow"
)

// RepairCeiling bounds the repairs enumerated per flipped site whatever
// MaxRepairs says; the full product grows as open^points.
const RepairCeiling = 1 << 12

// Opt1 flips one site at a time and enumerates the repairs of Y and Z the
// flip implies.
//
// Closing a site splices it out of its route and reassigns each of its
// demand points to every remaining open site (cartesian product). Opening a
// site appends it to the last route and reassigns demand points over the
// enlarged set of open sites, nearest to the incumbent assignment first.
type Opt1 struct {
	// MaxRepairs caps the candidates enumerated per flipped site. Zero, or
	// anything above RepairCeiling, means RepairCeiling.
	MaxRepairs int
}

func (n Opt1) limit() int {
	if n.MaxRepairs <= 0 || n.MaxRepairs > RepairCeiling {
		return RepairCeiling
	}
	return n.MaxRepairs
}

func (Opt1) Name() string { return "opt1" }

func (n Opt1) Explore(ctx context.Context, ev Evaluator, d *dow.DOW) (Step, error) {
	if err := requireEvaluated(d); err != nil {
		return Step{}, err
	}
	sites := d.Dims().Sites
	x := d.X()

	// All flips share one batch so pins are added once per call.
	var cands []*dow.DOW
	bounds := make([][2]int, sites)
	for idx := range sites {
		var (
			group []*dow.DOW
			err   error
		)
		if x[idx] == 1 {
			group, err = n.closeRepairs(d, idx)
		} else {
			group, err = n.openRepairs(d, idx)
		}
		if err != nil {
			return Step{}, err
		}
		bounds[idx] = [2]int{len(cands), len(cands) + len(group)}
		cands = append(cands, group...)
	}

	ok, err := score(ctx, ev, n.Name(), cands)
	if err != nil {
		return Step{}, err
	}
	positions := make([]*dow.DOW, sites)
	var feasible, discarded []*dow.DOW
	for idx, b := range bounds {
		var group []*dow.DOW
		for i := b[0]; i < b[1]; i++ {
			if ok[i] {
				group = append(group, cands[i])
			} else {
				discarded = append(discarded, cands[i])
			}
		}
		if k := best(group); k >= 0 {
			positions[idx] = group[k]
		}
		feasible = append(feasible, group...)
	}

	// The first minimum over all flips is also the first minimum over
	// positions, so selecting on feasible matches selecting on positions.
	step := choose(d, feasible, best(feasible))
	step.Discarded = discarded
	step.Positions = positions
	return step, nil
}

func (n Opt1) closeRepairs(d *dow.DOW, idx int) ([]*dow.DOW, error) {
	label := idx + 1
	x := d.X()
	x[idx] = 0

	var labels []int
	for _, j := range d.OpenSites() {
		if j != idx {
			labels = append(labels, j+1)
		}
	}
	if len(labels) == 0 {
		return nil, nil
	}

	var z []int
	for _, route := range d.Routes() {
		var kept []int
		for _, l := range route {
			if l != label {
				kept = append(kept, l)
			}
		}
		if len(kept) > 0 {
			z = append(z, dow.Facility)
			z = append(z, kept...)
		}
	}

	base := d.YVector()
	var affected []int
	for i, l := range base {
		if l == label {
			affected = append(affected, i)
		}
	}

	var out []*dow.DOW
	var err error
	product(labels, len(affected), n.limit(), func(tuple []int) bool {
		y := append([]int(nil), base...)
		for k, i := range affected {
			y[i] = tuple[k]
		}
		var c *dow.DOW
		if c, err = dow.New(d.Dims(), x, y, z); err != nil {
			return false
		}
		out = append(out, c)
		return true
	})
	return out, err
}

func (n Opt1) openRepairs(d *dow.DOW, idx int) ([]*dow.DOW, error) {
	label := idx + 1
	x := d.X()
	x[idx] = 1

	var labels []int
	for j, b := range x {
		if b == 1 {
			labels = append(labels, j+1)
		}
	}

	z := d.ZVector()
	if len(z) == 0 {
		z = []int{dow.Facility}
	}
	z = append(z, label)

	var out []*dow.DOW
	var err error
	nearby(d.YVector(), labels, n.limit(), func(y []int) bool {
		var c *dow.DOW
		if c, err = dow.New(d.Dims(), x, y, z); err != nil {
			return false
		}
		out = append(out, c)
		return true
	})
	return out, err
}

// product calls fn with every tuple of length n over values in lexicographic
// order. It stops after limit tuples when limit > 0, or when fn returns
// false. fn must not retain the tuple.
func product(values []int, n, limit int, fn func([]int) bool) {
	if n > 0 && len(values) == 0 {
		return
	}
	pos := make([]int, n)
	tuple := make([]int, n)
	for emitted := 0; limit <= 0 || emitted < limit; emitted++ {
		for i, p := range pos {
			tuple[i] = values[p]
		}
		if !fn(tuple) {
			return
		}
		i := n - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(values) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// nearby calls fn with assignments that differ from base in 0, 1, 2, ...
// positions, each changed position taking every other value in values. Within
// one distance, positions and values go in lexicographic order. It stops
// after limit assignments when limit > 0, or when fn returns false. fn must
// not retain the assignment.
func nearby(base, values []int, limit int, fn func([]int) bool) {
	// Only positions with an alternative value can change.
	var free []int
	alts := make([][]int, len(base))
	for i, b := range base {
		for _, v := range values {
			if v != b {
				alts[i] = append(alts[i], v)
			}
		}
		if len(alts[i]) > 0 {
			free = append(free, i)
		}
	}

	emitted := 0
	tuple := slices.Clone(base)
	visit := func(pick []int) bool {
		lists := make([][]int, len(pick))
		for k, p := range pick {
			lists[k] = alts[free[p]]
		}
		return odometer(lists, func(vals []int) bool {
			if limit > 0 && emitted >= limit {
				return false
			}
			copy(tuple, base)
			for k, p := range pick {
				tuple[free[p]] = vals[k]
			}
			emitted++
			return fn(tuple)
		})
	}
	for dist := 0; dist <= len(free); dist++ {
		if !combinations(len(free), dist, visit) {
			return
		}
	}
}

// odometer walks the cartesian product of lists in lexicographic order and
// reports whether it ran to the end.
func odometer(lists [][]int, fn func([]int) bool) bool {
	for _, l := range lists {
		if len(l) == 0 {
			return true
		}
	}
	pos := make([]int, len(lists))
	vals := make([]int, len(lists))
	for {
		for i, p := range pos {
			vals[i] = lists[i][p]
		}
		if !fn(vals) {
			return false
		}
		i := len(pos) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(lists[i]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return true
		}
	}
}

// combinations calls fn with every k-subset of [0,n) in lexicographic order
// and reports whether it ran to the end.
func combinations(n, k int, fn func([]int) bool) bool {
	if k > n {
		return true
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return false
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return true
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
