package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"waterflow/internal/dow"
)

func TestLocalSearchNeverWorsens(t *testing.T) {
	pool := newPool(t, fiveSites())
	seed := seedTwoOpen(t, pool)

	ls := &LocalSearch{Eval: pool, Opt1: Opt1{MaxRepairs: 30}}
	res, err := ls.Run(context.Background(), seed)
	require.NoError(t, err)
	require.True(t, res.Optimum.Evaluated())
	require.LessOrEqual(t, objective(res.Optimum), objective(seed))

	if res.Transitions > 0 {
		require.True(t, containsDOW(res.Excluded, seed), "superseded seed is excluded")
		require.False(t, res.Optimum.Equal(seed))
	} else {
		require.Same(t, seed, res.Optimum)
	}
	require.False(t, containsDOW(res.Excluded, res.Optimum))

	// Converged: swap no longer improves.
	step, err := Swap{}.Explore(context.Background(), pool, res.Optimum)
	require.NoError(t, err)
	require.False(t, step.Moved)
}

func TestLocalSearchIsDeterministic(t *testing.T) {
	pool := newPool(t, fiveSites())
	ls := &LocalSearch{Eval: pool, Opt1: Opt1{MaxRepairs: 30}}

	a, err := ls.Run(context.Background(), seedTwoOpen(t, pool))
	require.NoError(t, err)
	b, err := ls.Run(context.Background(), seedTwoOpen(t, pool))
	require.NoError(t, err)
	require.True(t, a.Optimum.Equal(b.Optimum))
	require.Equal(t, a.Transitions, b.Transitions)
}

func TestSortByTopology(t *testing.T) {
	o := withObjective(t, 10, []int{1, 1, 0, 0, 0}, []int{1, 2, 1, 2, 1}, []int{0, 1, 0, 2})
	n15 := withObjective(t, 15, []int{1, 1, 0, 0, 0}, []int{1, 2, 2, 2, 1}, []int{0, 1, 0, 2})
	n12a := withObjective(t, 12, []int{1, 1, 0, 0, 0}, []int{1, 2, 1, 1, 1}, []int{0, 1, 0, 2})
	n12b := withObjective(t, 12, []int{1, 1, 0, 0, 0}, []int{2, 2, 1, 2, 1}, []int{0, 1, 0, 2})
	n30 := withObjective(t, 30, []int{1, 1, 0, 0, 0}, []int{2, 2, 2, 2, 1}, []int{0, 1, 0, 2})

	in := []*dow.DOW{n15, n12a, n30, n12b}
	got := SortByTopology(o, in)
	require.Equal(t, []*dow.DOW{n12a, n12b, n15, n30}, got)
	require.Equal(t, []*dow.DOW{n15, n12a, n30, n12b}, in, "input untouched")
}

func containsDOW(ds []*dow.DOW, d *dow.DOW) bool {
	for _, c := range ds {
		if c.Equal(d) {
			return true
		}
	}
	return false
}
