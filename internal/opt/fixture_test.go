package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"waterflow/internal/dow"
	"waterflow/internal/events"
	"waterflow/internal/model"
	"waterflow/internal/oracle"
)

// fiveSites is a 5 sites x 5 points instance with two vehicles. Point i is
// cheapest at site i, so every completion with at least two open sites is
// admissible.
func fiveSites() model.Instance {
	const m = 5
	in := model.Instance{
		Name:            "five",
		OpenCost:        []float64{50, 60, 70, 80, 90},
		Capacity:        []float64{1000, 1000, 1000, 1000, 1000},
		Demand:          []float64{2, 3, 1, 4, 2},
		Vehicles:        2,
		VehicleCapacity: 100,
	}
	in.AssignCost = make([][]float64, m)
	for i := range m {
		in.AssignCost[i] = make([]float64, m)
		for j := range m {
			if i == j {
				in.AssignCost[i][j] = 1
			} else {
				in.AssignCost[i][j] = float64(10 + abs(i-j))
			}
		}
	}
	in.TravelCost = make([][]float64, m+1)
	for u := range m + 1 {
		in.TravelCost[u] = make([]float64, m+1)
		for v := range m + 1 {
			switch {
			case u == v:
			case u == m:
				in.TravelCost[u][v] = float64(v + 2)
			case v == m:
				in.TravelCost[u][v] = float64(u + 2)
			default:
				in.TravelCost[u][v] = float64(abs(u-v) + 1)
			}
		}
	}
	return in
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func newPool(t *testing.T, in model.Instance) *oracle.Pool {
	t.Helper()
	pool, err := oracle.NewPool(2, oracle.ReferenceFactory(in))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

// evaluated builds a DOW on fiveSites and scores it.
func evaluated(t *testing.T, ev Evaluator, x, y, z []int) *dow.DOW {
	t.Helper()
	d, err := dow.New(fiveSites().Dims(), x, y, z)
	require.NoError(t, err)
	res, err := ev.EvaluateBatch(context.Background(), []*dow.DOW{d})
	require.NoError(t, err)
	require.True(t, res[0].Feasible(), "fixture DOW must be feasible")
	require.NoError(t, d.SetObjective(res[0].Objective))
	return d
}

// seedTwoOpen opens sites 1 and 2 with one route each.
func seedTwoOpen(t *testing.T, ev Evaluator) *dow.DOW {
	return evaluated(t, ev, []int{1, 1, 0, 0, 0}, []int{1, 2, 1, 2, 1}, []int{0, 1, 0, 2})
}

// withObjective builds an unscored fiveSites DOW and sets obj directly.
func withObjective(t *testing.T, obj float64, x, y, z []int) *dow.DOW {
	t.Helper()
	d, err := dow.New(fiveSites().Dims(), x, y, z)
	require.NoError(t, err)
	require.NoError(t, d.SetObjective(obj))
	return d
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(_ string, evt events.Event) { r.events = append(r.events, evt) }

func (r *recorder) ofType(typ string) []events.Event {
	var out []events.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
