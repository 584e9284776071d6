package oracle

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"waterflow/internal/dow"
	"waterflow/internal/model"
)

// tiny has two sites, two points and one vehicle. Opening both sites with
// Y=[1,2] and route F->1->2->F costs 30 + 5 + 12 = 47.
func tiny() model.Instance {
	return model.Instance{
		Name:            "tiny",
		OpenCost:        []float64{10, 20},
		Capacity:        []float64{100, 100},
		Demand:          []float64{1, 2},
		AssignCost:      [][]float64{{1, 5}, {4, 2}},
		TravelCost:      [][]float64{{0, 3, 4}, {3, 0, 5}, {4, 5, 0}},
		Vehicles:        1,
		VehicleCapacity: 10,
	}
}

func tinyDOW(t *testing.T, y, z []int) *dow.DOW {
	t.Helper()
	d, err := dow.New(tiny().Dims(), []int{1, 1}, y, z)
	require.NoError(t, err)
	return d
}

// fakeSolver records its pin lifecycle and returns a fixed result.
type fakeSolver struct {
	adds, updates, removes, solves *atomic.Int32

	pinned bool
	last   Pins
	result Result
	err    error
	block  bool
}

func newFake(result Result) *fakeSolver {
	return &fakeSolver{
		adds: new(atomic.Int32), updates: new(atomic.Int32),
		removes: new(atomic.Int32), solves: new(atomic.Int32),
		result: result,
	}
}

func (f *fakeSolver) AddPins(p Pins) error {
	if f.pinned {
		return ErrPinsActive
	}
	f.adds.Add(1)
	f.pinned, f.last = true, p
	return nil
}

func (f *fakeSolver) UpdatePins(p Pins) error {
	if !f.pinned {
		return ErrNoPins
	}
	f.updates.Add(1)
	f.last = p
	return nil
}

func (f *fakeSolver) RemovePins() error {
	if !f.pinned {
		return ErrNoPins
	}
	f.removes.Add(1)
	f.pinned = false
	return nil
}

func (f *fakeSolver) Optimize(ctx context.Context) (Result, error) {
	f.solves.Add(1)
	if f.block {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	if f.err != nil {
		return Result{}, &Error{Op: "optimize", Err: f.err}
	}
	return f.result, nil
}
