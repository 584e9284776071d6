package oracle

import (
	"context"
	"slices"

	"waterflow/internal/model"
)

// Reference is an in-process solver for the location-assignment-routing
// model. In exact mode it checks every constraint of the model against the
// pinned values and prices the solution. In first-feasible mode it builds a
// completion of the pinned X greedily: cheapest feasible assignment, routes
// packed under the vehicle capacity and sequenced with nearest neighbour and
// 2-opt. The completion is feasible but not necessarily optimal.
//
// A site's load on its route is its stored demand divided by the fleet size,
// matching the capacity linearisation of the model. Both modes check their
// context between rows and routes, so a Timeout budget interrupts them.
type Reference struct {
	// TwoOptRounds bounds 2-opt passes per route. Zero means one pass.
	TwoOptRounds int

	inst   model.Instance
	pins   Pins
	active bool
}

func NewReference(inst model.Instance) (*Reference, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return &Reference{inst: inst, TwoOptRounds: 4}, nil
}

// ReferenceFactory returns a Factory producing independent Reference solvers.
func ReferenceFactory(inst model.Instance) Factory {
	return func() (Solver, error) { return NewReference(inst) }
}

func (r *Reference) AddPins(p Pins) error {
	if r.active {
		return ErrPinsActive
	}
	if !r.fits(p) {
		return ErrShapeMismatch
	}
	r.pins, r.active = p, true
	return nil
}

func (r *Reference) UpdatePins(p Pins) error {
	if !r.active {
		return ErrNoPins
	}
	if !r.pins.sameShape(p) {
		return ErrShapeMismatch
	}
	r.pins = p
	return nil
}

func (r *Reference) RemovePins() error {
	if !r.active {
		return ErrNoPins
	}
	r.pins, r.active = Pins{}, false
	return nil
}

func (r *Reference) Optimize(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !r.active {
		return Result{}, ErrNoPins
	}
	if r.pins.Mode == ModeFirstFeasible {
		return r.complete(ctx, r.pins.X)
	}
	return r.check(ctx, r.pins)
}

func (r *Reference) fits(p Pins) bool {
	m, n := r.inst.Sites(), r.inst.Points()
	if len(p.X) != m {
		return false
	}
	switch p.Mode {
	case ModeFirstFeasible:
		return true
	case ModeExact:
		if len(p.Y) != n || len(p.Z) != m+1 {
			return false
		}
		for _, row := range p.Y {
			if len(row) != m {
				return false
			}
		}
		for _, row := range p.Z {
			if len(row) != m+1 {
				return false
			}
		}
		return true
	}
	return false
}

var infeasible = Result{Outcome: OutcomeInfeasible}

// check validates a fully pinned solution.
func (r *Reference) check(ctx context.Context, p Pins) (Result, error) {
	in := r.inst
	m, f := in.Sites(), in.Facility()
	k := float64(in.Vehicles)

	open := 0
	for _, v := range p.X {
		if v != 0 && v != 1 {
			return infeasible, nil
		}
		open += v
	}

	stored := make([]float64, m)
	cost := 0.0
	for i, row := range p.Y {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		assigned := 0
		for j, v := range row {
			if v == 0 {
				continue
			}
			if v != 1 || p.X[j] == 0 {
				return infeasible, nil
			}
			assigned++
			stored[j] += in.Demand[i]
			cost += in.AssignCost[i][j] * in.Demand[i]
		}
		if assigned != 1 {
			return infeasible, nil
		}
	}
	for j := range m {
		if stored[j] > in.Capacity[j]*float64(p.X[j]) {
			return infeasible, nil
		}
		cost += in.OpenCost[j] * float64(p.X[j])
	}

	outDeg, inDeg := make([]int, m+1), make([]int, m+1)
	for u, row := range p.Z {
		for v, a := range row {
			if a == 0 {
				continue
			}
			if a != 1 || u == v {
				return infeasible, nil
			}
			outDeg[u]++
			inDeg[v]++
			cost += in.TravelCost[u][v]
		}
	}
	for j := range m {
		if outDeg[j] != p.X[j] || inDeg[j] != p.X[j] {
			return infeasible, nil
		}
	}
	if outDeg[f] != in.Vehicles || inDeg[f] != in.Vehicles {
		return infeasible, nil
	}

	// Walk every route; sites left unreached sit on subtours.
	reached := 0
	for first, a := range p.Z[f] {
		if a == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		load := 0.0
		for cur := first; cur != f; cur = next(p.Z[cur]) {
			reached++
			if reached > open {
				return infeasible, nil
			}
			load += stored[cur] / k
			if load > in.VehicleCapacity {
				return infeasible, nil
			}
		}
	}
	if reached != open {
		return infeasible, nil
	}
	return Result{Outcome: OutcomeFeasible, Objective: cost}, nil
}

func next(row []int) int {
	for v, a := range row {
		if a == 1 {
			return v
		}
	}
	return -1
}

// complete builds a feasible completion of x or reports infeasibility.
func (r *Reference) complete(ctx context.Context, x []int) (Result, error) {
	in := r.inst
	m, n, f := in.Sites(), in.Points(), in.Facility()
	k := in.Vehicles

	var open []int
	for j, v := range x {
		switch v {
		case 0:
		case 1:
			open = append(open, j)
		default:
			return infeasible, nil
		}
	}
	// Every vehicle leaves the facility towards a distinct open site.
	if len(open) == 0 || len(open) < k {
		return infeasible, nil
	}

	points := make([]int, n)
	for i := range points {
		points[i] = i
	}
	slices.SortStableFunc(points, func(a, b int) int { return descending(in.Demand[a], in.Demand[b]) })

	remaining := slices.Clone(in.Capacity)
	stored := make([]float64, m)
	y := make([]int, n)
	cost := 0.0
	for _, i := range points {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		best := -1
		for _, j := range open {
			if remaining[j] < in.Demand[i] {
				continue
			}
			if best < 0 || in.AssignCost[i][j] < in.AssignCost[i][best] {
				best = j
			}
		}
		if best < 0 {
			return infeasible, nil
		}
		remaining[best] -= in.Demand[i]
		stored[best] += in.Demand[i]
		y[i] = best + 1
		cost += in.AssignCost[i][best] * in.Demand[i]
	}

	bySize := slices.Clone(open)
	slices.SortStableFunc(bySize, func(a, b int) int { return descending(stored[a], stored[b]) })
	bins := make([][]int, k)
	loads := make([]float64, k)
	for idx, j := range bySize {
		l := stored[j] / float64(k)
		if l > in.VehicleCapacity {
			return infeasible, nil
		}
		if idx < k {
			bins[idx] = []int{j}
			loads[idx] = l
			continue
		}
		b := -1
		for c := range bins {
			if loads[c]+l <= in.VehicleCapacity && (b < 0 || loads[c] < loads[b]) {
				b = c
			}
		}
		if b < 0 {
			return infeasible, nil
		}
		bins[b] = append(bins[b], j)
		loads[b] += l
	}

	z := make([]int, 0, len(open)+k)
	for _, bin := range bins {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		order := improveRoute(in.TravelCost, f, nearestNeighbour(in.TravelCost, f, bin), r.TwoOptRounds)
		z = append(z, 0)
		prev := f
		for _, j := range order {
			z = append(z, j+1)
			cost += in.TravelCost[prev][j]
			prev = j
		}
		cost += in.TravelCost[prev][f]
	}
	for _, j := range open {
		cost += in.OpenCost[j]
	}
	return Result{Outcome: OutcomeFeasible, Objective: cost, Y: y, Z: z}, nil
}

func descending(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
