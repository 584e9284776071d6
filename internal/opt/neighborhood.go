// Package opt implements the WaterFlow search: neighbourhoods over DOWs,
// local search, seeding clouds, erosion and the driver composing them.
package opt

import (
	"context"
	"errors"
	"fmt"

	"waterflow/internal/dow"
	"waterflow/internal/metrics"
	"waterflow/internal/oracle"
)

// ErrNotEvaluated is returned when a search step starts from a DOW without an
// objective.
var ErrNotEvaluated = errors.New("opt: dow has no objective")

// Evaluator is the oracle as the search sees it. *oracle.Pool implements it.
type Evaluator interface {
	// EvaluateBatch scores complete DOWs in exact mode; results are positional.
	EvaluateBatch(ctx context.Context, cands []*dow.DOW) ([]oracle.Result, error)
	// Complete asks for any feasible completion of a site pattern.
	Complete(ctx context.Context, x []int) (oracle.Result, error)
}

// Step is the outcome of exploring one neighbourhood.
type Step struct {
	// Optimum is the input DOW unless a strictly better neighbour exists.
	Optimum *dow.DOW
	// Neighbors are the feasible candidates that were not selected.
	Neighbors []*dow.DOW
	// Discarded are the infeasible candidates.
	Discarded []*dow.DOW
	// Positions holds the best feasible candidate per flipped site (Opt1).
	Positions []*dow.DOW
	Moved     bool
}

type Neighborhood interface {
	Name() string
	Explore(ctx context.Context, ev Evaluator, d *dow.DOW) (Step, error)
}

func objective(d *dow.DOW) float64 {
	v, _ := d.Objective()
	return v
}

// score evaluates cands in one batch, sets objectives on the feasible ones
// and reports which those are. Unknown outcomes count as infeasible.
func score(ctx context.Context, ev Evaluator, name string, cands []*dow.DOW) ([]bool, error) {
	metrics.NeighborhoodCandidates.WithLabelValues(name).Add(float64(len(cands)))
	ok := make([]bool, len(cands))
	if len(cands) == 0 {
		return ok, nil
	}
	res, err := ev.EvaluateBatch(ctx, cands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for i, r := range res {
		if !r.Feasible() {
			continue
		}
		if err := cands[i].SetObjective(r.Objective); err != nil {
			return nil, err
		}
		ok[i] = true
	}
	return ok, nil
}

// best returns the index of the lowest objective in cands, nil entries
// skipped. The first one wins ties. It returns -1 when cands holds no DOW.
func best(cands []*dow.DOW) int {
	idx := -1
	for i, c := range cands {
		if c == nil {
			continue
		}
		if idx < 0 || objective(c) < objective(cands[idx]) {
			idx = i
		}
	}
	return idx
}

// choose applies the incumbent-wins-ties rule: the candidate only replaces
// current when it is strictly better. Neighbors are every feasible candidate
// except the selected one.
func choose(current *dow.DOW, feasible []*dow.DOW, pick int) Step {
	if pick < 0 || objective(current) <= objective(feasible[pick]) {
		return Step{Optimum: current, Neighbors: feasible}
	}
	rest := make([]*dow.DOW, 0, len(feasible)-1)
	rest = append(rest, feasible[:pick]...)
	rest = append(rest, feasible[pick+1:]...)
	return Step{Optimum: feasible[pick], Neighbors: rest, Moved: true}
}

func requireEvaluated(d *dow.DOW) error {
	if d == nil || !d.Evaluated() {
		return ErrNotEvaluated
	}
	return nil
}
