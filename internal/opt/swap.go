package opt

import (
	"context"

	"waterflow/internal/dow"
)

// Swap relabels: for every closed site z and open site o it closes o, opens
// z and moves every assignment and route position of o onto z. The shape of
// Y and Z never changes.
type Swap struct{}

func (Swap) Name() string { return "swap" }

func (s Swap) Explore(ctx context.Context, ev Evaluator, d *dow.DOW) (Step, error) {
	if err := requireEvaluated(d); err != nil {
		return Step{}, err
	}
	closed, open := d.ClosedSites(), d.OpenSites()
	if len(closed) == 0 || len(open) == 0 {
		return Step{Optimum: d}, nil
	}

	cands := make([]*dow.DOW, 0, len(closed)*len(open))
	for _, z := range closed {
		for _, o := range open {
			c, err := relabel(d, o, z)
			if err != nil {
				return Step{}, err
			}
			cands = append(cands, c)
		}
	}
	ok, err := score(ctx, ev, s.Name(), cands)
	if err != nil {
		return Step{}, err
	}
	var feasible, discarded []*dow.DOW
	for i, c := range cands {
		if ok[i] {
			feasible = append(feasible, c)
		} else {
			discarded = append(discarded, c)
		}
	}
	step := choose(d, feasible, best(feasible))
	step.Discarded = discarded
	return step, nil
}

// relabel moves open site `from` onto closed site `to` (0-based indices).
func relabel(d *dow.DOW, from, to int) (*dow.DOW, error) {
	x := d.X()
	x[from], x[to] = 0, 1
	y := d.YVector()
	for i, label := range y {
		if label == from+1 {
			y[i] = to + 1
		}
	}
	z := d.ZVector()
	for i, label := range z {
		if label == from+1 {
			z[i] = to + 1
		}
	}
	return dow.New(d.Dims(), x, y, z)
}
