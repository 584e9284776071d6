package opt

import (
	"context"

	"github.com/rs/zerolog"

	"waterflow/internal/dow"
	"waterflow/internal/metrics"
)

// Phase of a local search.
type Phase int

const (
	PhaseOpt1 Phase = iota
	PhaseSwap
	PhaseConverged
)

func (p Phase) String() string {
	switch p {
	case PhaseOpt1:
		return "opt1"
	case PhaseSwap:
		return "swap"
	}
	return "converged"
}

// LocalSearch descends with Opt1 until it stops improving, then with Swap
// until that stops improving too. Once in the swap phase it never returns to
// Opt1.
type LocalSearch struct {
	Eval Evaluator
	Opt1 Neighborhood
	Swap Neighborhood
	Log  zerolog.Logger
}

// Descent is the outcome of one local search.
type Descent struct {
	Optimum *dow.DOW
	// Neighbors of the optimum from the last, non-improving step.
	Neighbors []*dow.DOW
	// Excluded holds every superseded optimum and the neighbours dominated
	// along the way.
	Excluded    []*dow.DOW
	Discarded   []*dow.DOW
	Transitions int
}

func (ls *LocalSearch) neighborhood(p Phase) Neighborhood {
	if p == PhaseOpt1 {
		if ls.Opt1 != nil {
			return ls.Opt1
		}
		return Opt1{}
	}
	if ls.Swap != nil {
		return ls.Swap
	}
	return Swap{}
}

// Run searches from seed, which must carry an objective. Each accepted move
// strictly lowers the objective, so the search terminates.
func (ls *LocalSearch) Run(ctx context.Context, seed *dow.DOW) (Descent, error) {
	if err := requireEvaluated(seed); err != nil {
		return Descent{}, err
	}
	out := Descent{Optimum: seed}
	phase := PhaseOpt1
	for phase != PhaseConverged {
		step, err := ls.neighborhood(phase).Explore(ctx, ls.Eval, out.Optimum)
		if err != nil {
			return Descent{}, err
		}
		out.Discarded = append(out.Discarded, step.Discarded...)
		if step.Moved {
			out.Excluded = append(out.Excluded, out.Optimum)
			out.Excluded = append(out.Excluded, step.Neighbors...)
			out.Optimum = step.Optimum
			out.Transitions++
			metrics.LocalSearchTransitions.WithLabelValues(phase.String()).Inc()
			ls.Log.Debug().Str("phase", phase.String()).Float64("objective", objective(step.Optimum)).Msg("local search moved")
			continue
		}
		out.Neighbors = step.Neighbors
		phase++
	}
	return out, nil
}
