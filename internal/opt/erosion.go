package opt

import (
	"context"

	"github.com/rs/zerolog"

	"waterflow/internal/dow"
	"waterflow/internal/metrics"
)

// Eroder diversifies around stagnant local optima.
type Eroder struct {
	Search *LocalSearch
	// MaxUIE is the number of local-search tentatives per direction.
	MaxUIE int
	Log    zerolog.Logger
	// Notify, when set, is called for every promoted optimum.
	Notify func(promoted, from *dow.DOW)
}

// Erode searches the neighbourhood of o for a strictly better, unseen
// optimum. Every improvement is promoted and becomes the next optimum to
// erode; o and each superseded optimum move to eroded. The last optimum,
// once no direction improves it, is marked eroded and returned.
func (e *Eroder) Erode(ctx context.Context, pop *Population, o *dow.DOW) (*dow.DOW, error) {
	if err := requireEvaluated(o); err != nil {
		return nil, err
	}
	cur := o
	for {
		next, err := e.improve(ctx, pop, cur)
		if err != nil {
			return nil, err
		}
		pop.MarkEroded(cur)
		if next == nil {
			e.Log.Info().Float64("objective", objective(cur)).Msg("optimum eroded")
			return cur, nil
		}
		cur = next
	}
}

// improve walks the directions around o in topology order and returns the
// first promoted optimum, or nil when every direction is exhausted.
func (e *Eroder) improve(ctx context.Context, pop *Population, o *dow.DOW) (*dow.DOW, error) {
	base := objective(o)
	tried := map[string]bool{}
	for _, start := range SortByTopology(o, pop.Neighbors(o)) {
		if tried[start.Key()] {
			continue
		}
		tried[start.Key()] = true

		cur := start
		for t := 0; t < e.MaxUIE && cur != nil; t++ {
			res, err := e.Search.Run(ctx, cur)
			if err != nil {
				return nil, err
			}
			pop.AddExcluded(res.Excluded...)
			pop.AddDiscarded(res.Discarded...)

			switch {
			case !pop.Seen(res.Optimum):
				if objective(res.Optimum) < base {
					pop.Promote(res.Optimum, res.Neighbors)
					metrics.ErosionPromotions.Inc()
					e.Log.Info().
						Float64("from", base).
						Float64("to", objective(res.Optimum)).
						Msg("erosion promoted optimum")
					if e.Notify != nil {
						e.Notify(res.Optimum, o)
					}
					return res.Optimum, nil
				}
				// Not better: keep eroding from there unless it is a fixed point.
				if res.Optimum.Equal(cur) {
					cur = nil
				} else {
					cur = res.Optimum
				}
			case res.Optimum.Equal(o):
				cur = pop.NextUnseen(SortByTopology(o, res.Neighbors), tried)
				if cur != nil {
					tried[cur.Key()] = true
				}
			default:
				// Seen elsewhere: the direction is blocked.
				cur = nil
			}
		}
	}
	return nil, nil
}
