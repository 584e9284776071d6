package opt

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"waterflow/internal/dow"
	"waterflow/internal/metrics"
)

// Cloud draws random site patterns and completes them into seed DOWs.
type Cloud struct {
	Dims   dow.Dims
	MaxPop int
	// MaxAttempts bounds draws per rainfall. Zero means 100 per seed.
	MaxAttempts int
	Log         zerolog.Logger
}

// Rainfall is one cloud's output.
type Rainfall struct {
	Seeds []*dow.DOW
	// Discarded holds rejected draws: partial DOWs for patterns without a
	// feasible completion, full DOWs for inadmissible completions.
	Discarded []*dow.DOW
	Attempts  int
}

// Rain collects up to MaxPop distinct, feasible, admissible seeds that are
// neither eroded nor discarded in pop. It returns fewer seeds, with a
// warning, when the attempt budget runs out.
func (c *Cloud) Rain(ctx context.Context, ev Evaluator, rng *rand.Rand, pop *Population) (Rainfall, error) {
	limit := c.MaxAttempts
	if limit <= 0 {
		limit = 100 * c.MaxPop
	}
	var out Rainfall
	drawn := map[string]bool{}
	rejected := map[string]bool{}
	reject := func(d *dow.DOW) {
		if !rejected[d.Key()] {
			rejected[d.Key()] = true
			out.Discarded = append(out.Discarded, d)
		}
	}

	for len(out.Seeds) < c.MaxPop && out.Attempts < limit {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts++
		x := make([]int, c.Dims.Sites)
		open := 0
		for j := range x {
			x[j] = rng.Intn(2)
			open += x[j]
		}
		part, err := dow.Partial(c.Dims, x)
		if err != nil {
			return out, err
		}
		// No open site can never be admissible; the oracle is not asked.
		if open == 0 || rejected[part.Key()] || pop.IsDiscarded(part) {
			metrics.CloudSeeds.WithLabelValues("rejected").Inc()
			reject(part)
			continue
		}

		r, err := ev.Complete(ctx, x)
		if err != nil {
			return out, err
		}
		if !r.Feasible() {
			metrics.CloudSeeds.WithLabelValues("infeasible").Inc()
			reject(part)
			continue
		}
		d, err := dow.New(c.Dims, x, r.Y, r.Z)
		if err != nil {
			return out, fmt.Errorf("cloud: oracle completion: %w", err)
		}
		if err := d.SetObjective(r.Objective); err != nil {
			return out, err
		}
		if !d.Admissible() {
			metrics.CloudSeeds.WithLabelValues("inadmissible").Inc()
			reject(d)
			continue
		}
		if drawn[d.Key()] || pop.IsEroded(d) || pop.IsDiscarded(d) {
			metrics.CloudSeeds.WithLabelValues("duplicate").Inc()
			continue
		}
		drawn[d.Key()] = true
		out.Seeds = append(out.Seeds, d)
		metrics.CloudSeeds.WithLabelValues("seeded").Inc()
	}
	if len(out.Seeds) < c.MaxPop {
		c.Log.Warn().
			Int("seeds", len(out.Seeds)).
			Int("want", c.MaxPop).
			Int("attempts", out.Attempts).
			Msg("rainfall ran out of attempts")
	}
	return out, nil
}
