package oracle

import (
	"context"
	"time"

	"waterflow/internal/metrics"
)

type instrumentedSolver struct {
	Solver
	mode Mode
}

// Instrument records solve counts and durations by mode and outcome.
func Instrument(s Solver) Solver { return &instrumentedSolver{Solver: s} }

func (i *instrumentedSolver) AddPins(p Pins) error {
	i.mode = p.Mode
	return i.Solver.AddPins(p)
}

func (i *instrumentedSolver) Optimize(ctx context.Context) (Result, error) {
	start := time.Now()
	r, err := i.Solver.Optimize(ctx)
	mode := i.mode.String()
	metrics.OracleDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	outcome := r.Outcome.String()
	if err != nil {
		outcome = "error"
	}
	metrics.OracleEvaluations.WithLabelValues(mode, outcome).Inc()
	return r, err
}

func (i *instrumentedSolver) Close() error { return closeSolver(i.Solver) }
