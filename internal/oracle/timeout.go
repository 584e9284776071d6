package oracle

import (
	"context"
	"errors"
	"time"
)

type timeoutSolver struct {
	Solver
	budget time.Duration
}

// Timeout bounds every solve by budget. A solve that runs out of time yields
// OutcomeUnknown instead of an error; cancellation of the caller's context is
// still returned as an error. The wrapped solver must check its context while
// it works, as Reference does between rows and routes.
func Timeout(s Solver, budget time.Duration) Solver {
	if budget <= 0 {
		return s
	}
	return &timeoutSolver{Solver: s, budget: budget}
}

func (t *timeoutSolver) Optimize(ctx context.Context) (Result, error) {
	tctx, cancel := context.WithTimeout(ctx, t.budget)
	defer cancel()
	r, err := t.Solver.Optimize(tctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Result{Outcome: OutcomeUnknown}, nil
	}
	return r, err
}

func (t *timeoutSolver) Close() error { return closeSolver(t.Solver) }
