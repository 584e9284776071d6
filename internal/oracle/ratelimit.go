package oracle

import (
	"context"

	"golang.org/x/time/rate"
)

type limitedSolver struct {
	Solver
	lim *rate.Limiter
}

// RateLimit makes every solve wait for a token from lim. Pools share one
// limiter across their solvers to cap solves per second against a licensed
// or remote solver.
func RateLimit(s Solver, lim *rate.Limiter) Solver {
	if lim == nil {
		return s
	}
	return &limitedSolver{Solver: s, lim: lim}
}

func (l *limitedSolver) Optimize(ctx context.Context) (Result, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return Result{}, err
	}
	return l.Solver.Optimize(ctx)
}

func (l *limitedSolver) Close() error { return closeSolver(l.Solver) }
