package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"waterflow/internal/dow"
)

// Pool owns one solver per worker. A batch is split into contiguous chunks;
// each worker borrows a solver, pins once for its chunk and unpins on exit,
// so no two workers ever touch the same solver's pins.
type Pool struct {
	solvers chan Solver
	size    int

	mu     sync.RWMutex
	closed bool
}

func NewPool(size int, factory Factory) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{solvers: make(chan Solver, size), size: size}
	for i := 0; i < size; i++ {
		s, err := factory()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("oracle: build solver %d: %w", i, err)
		}
		p.solvers <- s
	}
	return p, nil
}

func (p *Pool) Size() int { return p.size }

func (p *Pool) acquire(ctx context.Context) (Solver, error) {
	select {
	case s := <-p.solvers:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(s Solver) { p.solvers <- s }

// EvaluateBatch scores complete DOWs in exact mode. Results are positional.
func (p *Pool) EvaluateBatch(ctx context.Context, cands []*dow.DOW) ([]Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	out := make([]Result, len(cands))
	if len(cands) == 0 {
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks(len(cands), p.size) {
		g.Go(func() error {
			s, err := p.acquire(gctx)
			if err != nil {
				return err
			}
			defer p.release(s)
			return WithSession(s, ModeExact, func(sess *Session) error {
				for i := c[0]; i < c[1]; i++ {
					r, err := sess.Evaluate(gctx, cands[i])
					if err != nil {
						return err
					}
					out[i] = r
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Complete asks for the first feasible completion of a site pattern.
func (p *Pool) Complete(ctx context.Context, x []int) (Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return Result{}, ErrPoolClosed
	}
	s, err := p.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer p.release(s)
	var r Result
	err = WithSession(s, ModeFirstFeasible, func(sess *Session) error {
		var err error
		r, err = sess.EvaluatePins(ctx, Pins{Mode: ModeFirstFeasible, X: x})
		return err
	})
	return r, err
}

// Close waits for in-flight batches and closes every solver that supports it.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for {
		select {
		case s := <-p.solvers:
			errs = append(errs, closeSolver(s))
		default:
			return errors.Join(errs...)
		}
	}
}

// chunks splits [0,n) into at most k contiguous half-open ranges.
func chunks(n, k int) [][2]int {
	if k > n {
		k = n
	}
	out := make([][2]int, 0, k)
	lo := 0
	for i := 0; i < k; i++ {
		hi := lo + (n-lo)/(k-i)
		out = append(out, [2]int{lo, hi})
		lo = hi
	}
	return out
}
