package oracle

import (
	"context"
	"errors"

	"waterflow/internal/dow"
)

// Session scopes pins on one solver: the first evaluation adds them, later
// evaluations only update values, Close removes them.
type Session struct {
	solver Solver
	mode   Mode
	pinned bool
}

func OpenSession(s Solver, mode Mode) *Session {
	return &Session{solver: s, mode: mode}
}

// Evaluate pins the DOW's values and solves.
func (s *Session) Evaluate(ctx context.Context, d *dow.DOW) (Result, error) {
	p := Pins{Mode: s.mode, X: d.X()}
	if s.mode == ModeExact {
		p.Y = d.YMatrix()
		p.Z = d.ZMatrix()
	}
	return s.EvaluatePins(ctx, p)
}

func (s *Session) EvaluatePins(ctx context.Context, p Pins) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.Mode != s.mode {
		return Result{}, ErrShapeMismatch
	}
	if s.pinned {
		if err := s.solver.UpdatePins(p); err != nil {
			return Result{}, err
		}
	} else {
		if err := s.solver.AddPins(p); err != nil {
			return Result{}, err
		}
		s.pinned = true
	}
	return s.solver.Optimize(ctx)
}

// Close removes pins if any were added. It is safe to call more than once.
func (s *Session) Close() error {
	if !s.pinned {
		return nil
	}
	s.pinned = false
	return s.solver.RemovePins()
}

// WithSession runs fn inside a session and always releases the pins.
func WithSession(s Solver, mode Mode, fn func(*Session) error) (err error) {
	sess := OpenSession(s, mode)
	defer func() {
		err = errors.Join(err, sess.Close())
	}()
	return fn(sess)
}
