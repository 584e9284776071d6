// Package oracle is the boundary to the combinatorial solver that scores
// candidate solutions. Only plain integer arrays cross it: callers pin values
// for the decision variables, ask for an optimisation, and read back an
// outcome with an objective and, in first-feasible mode, the completed
// assignment and routes.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Mode selects which variable blocks are pinned.
type Mode int

const (
	// ModeExact pins X, Y and Z and checks the fit of a complete solution.
	ModeExact Mode = iota
	// ModeFirstFeasible pins only X and accepts the first feasible completion.
	ModeFirstFeasible
)

func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeFirstFeasible:
		return "first_feasible"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Outcome of one solve.
type Outcome int

const (
	OutcomeInfeasible Outcome = iota
	OutcomeFeasible
	// OutcomeUnknown means the solver gave up, e.g. on a time budget. Callers
	// treat it as infeasible.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInfeasible:
		return "infeasible"
	case OutcomeFeasible:
		return "feasible"
	case OutcomeUnknown:
		return "unknown"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is what a solve returns. Y and Z are vector encodings and are only
// filled in first-feasible mode.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Objective float64 `json:"objective"`
	Y         []int   `json:"y,omitempty"`
	Z         []int   `json:"z,omitempty"`
}

func (r Result) Feasible() bool { return r.Outcome == OutcomeFeasible }

// Pins are the values fixed on the solver's decision variables. Y and Z are
// matrices in the solver's own indexing and are ignored in first-feasible mode.
type Pins struct {
	Mode Mode
	X    []int
	Y    [][]int
	Z    [][]int
}

// sameShape reports whether q can replace p with a right-hand side update.
func (p Pins) sameShape(q Pins) bool {
	if p.Mode != q.Mode || len(p.X) != len(q.X) {
		return false
	}
	if p.Mode == ModeFirstFeasible {
		return true
	}
	return sameDims(p.Y, q.Y) && sameDims(p.Z, q.Z)
}

func sameDims(a, b [][]int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}

// Solver is a stateful solver instance. Pins are added once, updated in
// place between solves and removed at the end of a batch. A Solver is not
// safe for concurrent use.
type Solver interface {
	AddPins(p Pins) error
	UpdatePins(p Pins) error
	RemovePins() error
	Optimize(ctx context.Context) (Result, error)
}

// Factory builds an independent solver over the same problem instance.
type Factory func() (Solver, error)

var (
	// ErrSolver marks failures of the underlying solver. Infeasibility is an
	// Outcome, never an error.
	ErrSolver = errors.New("oracle: solver failure")

	ErrPinsActive    = errors.New("oracle: pins already added")
	ErrNoPins        = errors.New("oracle: no pins added")
	ErrShapeMismatch = errors.New("oracle: pin shape mismatch")
	ErrPoolClosed    = errors.New("oracle: pool closed")
)

// Error wraps a solver failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "oracle: " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() []error { return []error{ErrSolver, e.Err} }

func closeSolver(s Solver) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
