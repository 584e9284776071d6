package store

import (
	"context"
	"errors"
	"time"
)

// Run is a finished (or failed) search as it is persisted: the best solution
// in vector form plus the parameters and population figures of the run.
type Run struct {
	ID         string         `json:"id"`
	Instance   string         `json:"instance"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Objective  *float64       `json:"objective,omitempty"`
	X          []int          `json:"x,omitempty"`
	Y          []int          `json:"y,omitempty"`
	Z          []int          `json:"z,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Stats      map[string]any `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Run statuses.
const (
	StatusRunning    = "running"
	StatusSolved     = "solved"
	StatusNoSolution = "no_solution"
	StatusFailed     = "failed"
)

// Store persists runs.
type Store interface {
	// SaveRun inserts or replaces a run; an empty ID is assigned.
	SaveRun(ctx context.Context, r Run) (Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns pages by ascending ID; cursor is the last ID of the previous page.
	ListRuns(ctx context.Context, cursor string, limit int) ([]Run, string, error)
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
