// Package events carries run progress notifications from the search driver to
// whoever is watching: the websocket stream, logs, or tests.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by a run.
const (
	CloudStarted    = "cloud.started"
	CloudAbandoned  = "cloud.abandoned"
	OptimumFound    = "optimum.found"
	ErosionPromoted = "erosion.promoted"
	ErosionFinished = "erosion.finished"
	RunFinished     = "run.finished"
)

type Event struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	RunID string         `json:"runId"`
	At    time.Time      `json:"at"`
	Data  map[string]any `json:"data,omitempty"`
}

func New(runID, typ string, data map[string]any) Event {
	return Event{ID: uuid.NewString(), Type: typ, RunID: runID, At: time.Now().UTC(), Data: data}
}

// Publisher is the write side used by the search driver.
type Publisher interface {
	Publish(runID string, evt Event)
}

// Broker fans events out to subscribers of a run.
type Broker interface {
	Publisher
	Subscribe(runID string) chan Event
	Unsubscribe(runID string, ch chan Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(string, Event) {}
