package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"waterflow/internal/buildinfo"
	"waterflow/internal/events"
	"waterflow/internal/store"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok", "build": buildinfo.Info()}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			s.writeProblem(w, r, http.StatusServiceUnavailable, problemStore, err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// RunsHandler lists persisted runs: GET /v1/runs?cursor=&limit=
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeProblem(w, r, http.StatusBadRequest, problemBadQuery, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, next, err := s.Store.ListRuns(r.Context(), q.Get("cursor"), limit)
	if err != nil {
		s.writeProblem(w, r, http.StatusInternalServerError, problemStore, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": runs, "nextCursor": next})
}

func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeProblem(w, r, http.StatusNotFound, problemRunNotFound, "run not found")
		return
	}
	if err != nil {
		s.writeProblem(w, r, http.StatusInternalServerError, problemStore, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

type wsMessage struct {
	Type  string        `json:"type"`
	RunID string        `json:"runId"`
	Event *events.Event `json:"event,omitempty"`
}

// RunEventsHandler streams a run's events until the run finishes or the
// client goes away. A run that already finished gets a single run.finished.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	if run, err := s.Store.GetRun(r.Context(), id); err == nil && run.Status != store.StatusRunning {
		evt := events.New(id, events.RunFinished, map[string]any{"status": run.Status, "objective": run.Objective})
		_ = conn.WriteJSON(wsMessage{Type: "event", RunID: id, Event: &evt})
		return
	}

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	if err := conn.WriteJSON(wsMessage{Type: "subscribed", RunID: id}); err != nil {
		return
	}

	// Reads only serve pongs and close detection.
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsMessage{Type: "event", RunID: id, Event: &evt}); err != nil {
				return
			}
			if evt.Type == events.RunFinished {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
