package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"waterflow/internal/events"
	"waterflow/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Memory, *events.Memory) {
	t.Helper()
	st := store.NewMemory()
	broker := events.NewMemory()
	return NewServer(st, broker, zerolog.Nop()), st, broker
}

func TestHealthReady(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Contains(t, body["build"], "version")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRunLookup(t *testing.T) {
	s, st, _ := newTestServer(t)
	obj := 213.0
	run, err := st.SaveRun(context.Background(), store.Run{Instance: "five", Status: store.StatusSolved, Objective: &obj, X: []int{1, 1, 0}})
	require.NoError(t, err)
	h := s.Routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got store.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, run.ID, got.ID)
	require.Equal(t, obj, *got.Objective)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var prob Problem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &prob))
	require.Equal(t, problemRunNotFound, prob.Type)
	require.Equal(t, "Not Found", prob.Title)
	require.Equal(t, "/v1/runs/nope", prob.Instance)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Items []store.Run `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=x", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), problemBadQuery)
}

// failingStore fails every call.
type failingStore struct{ store.Memory }

var errStoreDown = errors.New("store down")

func (*failingStore) ListRuns(context.Context, string, int) ([]store.Run, string, error) {
	return nil, "", errStoreDown
}

func (*failingStore) GetRun(context.Context, string) (store.Run, error) {
	return store.Run{}, errStoreDown
}

func TestStoreFailureIsAProblem(t *testing.T) {
	s := NewServer(&failingStore{}, events.NewMemory(), zerolog.Nop())
	h := s.Routes()
	for _, path := range []string{"/v1/runs", "/v1/runs/r1"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusInternalServerError, rr.Code, path)
		var prob Problem
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &prob))
		require.Equal(t, problemStore, prob.Type)
		require.Equal(t, errStoreDown.Error(), prob.Detail)
	}
}

func dial(t *testing.T, srv *httptest.Server, runID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/" + runID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestRunEventsStreamUntilFinished(t *testing.T) {
	s, _, broker := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	conn := dial(t, srv, "r1")
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "subscribed", msg.Type)

	broker.Publish("r1", events.New("r1", events.OptimumFound, map[string]any{"objective": 213.0}))
	broker.Publish("r2", events.New("r2", events.OptimumFound, nil))
	broker.Publish("r1", events.New("r1", events.RunFinished, nil))

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, events.OptimumFound, msg.Event.Type)
	require.Equal(t, "r1", msg.Event.RunID)
	msg = wsMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, events.RunFinished, msg.Event.Type)

	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestRunEventsForFinishedRun(t *testing.T) {
	s, st, _ := newTestServer(t)
	run, err := st.SaveRun(context.Background(), store.Run{Status: store.StatusNoSolution})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	conn := dial(t, srv, run.ID)
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, events.RunFinished, msg.Event.Type)
	require.Equal(t, store.StatusNoSolution, msg.Event.Data["status"])
}
