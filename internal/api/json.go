package api

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 body. Type is one of the problem URNs below.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

const (
	problemBadQuery    = "urn:waterflow:problem:bad-query"
	problemRunNotFound = "urn:waterflow:problem:run-not-found"
	problemStore       = "urn:waterflow:problem:store-unavailable"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	s.encode(w, "application/json", status, v)
}

// writeProblem answers with a problem of the given type for the request path.
// Server-side problems are logged.
func (s *Server) writeProblem(w http.ResponseWriter, r *http.Request, status int, typ, detail string) {
	if status >= http.StatusInternalServerError {
		s.Log.Error().Str("path", r.URL.Path).Str("problem", typ).Msg(detail)
	}
	s.encode(w, "application/problem+json", status, Problem{
		Type:     typ,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

func (s *Server) encode(w http.ResponseWriter, contentType string, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warn().Err(err).Int("status", status).Msg("encode response")
	}
}
