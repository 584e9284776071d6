// Package main runs a demo WebSocket client that tails a run's events.
//
//	go run ./scripts/ws_client.go [runID]
//
// Without a run ID it picks the first run listed by the server.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type wsMessage struct {
	Type  string          `json:"type"`
	RunID string          `json:"runId"`
	Event json.RawMessage `json:"event,omitempty"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	runID := ""
	if len(os.Args) > 1 {
		runID = os.Args[1]
	} else {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(base + "/v1/runs?limit=1")
		if err != nil {
			log.Fatal().Err(err).Msg("list runs")
		}
		defer func() { _ = resp.Body.Close() }()
		var page struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			log.Fatal().Err(err).Msg("decode runs")
		}
		if len(page.Items) == 0 {
			log.Fatal().Msg("no runs returned")
		}
		runID = page.Items[0].ID
	}
	log.Info().Str("run", runID).Msg("tailing")

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + runID + "/events"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial")
	}
	defer func() { _ = c.Close() }()

	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("run finished")
				return
			}
			log.Error().Err(err).Msg("read")
			return
		}
		log.Info().Str("type", m.Type).RawJSON("event", m.Event).Msg("WS <-")
	}
}
