// Package sse writes text/event-stream responses.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Stream is one client's event stream. It is not safe for concurrent use.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// Open prepares w for streaming. It returns false when the response
// writer cannot flush.
func Open(w http.ResponseWriter) (*Stream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, flusher: flusher}, true
}

func (s *Stream) Send(event Event) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Stream) SendJSON(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.Send(Event{Type: eventType, Data: jsonData})
}

// Ping writes a comment line so proxies keep the connection open.
func (s *Stream) Ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
