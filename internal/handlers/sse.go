package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	streamWriteTimeout = 10 * time.Second
	defaultHeartbeat   = 25 * time.Second
)

// eventStream writes server-sent events. Each write extends the connection's
// write deadline so the server-wide WriteTimeout does not cut streams short.
type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &eventStream{w: w, rc: rc}
	if err := s.flush(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *eventStream) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	s.extendDeadline()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return s.flush()
}

func (s *eventStream) ping() error {
	s.extendDeadline()
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.flush()
}

func (s *eventStream) extendDeadline() {
	// Recorders and some proxies do not support deadlines; streaming still works.
	_ = s.rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
}

func (s *eventStream) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
