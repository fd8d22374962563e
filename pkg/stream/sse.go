package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coworkai/coworker/pkg/observability"
)

// SSEWriter renders events as server-sent-event frames and guarantees the
// terminal-frame contract: exactly one finish or error, always last.
type SSEWriter struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	terminal bool
}

// NewSSEWriter prepares w for event streaming and sends headers.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &SSEWriter{w: w, flusher: flusher}
}

// Write emits one frame. Events after a terminal frame are dropped.
func (s *SSEWriter) Write(ctx context.Context, ev Event) error {
	if s.terminal {
		return nil
	}
	if ev.Terminal() {
		s.terminal = true
	}

	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("stream: marshal %s payload: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	observability.GetMetrics().RecordStreamEvent(ctx, string(ev.Type))
	return nil
}

// Terminated reports whether a terminal frame has been written.
func (s *SSEWriter) Terminated() bool { return s.terminal }

// Drain pumps events from q to the client until a terminal frame, producer
// close, stall, or consumer disconnect. Producer close without a terminal
// frame yields finish with the given fallback status; a stall yields a
// terminal error frame.
func (s *SSEWriter) Drain(ctx context.Context, q *Queue, fallbackStatus string) error {
	for {
		ev, err := q.Next(ctx)
		if err != nil {
			switch {
			case err == ErrClosed:
				return s.Write(ctx, Finish(fallbackStatus))
			case err == ErrReadTimeout:
				_ = s.Write(ctx, Error("stream timed out waiting for events"))
				return nil
			default:
				// Consumer went away; nothing left to write.
				return err
			}
		}
		if err := s.Write(ctx, ev); err != nil {
			return err
		}
		if ev.Terminal() {
			return nil
		}
	}
}
