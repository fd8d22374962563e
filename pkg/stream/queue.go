package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ReadTimeout bounds how long a consumer waits for the next frame before
// declaring the producer stuck.
const ReadTimeout = 300 * time.Second

var (
	// ErrClosed means the producer finished and the queue is drained.
	ErrClosed = errors.New("stream: closed")

	// ErrReadTimeout means no frame arrived within ReadTimeout.
	ErrReadTimeout = errors.New("stream: read timeout")
)

// Sink accepts events from an executing turn.
type Sink interface {
	Send(ev Event)
}

// Discard drops all events, used by non-streaming calls.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Send(Event) {}

// Queue is the single synchronization point between one producing turn and
// one consuming response writer. Sends block when the buffer is full rather
// than dropping; FIFO order is preserved. A Close after the last Send lets
// the consumer drain remaining frames and then observe ErrClosed, at which
// point it emits its own terminal frame if none was seen.
type Queue struct {
	ch   chan Event
	done chan struct{}

	closeOnce sync.Once
}

func NewQueue() *Queue {
	return &Queue{
		ch:   make(chan Event, 256),
		done: make(chan struct{}),
	}
}

// Send enqueues one event. It returns immediately if the queue was closed,
// which only happens after the producing turn ended (late sends from
// cancelled work are discarded).
func (q *Queue) Send(ev Event) {
	select {
	case <-q.done:
		return
	default:
	}
	select {
	case q.ch <- ev:
	case <-q.done:
	}
}

// Close signals end of production. Must be called after the final Send;
// events already enqueued remain readable.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Next returns the next event. ErrClosed after drain means the producer is
// done; ErrReadTimeout means it stalled; a context error means the consumer
// went away.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	// Buffered events win over the closed signal so nothing is lost.
	select {
	case ev := <-q.ch:
		return ev, nil
	default:
	}

	timer := time.NewTimer(ReadTimeout)
	defer timer.Stop()

	select {
	case ev := <-q.ch:
		return ev, nil
	case <-q.done:
		select {
		case ev := <-q.ch:
			return ev, nil
		default:
			return Event{}, ErrClosed
		}
	case <-timer.C:
		return Event{}, ErrReadTimeout
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}
