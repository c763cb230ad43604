// Package queue provides the bounded inbound message queue that decouples
// webhook ingestion from agent processing.
package queue

import (
	"errors"
	"time"
)

// ErrFull is returned by TryEnqueue when the queue is at capacity.
// Callers translate it into a backpressure signal (HTTP 503).
var ErrFull = errors.New("inbound queue full")

// InboundMessage is a message received from the messaging provider.
type InboundMessage struct {
	MessageID  string    `json:"message_id"` // provider-assigned, used for dedup
	SenderID   string    `json:"sender_id"`  // phone number, stable per conversation
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Entry wraps an InboundMessage with worker-internal bookkeeping.
type Entry struct {
	Message    InboundMessage
	Attempts   int // incremented only on retryable processing failure
	EnqueuedAt time.Time
}

// Queue is a bounded FIFO safe for concurrent producers and a single
// consumer. Global FIFO plus the single consumer gives per-sender ordering.
type Queue struct {
	entries chan Entry
}

// New creates a queue holding at most capacity pending entries.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 100
	}
	return &Queue{entries: make(chan Entry, capacity)}
}

// TryEnqueue adds a message without blocking. Returns ErrFull at capacity.
func (q *Queue) TryEnqueue(msg InboundMessage) error {
	return q.tryPush(Entry{Message: msg, EnqueuedAt: time.Now()})
}

// Requeue puts a failed entry back for another attempt, incrementing its
// attempt count. The entry re-enters at the tail.
func (q *Queue) Requeue(e Entry) error {
	e.Attempts++
	return q.tryPush(e)
}

func (q *Queue) tryPush(e Entry) error {
	select {
	case q.entries <- e:
		return nil
	default:
		return ErrFull
	}
}

// Poll removes and returns the oldest entry, or ok=false when empty.
// Non-blocking: the worker calls this on its polling interval.
func (q *Queue) Poll() (Entry, bool) {
	select {
	case e := <-q.entries:
		return e, true
	default:
		return Entry{}, false
	}
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Cap returns the configured capacity.
func (q *Queue) Cap() int {
	return cap(q.entries)
}
