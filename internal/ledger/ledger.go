// Package ledger records which provider message IDs have been seen and which
// replies were delivered. The webhook receiver uses it to drop provider
// redeliveries; the worker uses it to keep reply delivery idempotent across
// retries and restarts.
package ledger

import (
	"context"
	"sync"
	"time"
)

// Ledger is the dedup / delivery-outcome record.
type Ledger interface {
	// MarkSeen records a message ID. Returns false if it was already seen
	// within the retention window.
	MarkSeen(ctx context.Context, messageID string) bool

	// MarkDelivered records that the reply for messageID went out.
	MarkDelivered(ctx context.Context, messageID string)

	// Delivered reports whether the reply for messageID was already sent.
	Delivered(ctx context.Context, messageID string) bool
}

// Memory is the in-process Ledger. Entries expire after the retention
// window so the maps stay bounded under provider retries.
type Memory struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	delivered map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewMemory creates an in-memory ledger with the given retention window.
func NewMemory(retention time.Duration) *Memory {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Memory{
		seen:      make(map[string]time.Time),
		delivered: make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

func (m *Memory) MarkSeen(_ context.Context, messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	if _, ok := m.seen[messageID]; ok {
		return false
	}
	m.seen[messageID] = m.now()
	return true
}

func (m *Memory) MarkDelivered(_ context.Context, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[messageID] = m.now()
}

func (m *Memory) Delivered(_ context.Context, messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	_, ok := m.delivered[messageID]
	return ok
}

func (m *Memory) expireLocked() {
	cutoff := m.now().Add(-m.retention)
	for id, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.seen, id)
		}
	}
	for id, at := range m.delivered {
		if at.Before(cutoff) {
			delete(m.delivered, id)
		}
	}
}
