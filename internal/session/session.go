// Package session implements per-sender conversation state: an ordered,
// append-only transcript plus a small metadata blob.
package session

import (
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is a single message within a conversation.
type Turn struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Session holds one sender's transcript. Turns are appended in processing
// order and never reordered or mutated in place. Only the message worker
// writes to a session; the store serializes structural access.
type Session struct {
	SenderID       string         `json:"sender_id"`
	Turns          []Turn         `json:"turns"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

func (s *Session) appendTurn(t Turn, maxTurns int) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	s.Turns = append(s.Turns, t)
	s.LastActivityAt = time.Now()

	// Bounded memory: keep only the most recent turns.
	if maxTurns > 0 && len(s.Turns) > maxTurns {
		trimmed := make([]Turn, maxTurns)
		copy(trimmed, s.Turns[len(s.Turns)-maxTurns:])
		s.Turns = trimmed
	}
}

// History returns up to maxTurns of the most recent turns in LLM message
// order. The returned slice is a copy.
func (s *Session) History(maxTurns int) []Turn {
	start := 0
	if maxTurns > 0 && len(s.Turns) > maxTurns {
		start = len(s.Turns) - maxTurns
	}
	out := make([]Turn, len(s.Turns)-start)
	copy(out, s.Turns[start:])
	return out
}
