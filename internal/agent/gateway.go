// Package agent implements the LLM sales agent: the Gateway contract the
// message worker consumes, and the tool-calling loop behind it.
package agent

import (
	"context"
	"errors"

	"github.com/autoventa/dealerbot/internal/session"
)

// Failure classification for Invoke. The worker retries ErrUnavailable and
// fails immediately on ErrRejected.
var (
	ErrUnavailable = errors.New("agent unavailable")
	ErrRejected    = errors.New("agent rejected input")
)

// ToolTraceEntry records one tool invocation made while producing a reply.
type ToolTraceEntry struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
}

// Reply is the agent's answer to one inbound message.
type Reply struct {
	Text      string           `json:"text"`
	ToolTrace []ToolTraceEntry `json:"tool_trace,omitempty"`
}

// Gateway produces a reply given the conversation so far and a new message.
// Stateless between calls: all continuity lives in the supplied history.
type Gateway interface {
	Invoke(ctx context.Context, senderID string, history []session.Turn, message string) (Reply, error)
}
