// Package tools defines the agent's tool contract and the domain tools the
// sales agent can invoke: catalog search, car details, financing plans, and
// knowledge-base lookup.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is one capability the agent may invoke during a turn.
type Tool interface {
	// Name is the identifier used in LLM function calls.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters is the JSON Schema of the tool arguments.
	Parameters() map[string]any

	// Execute runs the tool. args is the raw JSON argument object from the
	// model; the result is text fed back into the conversation.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// ToSchema converts a tool to OpenAI function-calling format.
func ToSchema(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}

type senderKey struct{}

// WithSender tags ctx with the conversation's sender ID so tools can read
// and update per-sender state.
func WithSender(ctx context.Context, senderID string) context.Context {
	return context.WithValue(ctx, senderKey{}, senderID)
}

// SenderFrom extracts the sender ID set by WithSender, or "".
func SenderFrom(ctx context.Context) string {
	s, _ := ctx.Value(senderKey{}).(string)
	return s
}
