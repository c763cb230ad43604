// Package delivery sends outbound replies to the sender's messaging channel.
package delivery

import (
	"context"
	"errors"
)

// Failure classification. Callers retry ErrTransient and give up on
// ErrRejected.
var (
	ErrTransient = errors.New("delivery transiently failed")
	ErrRejected  = errors.New("delivery rejected")
)

// Receipt identifies an accepted outbound message.
type Receipt struct {
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
}

// Gateway sends a text message to an external address.
type Gateway interface {
	Send(ctx context.Context, recipientID, text string) (Receipt, error)
}
