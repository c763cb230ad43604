// Package worker runs the background loop that turns queued inbound
// messages into delivered replies.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/autoventa/dealerbot/internal/agent"
	"github.com/autoventa/dealerbot/internal/delivery"
	"github.com/autoventa/dealerbot/internal/ledger"
	"github.com/autoventa/dealerbot/internal/queue"
	"github.com/autoventa/dealerbot/internal/session"
)

// State of one processing attempt.
type State string

const (
	StatePending        State = "pending"
	StateInProgress     State = "in_progress"
	StateDelivered      State = "delivered"
	StateRetryScheduled State = "retry_scheduled"
	StateFailed         State = "failed"
)

// Config tunes the worker.
type Config struct {
	PollInterval    time.Duration // queue polling cadence (default 2s)
	MaxAttempts     int           // agent attempts per message (default 3)
	AgentTimeout    time.Duration // budget per agent call (default 90s)
	DeliveryRetries int           // send attempts per reply (default 3)
	DeliveryBackoff time.Duration // base backoff, doubled per retry (default 1s)
}

func (c *Config) fillDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = 90 * time.Second
	}
	if c.DeliveryRetries <= 0 {
		c.DeliveryRetries = 3
	}
	if c.DeliveryBackoff <= 0 {
		c.DeliveryBackoff = time.Second
	}
}

// Worker is the single consumer of the inbound queue. One instance per
// process; it is the only writer of conversation sessions.
type Worker struct {
	queue     *queue.Queue
	sessions  *session.Store
	gateway   agent.Gateway
	deliverer delivery.Gateway
	records   ledger.Ledger
	cfg       Config

	done chan struct{}
}

// New creates a worker.
func New(q *queue.Queue, sessions *session.Store, gw agent.Gateway,
	deliverer delivery.Gateway, records ledger.Ledger, cfg Config) *Worker {
	cfg.fillDefaults()
	return &Worker{
		queue:     q,
		sessions:  sessions,
		gateway:   gw,
		deliverer: deliverer,
		records:   records,
		cfg:       cfg,
		done:      make(chan struct{}),
	}
}

// Run polls the queue until ctx is cancelled. One message is in flight at a
// time; an item being processed when ctx is cancelled runs to completion
// (bounded by the agent timeout) so its outcome gets recorded.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	log.Printf("[Worker] Started (poll interval %s)", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker] Stopped (%d messages left queued)", w.queue.Len())
			return
		case <-ticker.C:
			if entry, ok := w.queue.Poll(); ok {
				w.ProcessEntry(entry)
			}
		}
	}
}

// Done is closed once Run has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// ProcessEntry handles one queue entry through the attempt state machine.
// Exported for tests; Run is the only production caller.
func (w *Worker) ProcessEntry(entry queue.Entry) State {
	msg := entry.Message
	state := StateInProgress

	// Already fully processed (crash-restart or duplicate requeue).
	if w.records.Delivered(context.Background(), msg.MessageID) {
		log.Printf("[Worker] Skipping %s: reply already delivered", msg.MessageID)
		return StateDelivered
	}

	// The user turn is appended once, on the first attempt; retries resume
	// from the agent call.
	if entry.Attempts == 0 {
		w.sessions.AppendTurn(msg.SenderID, session.Turn{
			Role:      session.RoleUser,
			Content:   msg.Body,
			Timestamp: msg.ReceivedAt,
			Extra:     map[string]any{"message_id": msg.MessageID},
		})
	}

	var history []session.Turn
	if snap, ok := w.sessions.Snapshot(msg.SenderID); ok {
		history = snap.History(0)
	}
	// Drop this message's own user turn: the agent receives it as the new
	// message, not as history. Matched by ID rather than position because a
	// retried entry may have newer turns appended after it.
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == session.RoleUser && history[i].Extra["message_id"] == msg.MessageID {
			history = append(history[:i], history[i+1:]...)
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.AgentTimeout)
	reply, err := w.gateway.Invoke(ctx, msg.SenderID, history, msg.Body)
	cancel()

	if err != nil {
		return w.handleAgentFailure(entry, err)
	}

	w.sessions.AppendTurn(msg.SenderID, session.Turn{
		Role:    session.RoleAssistant,
		Content: reply.Text,
		Extra:   assistantExtra(msg.MessageID, reply),
	})

	if w.deliver(msg.SenderID, msg.MessageID, reply.Text) {
		state = StateDelivered
	} else {
		state = StateFailed
	}
	return state
}

func (w *Worker) handleAgentFailure(entry queue.Entry, err error) State {
	msg := entry.Message

	retryable := errors.Is(err, agent.ErrUnavailable)
	if retryable && entry.Attempts+1 < w.cfg.MaxAttempts {
		log.Printf("[Worker] Agent failed for %s (attempt %d/%d), retrying: %v",
			msg.MessageID, entry.Attempts+1, w.cfg.MaxAttempts, err)
		if qErr := w.queue.Requeue(entry); qErr != nil {
			log.Printf("[Worker] Requeue of %s failed: %v", msg.MessageID, qErr)
			w.recordFailure(msg.SenderID, msg.MessageID, err)
			return StateFailed
		}
		return StateRetryScheduled
	}

	log.Printf("[Worker] Processing failed for %s (terminal=%v): %v",
		msg.MessageID, !retryable, err)
	w.recordFailure(msg.SenderID, msg.MessageID, err)
	return StateFailed
}

// recordFailure leaves a trace of the failure on the conversation. The
// webhook caller answered long ago, so this is the only record.
func (w *Worker) recordFailure(senderID, messageID string, err error) {
	w.sessions.SetMetadata(senderID, "last_failure", map[string]any{
		"message_id": messageID,
		"error":      err.Error(),
		"at":         time.Now().Format(time.RFC3339),
	})
}

// deliver sends the reply with capped exponential backoff, recording the
// outcome against the message ID before returning.
func (w *Worker) deliver(senderID, messageID, text string) bool {
	backoff := w.cfg.DeliveryBackoff

	for attempt := 1; attempt <= w.cfg.DeliveryRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		receipt, err := w.deliverer.Send(ctx, senderID, text)
		cancel()

		if err == nil {
			w.records.MarkDelivered(context.Background(), messageID)
			log.Printf("[Worker] Delivered reply for %s (provider id %s)", messageID, receipt.ProviderID)
			return true
		}
		if errors.Is(err, delivery.ErrRejected) {
			log.Printf("[Worker] Delivery rejected for %s: %v", messageID, err)
			break
		}

		log.Printf("[Worker] Delivery attempt %d/%d for %s failed: %v",
			attempt, w.cfg.DeliveryRetries, messageID, err)
		if attempt < w.cfg.DeliveryRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	w.sessions.SetMetadata(senderID, "last_undelivered", map[string]any{
		"message_id": messageID,
		"at":         time.Now().Format(time.RFC3339),
	})
	return false
}

func assistantExtra(messageID string, reply agent.Reply) map[string]any {
	extra := map[string]any{"message_id": messageID}
	if len(reply.ToolTrace) > 0 {
		tools := make([]string, len(reply.ToolTrace))
		for i, entry := range reply.ToolTrace {
			tools[i] = entry.Tool
		}
		extra["tools"] = tools
	}
	return extra
}
