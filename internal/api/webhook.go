package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autoventa/dealerbot/internal/queue"
)

// emptyTwiML tells Twilio not to send an immediate reply; the worker answers
// out of band.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// handleWebhook accepts an inbound WhatsApp message from Twilio. It only
// validates, dedups and enqueues; all heavy work happens on the worker, so
// the provider gets its answer within its delivery timeout.
func (s *Server) handleWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "malformed form body")
		return
	}
	form := c.Request.PostForm

	if s.cfg.TwilioAuthToken != "" {
		signature := c.GetHeader("X-Twilio-Signature")
		requestURL := s.cfg.PublicURL + c.Request.URL.RequestURI()
		if !ValidateTwilioSignature(s.cfg.TwilioAuthToken, requestURL, form, signature) {
			log.Printf("[Webhook] Rejected request with bad signature from %s", c.ClientIP())
			c.String(http.StatusForbidden, "invalid signature")
			return
		}
	}

	messageID := form.Get("MessageSid")
	sender := strings.TrimPrefix(form.Get("From"), "whatsapp:")
	body := form.Get("Body")
	if messageID == "" || sender == "" || body == "" {
		c.String(http.StatusBadRequest, "missing MessageSid, From or Body")
		return
	}

	// Provider redelivery of a message we already accepted: acknowledge
	// without enqueueing so it is processed at most once.
	if !s.records.MarkSeen(c.Request.Context(), messageID) {
		log.Printf("[Webhook] Duplicate %s from %s, ignoring", messageID, sender)
		c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))
		return
	}

	err := s.queue.TryEnqueue(queue.InboundMessage{
		MessageID:  messageID,
		SenderID:   sender,
		Body:       body,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		if errors.Is(err, queue.ErrFull) {
			log.Printf("[Webhook] Queue full, shedding %s from %s", messageID, sender)
			c.Header("Retry-After", "30")
			c.String(http.StatusServiceUnavailable, "queue full, retry later")
			return
		}
		c.String(http.StatusInternalServerError, "enqueue failed")
		return
	}

	c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))
}
