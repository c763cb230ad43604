package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioConfig holds Twilio Messages API credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string // e.g. +14155238886
	BaseURL    string // override for tests; default https://api.twilio.com
}

// TwilioGateway sends WhatsApp messages through the Twilio REST API.
type TwilioGateway struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewTwilioGateway creates a Twilio delivery gateway.
func NewTwilioGateway(cfg TwilioConfig) *TwilioGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	return &TwilioGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts a message to the Twilio Messages endpoint. Network errors and
// 5xx map to ErrTransient; 4xx (invalid recipient, auth) map to ErrRejected.
func (g *TwilioGateway) Send(ctx context.Context, recipientID, text string) (Receipt, error) {
	form := url.Values{}
	form.Set("From", whatsappAddress(g.cfg.FromNumber))
	form.Set("To", whatsappAddress(recipientID))
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("%w: twilio %d: %s", ErrTransient, resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("%w: twilio %d: %s", ErrRejected, resp.StatusCode, string(raw))
	}

	var body struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Receipt{}, fmt.Errorf("%w: parse twilio response: %v", ErrTransient, err)
	}

	log.Printf("[Delivery] Sent message to %s (sid=%s)", recipientID, body.SID)
	return Receipt{ProviderID: body.SID, Status: body.Status}, nil
}

// whatsappAddress prefixes a phone number with the whatsapp: scheme Twilio
// expects, leaving already-prefixed addresses alone.
func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
