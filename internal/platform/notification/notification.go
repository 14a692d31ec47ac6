// Package notification delivers outbound SMS messages to patients. The
// workflow invokes it on approval only; delivery is best effort and a
// failure must never roll back the state change that triggered it.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// SMSSender is the interface the workflow depends on.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// GatewaySender delivers SMS through an HTTP gateway that accepts a JSON
// POST of recipient, message and sender id.
type GatewaySender struct {
	url      string
	apiKey   string
	senderID string
	httpc    *http.Client
}

// NewGatewaySender constructs a GatewaySender with a bounded call timeout.
func NewGatewaySender(url, apiKey, senderID string, timeout time.Duration) *GatewaySender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewaySender{
		url:      url,
		apiKey:   apiKey,
		senderID: senderID,
		httpc:    &http.Client{Timeout: timeout},
	}
}

type gatewayPayload struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id,omitempty"`
}

// SendSMS posts the message to the gateway. Any non-2xx response is an
// error.
func (g *GatewaySender) SendSMS(ctx context.Context, to, body string) error {
	if to == "" {
		return fmt.Errorf("recipient number is required")
	}

	payload, err := json.Marshal(gatewayPayload{To: to, Message: body, SenderID: g.senderID})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SendSMS records the call and optionally returns an error.
func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
