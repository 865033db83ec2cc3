package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GatewayError carries the backend's error text verbatim so the user sees
// the same message the gateway produced.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("payment gateway returned status %d", e.StatusCode)
}

// Gateway creates hosted checkout sessions.  An interface so the saga can
// be tested without a live gateway.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest, idempotencyKey string) (SessionResult, error)
}

// HTTPGateway implements Gateway against the payment backend's REST API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewHTTPGateway constructs an HTTPGateway.  A nil client falls back to
// http.DefaultClient.
func NewHTTPGateway(baseURL, apiKey string, hc *http.Client) *HTTPGateway {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPGateway{baseURL: baseURL, apiKey: apiKey, hc: hc}
}

// CreateSession posts the session request.  The per-selection idempotency
// key travels in the Idempotency-Key header so a double submit that slips
// past the busy guard cannot create two gateway sessions.
func (g *HTTPGateway) CreateSession(ctx context.Context, sr SessionRequest, idempotencyKey string) (SessionResult, error) {
	buf, err := json.Marshal(sr)
	if err != nil {
		return SessionResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payment/create-session", bytes.NewBuffer(buf))
	if err != nil {
		return SessionResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.hc.Do(req)
	if err != nil {
		return SessionResult{}, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SessionResult{}, fmt.Errorf("create session: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SessionResult{}, &GatewayError{StatusCode: resp.StatusCode, Message: gatewayMessage(body)}
	}

	var out SessionResult
	if err := json.Unmarshal(body, &out); err != nil {
		return SessionResult{}, fmt.Errorf("create session: %w", err)
	}
	if out.SessionID == "" || out.URL == "" {
		return SessionResult{}, fmt.Errorf("create session: incomplete gateway response")
	}
	return out, nil
}

// gatewayMessage extracts a human readable message from an error body.
// The backend usually answers {"error": "..."} but plain text happens too.
func gatewayMessage(body []byte) string {
	var out struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err == nil {
		if out.Error != "" {
			return out.Error
		}
		if out.Message != "" {
			return out.Message
		}
	}
	return strings.TrimSpace(string(body))
}
