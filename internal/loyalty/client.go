// Package loyalty talks to the external loyalty ledger service.  The ledger
// owns the point balance; this package never mutates a balance locally and
// treats every local read as a cache that may go stale until the next fetch.
package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrLedgerRejected is returned when the ledger refuses a redemption or
// refund (insufficient balance, closed account).  No points moved; the
// caller may adjust the request and retry.
var ErrLedgerRejected = errors.New("ledger rejected the request")

// RedeemResult reports what the ledger actually did.  RedeemedPoints may in
// principle differ from the requested amount; the orchestrator treats a
// mismatch as a reconciliation defect rather than silently accepting it.
type RedeemResult struct {
	RedeemedPoints   int64 `json:"redeemedPoints"`
	DiscountValue    int64 `json:"discountValue"`
	RemainingBalance int64 `json:"remainingBalance"`
}

// Ledger is the external collaborator interface the orchestrator depends
// on.  Keeping it an interface lets the saga be tested without a live
// ledger service.
type Ledger interface {
	// Balance fetches the holder's current point balance.
	Balance(ctx context.Context, userID uint64) (int64, error)
	// Redeem deducts points from the server-held balance.  On error no
	// deduction occurred.
	Redeem(ctx context.Context, userID uint64, points int64, description string) (RedeemResult, error)
	// Refund restores previously redeemed points.  Used as the
	// compensation step when session creation fails after a successful
	// redemption.
	Refund(ctx context.Context, userID uint64, points int64, description string) error
}

// HTTPLedger implements Ledger against the ledger service's REST API.
type HTTPLedger struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPLedger constructs an HTTPLedger.  A nil client falls back to
// http.DefaultClient.
func NewHTTPLedger(baseURL string, hc *http.Client) *HTTPLedger {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPLedger{baseURL: baseURL, hc: hc}
}

// Balance implements Ledger via GET /loyalty/balance.
func (l *HTTPLedger) Balance(ctx context.Context, userID uint64) (int64, error) {
	url := fmt.Sprintf("%s/loyalty/balance?user_id=%d", l.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("ledger balance: status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	if out.Balance < 0 {
		return 0, nil
	}
	return out.Balance, nil
}

// Redeem implements Ledger via POST /loyalty/redeem.  A success=false body
// or a non-2xx status maps to ErrLedgerRejected; in both cases the ledger
// guarantees no deduction happened.
func (l *HTTPLedger) Redeem(ctx context.Context, userID uint64, points int64, description string) (RedeemResult, error) {
	payload := struct {
		UserID      uint64 `json:"user_id"`
		Points      int64  `json:"points"`
		Description string `json:"description"`
	}{userID, points, description}

	body, err := l.post(ctx, "/loyalty/redeem", payload)
	if err != nil {
		return RedeemResult{}, err
	}

	var out struct {
		Success bool `json:"success"`
		RedeemResult
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return RedeemResult{}, fmt.Errorf("ledger redeem: %w", err)
	}
	if !out.Success {
		return RedeemResult{}, ErrLedgerRejected
	}
	return out.RedeemResult, nil
}

// Refund implements Ledger via POST /loyalty/refund.
func (l *HTTPLedger) Refund(ctx context.Context, userID uint64, points int64, description string) error {
	payload := struct {
		UserID      uint64 `json:"user_id"`
		Points      int64  `json:"points"`
		Description string `json:"description"`
	}{userID, points, description}

	body, err := l.post(ctx, "/loyalty/refund", payload)
	if err != nil {
		return err
	}

	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("ledger refund: %w", err)
	}
	if !out.Success {
		return ErrLedgerRejected
	}
	return nil
}

// post marshals the payload, performs the request and returns the raw 2xx
// response body.  Non-2xx statuses map to ErrLedgerRejected with the
// ledger's message attached.
func (l *HTTPLedger) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewBuffer(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrLedgerRejected, resp.StatusCode, string(body))
	}
	return body, nil
}
