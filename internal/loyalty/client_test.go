package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPLedgerBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loyalty/balance" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("user_id") != "42" {
			t.Errorf("user_id = %q", r.URL.Query().Get("user_id"))
		}
		json.NewEncoder(w).Encode(map[string]int64{"balance": 10000})
	}))
	defer srv.Close()

	l := NewHTTPLedger(srv.URL, nil)
	bal, err := l.Balance(context.Background(), 42)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 10000 {
		t.Errorf("balance = %d, want 10000", bal)
	}
}

func TestHTTPLedgerRedeem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loyalty/redeem" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			UserID      uint64 `json:"user_id"`
			Points      int64  `json:"points"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Points != 2232 || body.Description == "" {
			t.Errorf("body = %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":          true,
			"redeemedPoints":   2232,
			"discountValue":    2232,
			"remainingBalance": 7768,
		})
	}))
	defer srv.Close()

	l := NewHTTPLedger(srv.URL, nil)
	res, err := l.Redeem(context.Background(), 42, 2232, "checkout ck_1")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if res.RedeemedPoints != 2232 || res.RemainingBalance != 7768 {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPLedgerRedeemRejected(t *testing.T) {
	// success=false in a 200 body and a plain non-2xx both map to
	// ErrLedgerRejected; either way no points moved.
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"success false", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
		}},
		{"http 422", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": "insufficient balance"})
		}},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(tc.handler)
		l := NewHTTPLedger(srv.URL, nil)
		_, err := l.Redeem(context.Background(), 42, 999999, "checkout ck_1")
		srv.Close()
		if !errors.Is(err, ErrLedgerRejected) {
			t.Errorf("%s: err = %v, want ErrLedgerRejected", tc.name, err)
		}
	}
}

func TestHTTPLedgerRefund(t *testing.T) {
	var gotPoints int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loyalty/refund" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Points int64 `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotPoints = body.Points
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	l := NewHTTPLedger(srv.URL, nil)
	if err := l.Refund(context.Background(), 42, 2232, "refund for failed checkout"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if gotPoints != 2232 {
		t.Errorf("refunded %d points, want 2232", gotPoints)
	}
}

func TestCachedLedgerPassThroughWithoutRedis(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]int64{"balance": 5000})
	}))
	defer srv.Close()

	// nil Redis client: every read goes to the ledger.
	c := NewCachedLedger(NewHTTPLedger(srv.URL, nil), nil, 0)
	for i := 0; i < 3; i++ {
		bal, err := c.Balance(context.Background(), 42)
		if err != nil {
			t.Fatalf("Balance: %v", err)
		}
		if bal != 5000 {
			t.Errorf("balance = %d, want 5000", bal)
		}
	}
	if calls != 3 {
		t.Errorf("ledger hit %d times, want 3 (pass-through)", calls)
	}
}
