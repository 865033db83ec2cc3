package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evently/checkout-service/internal/model"
)

func sampleCheckout() *model.Checkout {
	return &model.Checkout{
		ID:             "ck_1",
		UserID:         42,
		EventID:        3,
		EventTitle:     "Jazz Night",
		TierID:         7,
		TierLabel:      "VIP",
		UnitPrice:      4465,
		Quantity:       2,
		RedeemedPoints: 2232,
		Subtotal:       8930,
		Discount:       2232,
		FinalTotal:     6698,
		PointsToEarn:   669,
		IdempotencyKey: "idem-1",
	}
}

func TestBuildSessionRequestSingleLineItem(t *testing.T) {
	req := BuildSessionRequest(sampleCheckout())

	if req.FinalAmount != 6698 {
		t.Errorf("final amount = %d, want 6698", req.FinalAmount)
	}
	if req.Currency != "lkr" {
		t.Errorf("currency = %q, want lkr", req.Currency)
	}
	if req.EventTitle != "Jazz Night" {
		t.Errorf("event title = %q", req.EventTitle)
	}
	if req.Description != "VIP x 2" {
		t.Errorf("description = %q, want \"VIP x 2\"", req.Description)
	}

	want := map[string]string{
		"eventId":           "3",
		"priceId":           "7",
		"quantity":          "2",
		"unitPrice":         "4465",
		"loyaltyPointsUsed": "2232",
		"subtotal":          "8930",
		"discount":          "2232",
	}
	for k, v := range want {
		if req.Metadata[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, req.Metadata[k], v)
		}
	}
	if len(req.Metadata) != len(want) {
		t.Errorf("metadata has %d keys, want %d", len(req.Metadata), len(want))
	}
}

func TestBuildSessionRequestMetadataIsFlat(t *testing.T) {
	raw, err := json.Marshal(BuildSessionRequest(sampleCheckout()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Metadata map[string]string `json:"metadata"`
	}
	// All metadata values must decode as plain strings; nested objects
	// would fail this unmarshal.
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("metadata is not flat string key-values: %v", err)
	}
}

func TestHTTPGatewayCreateSession(t *testing.T) {
	var gotKey, gotPath string
	var gotReq SessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(SessionResult{SessionID: "cs_9", URL: "https://pay.example/cs_9"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", nil)
	res, err := g.CreateSession(context.Background(), BuildSessionRequest(sampleCheckout()), "idem-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if res.SessionID != "cs_9" || res.URL != "https://pay.example/cs_9" {
		t.Errorf("result = %+v", res)
	}
	if gotPath != "/payment/create-session" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "idem-1" {
		t.Errorf("idempotency key = %q, want idem-1", gotKey)
	}
	if gotReq.FinalAmount != 6698 {
		t.Errorf("posted final amount = %d, want 6698", gotReq.FinalAmount)
	}
}

func TestHTTPGatewaySurfacesBackendErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "stripe is down, try later"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", nil)
	_, err := g.CreateSession(context.Background(), BuildSessionRequest(sampleCheckout()), "")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("err = %v, want *GatewayError", err)
	}
	if gwErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", gwErr.StatusCode)
	}
	if gwErr.Message != "stripe is down, try later" {
		t.Errorf("message = %q, want backend text verbatim", gwErr.Message)
	}
}

func TestHTTPGatewayRejectsIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sessionId": "cs_9"}) // no url
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", nil)
	if _, err := g.CreateSession(context.Background(), BuildSessionRequest(sampleCheckout()), ""); err == nil {
		t.Fatal("CreateSession accepted a response without a redirect url")
	}
}
