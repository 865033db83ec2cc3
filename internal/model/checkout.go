package model

import "time"

// Checkout states.  A checkout row is created in StateSizing when a tier is
// chosen (the pre-persistence "selecting" phase has no row) and moves
// forward only through the orchestrator.  Terminal states are SUCCEEDED,
// CANCELED and FAILED; a CANCELED or recoverably FAILED checkout may be
// resumed into SIZING by a subsequent edit.
const (
	StateSizing          = "SIZING"
	StateRedeeming       = "REDEEMING"
	StateCreatingSession = "CREATING_SESSION"
	StateRedirected      = "REDIRECTED"
	StateReconciling     = "RECONCILING"
	StateSucceeded       = "SUCCEEDED"
	StateCanceled        = "CANCELED"
	StateFailed          = "FAILED"
)

// Checkout is a single in-progress order selection together with its derived
// totals and saga state.  The tier attributes are snapshotted at Begin time
// so the totals shown to the user cannot drift mid-checkout if the tier row
// is repriced; the backend re-validates against live data when charging.
//
// Fields:
//
//	ID               – UUID primary key, generated by this service.
//	UserID           – authenticated owner of the checkout.
//	EventID          – event being purchased.
//	EventTitle       – display title snapshot, used for the gateway
//	                   session description and audit events.
//	TierID           – chosen price tier.
//	TierLabel        – snapshot of the tier label.
//	UnitPrice        – snapshot of the tier unit price.
//	Quantity         – tickets requested, 1..stock.
//	RedeemedPoints   – loyalty points applied to this order.
//	Subtotal         – UnitPrice × Quantity.
//	Discount         – RedeemedPoints at the 1:1 exchange rate.
//	FinalTotal       – the single aggregate amount sent to the gateway.
//	PointsToEarn     – points the backend will credit after payment.
//	State            – saga state, one of the State* constants.
//	SessionID        – gateway session identifier once created.
//	IdempotencyKey   – UUID generated per selection; sent to the gateway
//	                   so a double submit cannot create two sessions.
//	FailureMessage   – human readable error for FAILED checkouts.
//	UnrefundedPoints – points deducted by the ledger that a failed
//	                   compensation could not restore; nonzero values
//	                   require manual reconciliation.
//	CreatedAt        – creation timestamp.
//	UpdatedAt        – last update timestamp.
type Checkout struct {
	ID               string    `json:"id"`                // checkout_sessions.id
	UserID           uint64    `json:"user_id"`           // checkout_sessions.user_id
	EventID          uint64    `json:"event_id"`          // checkout_sessions.event_id
	EventTitle       string    `json:"event_title"`       // checkout_sessions.event_title
	TierID           uint64    `json:"tier_id"`           // checkout_sessions.tier_id
	TierLabel        string    `json:"tier_label"`        // checkout_sessions.tier_label
	UnitPrice        int64     `json:"unit_price"`        // checkout_sessions.unit_price
	Quantity         int64     `json:"quantity"`          // checkout_sessions.quantity
	RedeemedPoints   int64     `json:"redeemed_points"`   // checkout_sessions.redeemed_points
	Subtotal         int64     `json:"subtotal"`          // checkout_sessions.subtotal
	Discount         int64     `json:"discount"`          // checkout_sessions.discount
	FinalTotal       int64     `json:"final_total"`       // checkout_sessions.final_total
	PointsToEarn     int64     `json:"points_to_earn"`    // checkout_sessions.points_to_earn
	State            string    `json:"state"`             // checkout_sessions.state
	SessionID        string    `json:"session_id"`        // checkout_sessions.session_id
	IdempotencyKey   string    `json:"-"`                 // checkout_sessions.idempotency_key
	FailureMessage   string    `json:"failure_message"`   // checkout_sessions.failure_message
	UnrefundedPoints int64     `json:"unrefunded_points"` // checkout_sessions.unrefunded_points
	CreatedAt        time.Time `json:"created_at"`        // checkout_sessions.created_at
	UpdatedAt        time.Time `json:"updated_at"`        // checkout_sessions.updated_at
}

// Terminal reports whether the checkout can no longer be submitted.
// SUCCEEDED is final; CANCELED and FAILED are terminal for the current
// attempt but may be resumed into SIZING by editing the selection.
func (c *Checkout) Terminal() bool {
	switch c.State {
	case StateSucceeded, StateCanceled, StateFailed:
		return true
	}
	return false
}
