// Package queue defines message payloads exchanged over the message broker.
package queue

// CheckoutCompletedEvent is published when a checkout is reconciled as paid.
// It carries enough information for downstream consumers to log, notify, or
// feed analytics without querying the primary database.  Crediting the
// earned points is NOT triggered by this event; that remains a backend side
// effect of the gateway webhook.
type CheckoutCompletedEvent struct {
	CheckoutID     string `json:"checkout_id"`
	UserID         uint64 `json:"user_id"`
	EventID        uint64 `json:"event_id"`
	EventTitle     string `json:"event_title"`
	TierID         uint64 `json:"tier_id"`
	TierLabel      string `json:"tier_label"`
	Quantity       int64  `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
	Subtotal       int64  `json:"subtotal"`
	Discount       int64  `json:"discount"`
	FinalTotal     int64  `json:"final_total"`
	PointsRedeemed int64  `json:"points_redeemed"`
	PointsToEarn   int64  `json:"points_to_earn"`
	SessionID      string `json:"session_id"`
	CompletedAt    string `json:"completed_at"`
}
