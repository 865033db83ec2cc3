// Package payment builds and creates hosted payment-gateway sessions.  The
// gateway is only ever told a single aggregate amount to charge; unit price
// and quantity travel in flat metadata for backend audit and reconciliation,
// never as chargeable fields, so a tampered client cannot change what a
// ticket costs by editing a quantity the gateway would multiply.
package payment

import (
	"strconv"

	"github.com/evently/checkout-service/internal/model"
)

// Currency is the ISO 4217 code the gateway charges in.
const Currency = "lkr"

// SessionRequest is the outbound create-session payload.  FinalAmount is
// the only amount the gateway will charge.  Metadata values are strings to
// satisfy the flat key-value constraint of the gateway API.
type SessionRequest struct {
	EventTitle  string            `json:"eventTitle"`
	Description string            `json:"description"`
	FinalAmount int64             `json:"finalAmount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

// SessionResult is the gateway's response: an opaque session id and the
// hosted checkout URL the browser is redirected to.
type SessionResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// BuildSessionRequest constructs the single-line-item session request from
// a checkout.  Exactly one charge line equal to the final total; everything
// else is advisory metadata.
func BuildSessionRequest(c *model.Checkout) SessionRequest {
	return SessionRequest{
		EventTitle:  c.EventTitle,
		Description: c.TierLabel + " x " + strconv.FormatInt(c.Quantity, 10),
		FinalAmount: c.FinalTotal,
		Currency:    Currency,
		Metadata: map[string]string{
			"eventId":           strconv.FormatUint(c.EventID, 10),
			"priceId":           strconv.FormatUint(c.TierID, 10),
			"quantity":          strconv.FormatInt(c.Quantity, 10),
			"unitPrice":         strconv.FormatInt(c.UnitPrice, 10),
			"loyaltyPointsUsed": strconv.FormatInt(c.RedeemedPoints, 10),
			"subtotal":          strconv.FormatInt(c.Subtotal, 10),
			"discount":          strconv.FormatInt(c.Discount, 10),
		},
	}
}
