// Package pricing implements the checkout total arithmetic.  All functions
// are pure and deterministic so they can be recomputed on every selection
// change without side effects.  Currency values are integers in the smallest
// currency unit; floating point is never used.
package pricing

const (
	// earnDivisor implements the 10% earn rate: pointsToEarn is the final
	// total divided by ten, truncated toward zero.
	earnDivisor = 10

	// capDivisor implements the 50% redemption cap: at most half of the
	// subtotal may be paid with points, so non-free tiers always produce a
	// strictly positive charge.
	capDivisor = 2
)

// Totals is the derived pricing state for an order selection.  It is
// recomputed from scratch on every quantity or redemption change.
//
// Fields:
//
//	Subtotal     – unit price multiplied by quantity.
//	Discount     – redeemed points at the fixed 1 point = 1 unit rate.
//	FinalTotal   – max(0, Subtotal − Discount); the only amount the
//	               payment gateway is ever told to charge.
//	PointsToEarn – floor(FinalTotal × 0.10), credited by the backend
//	               after payment confirmation.
type Totals struct {
	Subtotal     int64 `json:"subtotal"`
	Discount     int64 `json:"discount"`
	FinalTotal   int64 `json:"final_total"`
	PointsToEarn int64 `json:"points_to_earn"`
}

// Quote computes the totals for a selection.  Inputs are expected to be
// pre-clamped by the caller (quantity bounds, RedemptionCap); Quote itself
// never fails and never mutates anything.
func Quote(unitPrice, quantity, redeemedPoints int64) Totals {
	subtotal := unitPrice * quantity
	discount := redeemedPoints
	final := subtotal - discount
	if final < 0 {
		final = 0
	}
	return Totals{
		Subtotal:     subtotal,
		Discount:     discount,
		FinalTotal:   final,
		PointsToEarn: final / earnDivisor,
	}
}

// RedemptionCap returns the maximum number of points that may be redeemed
// against the given subtotal: min(balance, floor(subtotal/2)).  The cap is
// independent of balance size beyond the balance itself, so a large holder
// can never zero out a paid tier.
func RedemptionCap(subtotal, balance int64) int64 {
	if subtotal < 0 {
		subtotal = 0
	}
	if balance < 0 {
		balance = 0
	}
	cap := subtotal / capDivisor
	if balance < cap {
		return balance
	}
	return cap
}

// ClampRedemption forces a requested redemption into [0, cap].  Out-of-range
// requests are silently clamped rather than rejected; the UI treats the cap
// as a soft ceiling, not an error condition.
func ClampRedemption(requested, cap int64) int64 {
	if requested < 0 {
		return 0
	}
	if requested > cap {
		return cap
	}
	return requested
}
