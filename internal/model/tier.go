package model

import "time"

// PriceTier represents a purchasable ticket category for an event.
// Tier rows are maintained by the upstream event service; this
// service only reads them to size and price a checkout.  Stock is
// advisory here — the backend re-validates it when the charge is
// actually created.
//
// Fields:
//
//	ID             – primary key identifier.
//	EventID        – event the tier belongs to.
//	Label          – human readable category name (e.g. "VIP").
//	UnitPrice      – price per ticket in the smallest currency unit.
//	RemainingStock – tickets still available in this tier.
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type PriceTier struct {
	ID             uint64    `json:"id"`              // price_tiers.id
	EventID        uint64    `json:"event_id"`        // price_tiers.event_id
	Label          string    `json:"label"`           // price_tiers.label
	UnitPrice      int64     `json:"unit_price"`      // price_tiers.unit_price
	RemainingStock int64     `json:"remaining_stock"` // price_tiers.remaining_stock
	CreatedAt      time.Time `json:"created_at"`      // price_tiers.created_at
	UpdatedAt      time.Time `json:"updated_at"`      // price_tiers.updated_at
}
