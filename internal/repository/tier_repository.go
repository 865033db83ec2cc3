package repository // repository for price tier persistence

import (
	"context"
	"database/sql"

	"github.com/evently/checkout-service/internal/model"
)

// TierRepo encapsulates read access to the price_tiers table.  Tier rows
// are written by the upstream event service; this service never inserts,
// updates or deletes them.  Stock values read here are advisory bounds for
// quantity clamping — the authoritative stock check happens in the backend
// when the charge is created.
type TierRepo struct {
	db *sql.DB
}

// NewTierRepo constructs a TierRepo given a DB handle.
func NewTierRepo(db *sql.DB) *TierRepo {
	return &TierRepo{db: db}
}

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories.
func (r *TierRepo) DB() *sql.DB { return r.db }

// GetByID fetches a single tier.  Returns ErrTierNotFound when the id does
// not exist.
func (r *TierRepo) GetByID(ctx context.Context, id uint64) (*model.PriceTier, error) {
	const q = `SELECT id, event_id, label, unit_price, remaining_stock, created_at, updated_at
	           FROM price_tiers WHERE id = ?`
	var t model.PriceTier
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.EventID, &t.Label, &t.UnitPrice, &t.RemainingStock, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByEvent returns all tiers of an event ordered by unit price.  An
// event with no tiers yields an empty slice, not an error.
func (r *TierRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.PriceTier, error) {
	const q = `SELECT id, event_id, label, unit_price, remaining_stock, created_at, updated_at
	           FROM price_tiers WHERE event_id = ? ORDER BY unit_price ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make([]model.PriceTier, 0)
	for rows.Next() {
		var t model.PriceTier
		if err := rows.Scan(&t.ID, &t.EventID, &t.Label, &t.UnitPrice, &t.RemainingStock, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
