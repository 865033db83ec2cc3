package repository // repository for checkout session persistence

import (
	"context"
	"database/sql"
	"strings"

	"github.com/evently/checkout-service/internal/model"
)

// CheckoutRepo encapsulates database operations for checkout_sessions.
// State transitions are written as compare-and-set updates: the UPDATE
// carries the expected current state(s) in its WHERE clause, and zero
// affected rows means another request won the race, which callers see
// as ErrConflict.  This keeps the saga safe against double submits
// without holding a DB transaction open across external calls.
type CheckoutRepo struct {
	db *sql.DB
}

// NewCheckoutRepo constructs a CheckoutRepo given a DB handle.
func NewCheckoutRepo(db *sql.DB) *CheckoutRepo {
	return &CheckoutRepo{db: db}
}

const checkoutColumns = `id, user_id, event_id, event_title, tier_id, tier_label, unit_price, quantity,
	redeemed_points, subtotal, discount, final_total, points_to_earn, state,
	session_id, idempotency_key, failure_message, unrefunded_points, created_at, updated_at`

// Create inserts a new checkout row.  The caller supplies the UUID id and
// idempotency key; timestamps default in the DB.
func (r *CheckoutRepo) Create(ctx context.Context, c *model.Checkout) error {
	const q = `INSERT INTO checkout_sessions
		(id, user_id, event_id, event_title, tier_id, tier_label, unit_price, quantity,
		 redeemed_points, subtotal, discount, final_total, points_to_earn,
		 state, session_id, idempotency_key, failure_message, unrefunded_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.UserID, c.EventID, c.EventTitle, c.TierID, c.TierLabel, c.UnitPrice, c.Quantity,
		c.RedeemedPoints, c.Subtotal, c.Discount, c.FinalTotal, c.PointsToEarn,
		c.State, c.SessionID, c.IdempotencyKey, c.FailureMessage, c.UnrefundedPoints,
	)
	return err
}

func (r *CheckoutRepo) scanOne(row *sql.Row) (*model.Checkout, error) {
	var c model.Checkout
	err := row.Scan(
		&c.ID, &c.UserID, &c.EventID, &c.EventTitle, &c.TierID, &c.TierLabel, &c.UnitPrice, &c.Quantity,
		&c.RedeemedPoints, &c.Subtotal, &c.Discount, &c.FinalTotal, &c.PointsToEarn, &c.State,
		&c.SessionID, &c.IdempotencyKey, &c.FailureMessage, &c.UnrefundedPoints, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID fetches a checkout without an ownership check.  Intended for the
// orchestrator after ownership has already been established.
func (r *CheckoutRepo) GetByID(ctx context.Context, id string) (*model.Checkout, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkout_sessions WHERE id = ?`, id)
	return r.scanOne(row)
}

// GetForUser fetches a checkout and enforces ownership.  Returns
// ErrCheckoutNotFound when the id does not exist and ErrForbidden when the
// row belongs to another user.
func (r *CheckoutRepo) GetForUser(ctx context.Context, id string, userID uint64) (*model.Checkout, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

// SaveSelection persists a quantity or redemption edit together with the
// recomputed totals, returning the checkout to SIZING.  Edits are only
// legal while the checkout is sizing or resumable (canceled / recoverably
// failed); any other current state yields ErrConflict.
func (r *CheckoutRepo) SaveSelection(ctx context.Context, c *model.Checkout) error {
	const q = `UPDATE checkout_sessions
		SET quantity = ?, redeemed_points = ?, subtotal = ?, discount = ?,
		    final_total = ?, points_to_earn = ?, state = ?, failure_message = ''
		WHERE id = ? AND state IN (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		c.Quantity, c.RedeemedPoints, c.Subtotal, c.Discount,
		c.FinalTotal, c.PointsToEarn, model.StateSizing,
		c.ID, model.StateSizing, model.StateCanceled, model.StateFailed,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CompareAndSetState moves a checkout from one of the expected states to
// the target state.  Zero affected rows means the row was not in any
// expected state, reported as ErrConflict.
func (r *CheckoutRepo) CompareAndSetState(ctx context.Context, id, to string, from ...string) error {
	q := `UPDATE checkout_sessions SET state = ? WHERE id = ? AND state IN (` +
		placeholders(len(from)) + `)`
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, to, id)
	for _, s := range from {
		args = append(args, s)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveRedirect records the created gateway session and moves the checkout
// to REDIRECTED.  Only legal from CREATING_SESSION.
func (r *CheckoutRepo) SaveRedirect(ctx context.Context, id, sessionID string) error {
	const q = `UPDATE checkout_sessions SET state = ?, session_id = ?
		WHERE id = ? AND state = ?`
	res, err := r.db.ExecContext(ctx, q, model.StateRedirected, sessionID, id, model.StateCreatingSession)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveFailure marks the checkout FAILED with a human readable message and
// the number of redeemed points a failed compensation could not restore
// (zero in the common case).
func (r *CheckoutRepo) SaveFailure(ctx context.Context, id, message string, unrefunded int64) error {
	const q = `UPDATE checkout_sessions SET state = ?, failure_message = ?, unrefunded_points = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, model.StateFailed, message, unrefunded, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveOutcome records the reconciled terminal outcome (SUCCEEDED or
// CANCELED).  Legal from RECONCILING and from the outcome state itself so
// that a reloaded return URL is an idempotent no-op.
func (r *CheckoutRepo) SaveOutcome(ctx context.Context, id, outcome string) error {
	const q = `UPDATE checkout_sessions SET state = ?
		WHERE id = ? AND state IN (?, ?)`
	res, err := r.db.ExecContext(ctx, q, outcome, id, model.StateReconciling, outcome)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow converts a zero-row update into ErrConflict.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// placeholders renders n comma separated ? marks for an IN clause.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
