// Package checkout sequences a ticket selection through redemption, payment
// session creation and reconciliation.  It is the single canonical
// implementation of the flow; pages consume it over HTTP instead of
// re-typing the arithmetic and the saga per screen.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/evently/checkout-service/internal/loyalty"
	"github.com/evently/checkout-service/internal/model"
	"github.com/evently/checkout-service/internal/payment"
	"github.com/evently/checkout-service/internal/pricing"
	"github.com/evently/checkout-service/internal/queue"
)

// ErrBusy is returned when a submit arrives while another submit for the
// same checkout holds the busy lock.  Handlers should translate this into
// an HTTP 409 response.
var ErrBusy = errors.New("checkout is already being submitted")

// ErrOutOfStock is returned when a checkout is begun or edited against a
// tier with no remaining stock.
var ErrOutOfStock = errors.New("tier is sold out")

// ErrNotSubmittable is returned when Submit is called on a checkout that is
// not in a submittable state (already redirected, succeeded, or mid-saga).
var ErrNotSubmittable = errors.New("checkout cannot be submitted in its current state")

// ErrNeedsReview is returned when a checkout carries unrefunded points from
// a failed compensation.  It must not be retried automatically; support has
// to restore the balance first.
var ErrNeedsReview = errors.New("checkout requires manual reconciliation")

// ErrSessionMismatch is returned when the gateway redirects back with a
// session id that does not match the one this checkout created.
var ErrSessionMismatch = errors.New("returned session id does not match checkout")

// Store is the persistence the orchestrator needs.  *repository.CheckoutRepo
// satisfies it; tests use an in-memory fake.
type Store interface {
	Create(ctx context.Context, c *model.Checkout) error
	GetForUser(ctx context.Context, id string, userID uint64) (*model.Checkout, error)
	SaveSelection(ctx context.Context, c *model.Checkout) error
	CompareAndSetState(ctx context.Context, id, to string, from ...string) error
	SaveRedirect(ctx context.Context, id, sessionID string) error
	SaveFailure(ctx context.Context, id, message string, unrefunded int64) error
	SaveOutcome(ctx context.Context, id, outcome string) error
}

// TierSource provides tier lookups.  *repository.TierRepo satisfies it.
type TierSource interface {
	GetByID(ctx context.Context, id uint64) (*model.PriceTier, error)
}

// Publisher delivers a completed-checkout event to the broker.  Publishing
// is best effort; a broker outage never fails a paid checkout.
type Publisher func(ctx context.Context, ev queue.CheckoutCompletedEvent) error

// Orchestrator drives the checkout saga.  All collaborators are explicit
// dependencies so the flow is testable without a live ledger, gateway,
// database or broker.
type Orchestrator struct {
	store   Store
	tiers   TierSource
	ledger  loyalty.Ledger
	gateway payment.Gateway
	rdb     *redis.Client // busy lock; nil disables the guard
	publish Publisher     // nil disables event publishing
	lockTTL time.Duration
}

// New constructs an Orchestrator.  store, tiers, ledger and gateway must be
// non-nil; rdb and publish may be nil to degrade gracefully.
func New(store Store, tiers TierSource, ledger loyalty.Ledger, gateway payment.Gateway, rdb *redis.Client, publish Publisher) *Orchestrator {
	if store == nil || tiers == nil || ledger == nil || gateway == nil {
		panic("nil dependency passed to checkout.New")
	}
	return &Orchestrator{
		store:   store,
		tiers:   tiers,
		ledger:  ledger,
		gateway: gateway,
		rdb:     rdb,
		publish: publish,
		lockTTL: 30 * time.Second,
	}
}

// Begin creates a new checkout for the chosen tier.  Quantity starts at 1
// and redemption at 0; tier attributes are snapshotted onto the row so the
// quoted totals cannot drift mid-checkout.
func (o *Orchestrator) Begin(ctx context.Context, userID, eventID uint64, eventTitle string, tierID uint64) (*model.Checkout, error) {
	tier, err := o.tiers.GetByID(ctx, tierID)
	if err != nil {
		return nil, err
	}
	if tier.EventID != eventID {
		return nil, fmt.Errorf("tier %d does not belong to event %d", tierID, eventID)
	}
	if tier.RemainingStock < 1 {
		return nil, ErrOutOfStock
	}

	totals := pricing.Quote(tier.UnitPrice, 1, 0)
	c := &model.Checkout{
		ID:             uuid.NewString(),
		UserID:         userID,
		EventID:        eventID,
		EventTitle:     eventTitle,
		TierID:         tier.ID,
		TierLabel:      tier.Label,
		UnitPrice:      tier.UnitPrice,
		Quantity:       1,
		RedeemedPoints: 0,
		Subtotal:       totals.Subtotal,
		Discount:       totals.Discount,
		FinalTotal:     totals.FinalTotal,
		PointsToEarn:   totals.PointsToEarn,
		State:          model.StateSizing,
		IdempotencyKey: uuid.NewString(),
	}
	if err := o.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a checkout with ownership enforced.
func (o *Orchestrator) Get(ctx context.Context, id string, userID uint64) (*model.Checkout, error) {
	return o.store.GetForUser(ctx, id, userID)
}

// Update applies a quantity or redemption edit and recomputes the totals.
// Pure arithmetic plus one (cached) balance read; the ledger and the
// gateway are never called here.  A quantity change resets the redemption
// to 0 before recomputation, because a redemption valid for the old
// subtotal may exceed the cap for the new one.  Out-of-range values are
// clamped, never rejected.
func (o *Orchestrator) Update(ctx context.Context, id string, userID uint64, quantity, requestedRedemption int64) (*model.Checkout, error) {
	c, err := o.store.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if c.UnrefundedPoints > 0 {
		return nil, ErrNeedsReview
	}
	if c.State == model.StateSucceeded {
		return nil, ErrNotSubmittable
	}

	// Clamp quantity against the tier's current stock.  Stock may have
	// moved since Begin; the snapshot price stays fixed but the bound is
	// re-read so we never offer more tickets than remain.  A tier that sold
	// out entirely leaves no legal quantity at all.
	tier, err := o.tiers.GetByID(ctx, c.TierID)
	if err != nil {
		return nil, err
	}
	if tier.RemainingStock < 1 {
		return nil, ErrOutOfStock
	}
	if quantity < 1 {
		quantity = 1
	}
	if quantity > tier.RemainingStock {
		quantity = tier.RemainingStock
	}

	if quantity != c.Quantity {
		requestedRedemption = 0
	}

	subtotal := c.UnitPrice * quantity
	redeemed := int64(0)
	if requestedRedemption > 0 {
		balance, err := o.ledger.Balance(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("fetch balance: %w", err)
		}
		cap := pricing.RedemptionCap(subtotal, balance)
		redeemed = pricing.ClampRedemption(requestedRedemption, cap)
	}

	totals := pricing.Quote(c.UnitPrice, quantity, redeemed)
	c.Quantity = quantity
	c.RedeemedPoints = redeemed
	c.Subtotal = totals.Subtotal
	c.Discount = totals.Discount
	c.FinalTotal = totals.FinalTotal
	c.PointsToEarn = totals.PointsToEarn
	c.State = model.StateSizing
	c.FailureMessage = ""

	if err := o.store.SaveSelection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Submit runs the saga: optionally redeem points, then create the gateway
// session carrying the final total computed before the redeem call.  The
// two network steps run strictly in order, never concurrently.  If session
// creation fails after a successful redemption, the redeemed points are
// restored with a compensating refund; a failed refund is recorded on the
// row as unrefunded points and blocks further submits.
func (o *Orchestrator) Submit(ctx context.Context, id string, userID uint64) (payment.SessionResult, error) {
	c, err := o.store.GetForUser(ctx, id, userID)
	if err != nil {
		return payment.SessionResult{}, err
	}
	if c.UnrefundedPoints > 0 {
		return payment.SessionResult{}, ErrNeedsReview
	}
	switch c.State {
	case model.StateSizing, model.StateFailed:
		// submittable; FAILED is retryable because no points stayed deducted
	default:
		return payment.SessionResult{}, ErrNotSubmittable
	}

	unlock, err := o.acquireLock(ctx, c.ID)
	if err != nil {
		return payment.SessionResult{}, err
	}
	defer unlock()

	// Step 1: redeem.  On failure nothing was deducted; the checkout is
	// recoverable and the user may adjust and retry.
	if c.RedeemedPoints > 0 {
		if err := o.store.CompareAndSetState(ctx, c.ID, model.StateRedeeming, model.StateSizing, model.StateFailed); err != nil {
			return payment.SessionResult{}, err
		}
		desc := fmt.Sprintf("redeemed against %s (%s)", c.EventTitle, c.ID)
		res, err := o.ledger.Redeem(ctx, userID, c.RedeemedPoints, desc)
		if err != nil {
			msg := fmt.Sprintf("point redemption failed: %v", err)
			if serr := o.store.SaveFailure(ctx, c.ID, msg, 0); serr != nil {
				log.Printf("checkout %s: record redeem failure: %v", c.ID, serr)
			}
			return payment.SessionResult{}, fmt.Errorf("%s", msg)
		}
		if res.RedeemedPoints != c.RedeemedPoints {
			// The ledger moved a different amount than the totals were
			// computed from.  Charging finalTotal would no longer equal
			// subtotal minus the discount actually applied, so undo and
			// fail instead of charging a mismatched figure.
			return payment.SessionResult{}, o.compensate(ctx, c, res.RedeemedPoints,
				fmt.Sprintf("ledger redeemed %d points, expected %d", res.RedeemedPoints, c.RedeemedPoints))
		}
	}

	// Step 2: create the gateway session with the final total computed
	// before the redeem call.
	if err := o.store.CompareAndSetState(ctx, c.ID, model.StateCreatingSession,
		model.StateSizing, model.StateFailed, model.StateRedeeming); err != nil {
		return payment.SessionResult{}, err
	}
	session, err := o.gateway.CreateSession(ctx, payment.BuildSessionRequest(c), c.IdempotencyKey)
	if err != nil {
		if c.RedeemedPoints > 0 {
			return payment.SessionResult{}, o.compensate(ctx, c, c.RedeemedPoints,
				fmt.Sprintf("payment session creation failed: %v", err))
		}
		msg := fmt.Sprintf("payment session creation failed: %v", err)
		if serr := o.store.SaveFailure(ctx, c.ID, msg, 0); serr != nil {
			log.Printf("checkout %s: record session failure: %v", c.ID, serr)
		}
		return payment.SessionResult{}, fmt.Errorf("%s", msg)
	}

	if err := o.store.SaveRedirect(ctx, c.ID, session.SessionID); err != nil {
		return payment.SessionResult{}, err
	}
	return session, nil
}

// compensate refunds points deducted by a redeem whose checkout could not
// complete, then marks the checkout FAILED with the triggering message.
// When the refund itself fails the deducted amount is recorded on the row
// so nothing is silently lost.
func (o *Orchestrator) compensate(ctx context.Context, c *model.Checkout, points int64, cause string) error {
	desc := fmt.Sprintf("refund for failed checkout %s", c.ID)
	if err := o.ledger.Refund(ctx, c.UserID, points, desc); err != nil {
		log.Printf("checkout %s: compensating refund of %d points failed: %v", c.ID, points, err)
		msg := fmt.Sprintf("%s; refunding %d points also failed, contact support", cause, points)
		if serr := o.store.SaveFailure(ctx, c.ID, msg, points); serr != nil {
			log.Printf("checkout %s: record compensation failure: %v", c.ID, serr)
		}
		return fmt.Errorf("%s", msg)
	}
	msg := fmt.Sprintf("%s; your %d points were returned", cause, points)
	if serr := o.store.SaveFailure(ctx, c.ID, msg, 0); serr != nil {
		log.Printf("checkout %s: record failure after refund: %v", c.ID, serr)
	}
	return fmt.Errorf("%s", msg)
}

// Reconcile consumes the gateway's return redirect.  The query parameters
// are treated as idempotent triggers: reloading the success or cancel URL
// re-enters the same terminal state and returns the same payload without
// contacting the gateway again.
func (o *Orchestrator) Reconcile(ctx context.Context, id string, userID uint64, success bool, sessionID string) (*model.Checkout, error) {
	c, err := o.store.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !success {
		// Cancellation returns the selection to a resumable state; the
		// user may edit and submit again from sizing.
		if c.State == model.StateCanceled {
			return c, nil
		}
		if err := o.store.CompareAndSetState(ctx, c.ID, model.StateReconciling,
			model.StateRedirected, model.StateReconciling); err != nil {
			return nil, err
		}
		if err := o.store.SaveOutcome(ctx, c.ID, model.StateCanceled); err != nil {
			return nil, err
		}
		c.State = model.StateCanceled
		return c, nil
	}

	if c.State == model.StateSucceeded {
		return c, nil // reload of the success URL
	}
	// Mark reconciliation in progress before touching the outcome; a crash
	// here leaves the row in RECONCILING, which the CAS accepts on retry.
	if err := o.store.CompareAndSetState(ctx, c.ID, model.StateReconciling,
		model.StateRedirected, model.StateReconciling); err != nil {
		return nil, err
	}
	if sessionID == "" || sessionID != c.SessionID {
		msg := fmt.Sprintf("reconciliation defect: gateway returned session %q, checkout created %q", sessionID, c.SessionID)
		if serr := o.store.SaveFailure(ctx, c.ID, msg, 0); serr != nil {
			log.Printf("checkout %s: record reconcile failure: %v", c.ID, serr)
		}
		return nil, ErrSessionMismatch
	}
	if err := o.store.SaveOutcome(ctx, c.ID, model.StateSucceeded); err != nil {
		return nil, err
	}
	c.State = model.StateSucceeded

	if o.publish != nil {
		ev := queue.CheckoutCompletedEvent{
			CheckoutID:     c.ID,
			UserID:         c.UserID,
			EventID:        c.EventID,
			EventTitle:     c.EventTitle,
			TierID:         c.TierID,
			TierLabel:      c.TierLabel,
			Quantity:       c.Quantity,
			UnitPrice:      c.UnitPrice,
			Subtotal:       c.Subtotal,
			Discount:       c.Discount,
			FinalTotal:     c.FinalTotal,
			PointsRedeemed: c.RedeemedPoints,
			PointsToEarn:   c.PointsToEarn,
			SessionID:      c.SessionID,
			CompletedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := o.publish(ctx, ev); err != nil {
			log.Printf("checkout %s: publish completed event: %v", c.ID, err)
		}
	}
	return c, nil
}

// acquireLock takes the advisory busy lock for a submit.  With no Redis the
// guard is skipped entirely, mirroring how the rest of the service treats
// an unavailable Redis.
func (o *Orchestrator) acquireLock(ctx context.Context, id string) (func(), error) {
	if o.rdb == nil {
		return func() {}, nil
	}
	key := "checkout:submitting:" + id
	ok, err := o.rdb.SetNX(ctx, key, "1", o.lockTTL).Result()
	if err != nil {
		log.Printf("checkout %s: busy lock unavailable: %v", id, err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		if err := o.rdb.Del(context.Background(), key).Err(); err != nil {
			log.Printf("checkout %s: busy lock release: %v", id, err)
		}
	}, nil
}
