package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evently/checkout-service/internal/checkout"
	"github.com/evently/checkout-service/internal/model"
	"github.com/evently/checkout-service/internal/repository"
)

// CheckoutHandler exposes the checkout saga over HTTP.  All methods assume
// JWT authentication and role validation have already run; ownership of the
// checkout is enforced by the orchestrator and surfaces here as 403.
type CheckoutHandler struct {
	Orch *checkout.Orchestrator
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(orch *checkout.Orchestrator) *CheckoutHandler {
	if orch == nil {
		panic("nil orchestrator passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Orch: orch}
}

// Begin handles POST /v1/checkouts.  Choosing a tier creates the checkout
// with quantity 1 and no redemption; the response carries the initial
// totals for rendering.
func (h *CheckoutHandler) Begin(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		EventID    uint64 `json:"event_id"`
		EventTitle string `json:"event_title"`
		TierID     uint64 `json:"tier_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 || body.TierID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and tier_id are required"})
	}

	ck, err := h.Orch.Begin(c.Request().Context(), userID, body.EventID, body.EventTitle, body.TierID)
	if err != nil {
		return checkoutError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": ck})
}

// Get handles GET /v1/checkouts/:id.
func (h *CheckoutHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ck, err := h.Orch.Get(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return checkoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": ck})
}

// Update handles PATCH /v1/checkouts/:id.  Quantity and redemption edits
// recompute the totals; values outside their bounds are clamped, and a
// quantity change zeroes the redemption before recomputation.
func (h *CheckoutHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Quantity            int64 `json:"quantity"`
		RequestedRedemption int64 `json:"requested_redemption"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ck, err := h.Orch.Update(c.Request().Context(), c.Param("id"), userID, body.Quantity, body.RequestedRedemption)
	if err != nil {
		return checkoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": ck})
}

// Submit handles POST /v1/checkouts/:id/submit.  On success the response
// carries the gateway session and the hosted checkout URL the browser must
// navigate to.  Failure messages are returned as-is; the orchestrator never
// retries on its own.
func (h *CheckoutHandler) Submit(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sess, err := h.Orch.Submit(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return checkoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id": sess.SessionID,
		"url":        sess.URL,
	})
}

// Return handles GET /v1/checkouts/:id/return, the page the gateway
// redirects back to.  Query parameters success=true&session_id=... or
// canceled=true drive reconciliation; reloading the URL re-enters the same
// outcome idempotently.
func (h *CheckoutHandler) Return(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	success := c.QueryParam("success") == "true"
	canceled := c.QueryParam("canceled") == "true"
	if !success && !canceled {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing outcome parameter"})
	}

	ck, err := h.Orch.Reconcile(c.Request().Context(), c.Param("id"), userID, success, c.QueryParam("session_id"))
	if err != nil {
		return checkoutError(c, err)
	}
	if ck.State == model.StateCanceled {
		return c.JSON(http.StatusOK, echo.Map{
			"state":   ck.State,
			"message": "payment canceled, your selection is unchanged",
			"item":    ck,
		})
	}
	// Confirmation figures come from the locally held totals; point
	// crediting happens backend-side off the gateway webhook.
	return c.JSON(http.StatusOK, echo.Map{
		"state":          ck.State,
		"final_total":    ck.FinalTotal,
		"points_to_earn": ck.PointsToEarn,
		"item":           ck,
	})
}

// checkoutError maps orchestrator and repository errors onto HTTP statuses.
// Saga failure messages are passed through verbatim so the user sees what
// the ledger or gateway reported.
func checkoutError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrCheckoutNotFound), errors.Is(err, repository.ErrTierNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, checkout.ErrBusy),
		errors.Is(err, checkout.ErrNotSubmittable),
		errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, checkout.ErrOutOfStock):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, checkout.ErrNeedsReview):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, checkout.ErrSessionMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}
