package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evently/checkout-service/internal/loyalty"
)

// LoyaltyHandler exposes the holder's point balance to the checkout page.
// The balance is read through the (cached) ledger client; this service
// never mutates it outside the submit saga.
type LoyaltyHandler struct {
	Ledger loyalty.Ledger
}

// NewLoyaltyHandler constructs a LoyaltyHandler.
func NewLoyaltyHandler(ledger loyalty.Ledger) *LoyaltyHandler {
	if ledger == nil {
		panic("nil ledger passed to NewLoyaltyHandler")
	}
	return &LoyaltyHandler{Ledger: ledger}
}

// GetBalance handles GET /v1/loyalty/balance for the authenticated user.
func (h *LoyaltyHandler) GetBalance(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bal, err := h.Ledger.Balance(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to fetch balance"})
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}
