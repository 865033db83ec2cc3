package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/evently/checkout-service/internal/repository"
)

// TierHandler exposes read-only tier listings so the checkout page can
// render purchasable categories.  Tier maintenance itself belongs to the
// event service.
type TierHandler struct {
	TierRepo *repository.TierRepo
}

// NewTierHandler constructs a TierHandler.
func NewTierHandler(tierRepo *repository.TierRepo) *TierHandler {
	if tierRepo == nil {
		panic("nil repository passed to NewTierHandler")
	}
	return &TierHandler{TierRepo: tierRepo}
}

// ListByEvent handles GET /v1/events/:id/tiers.  It returns all tiers of
// the event ordered by price; events without tiers yield an empty array.
func (h *TierHandler) ListByEvent(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	tiers, err := h.TierRepo.ListByEvent(c.Request().Context(), eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tiers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tiers})
}
