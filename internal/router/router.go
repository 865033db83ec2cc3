package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/evently/checkout-service/internal/config"
	"github.com/evently/checkout-service/internal/handler"
	"github.com/evently/checkout-service/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the public tier listing the
// checkout page renders before login.
func RegisterRoutes(e *echo.Echo, tiers *handler.TierHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/events/:id/tiers", tiers.ListByEvent)
}

// RegisterCheckout registers the authenticated checkout and loyalty routes.
// All of them sit behind JWT validation and the CUSTOMER role; the submit
// route additionally carries the Redis token-bucket limiter because it is
// the one operation that reaches the ledger and the payment gateway.
func RegisterCheckout(e *echo.Echo, ck *handler.CheckoutHandler, loy *handler.LoyaltyHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("CUSTOMER"))

	auth.GET("/loyalty/balance", loy.GetBalance)

	auth.POST("/checkouts", ck.Begin)
	auth.GET("/checkouts/:id", ck.Get)
	auth.PATCH("/checkouts/:id", ck.Update)
	auth.POST("/checkouts/:id/submit", ck.Submit, middleware.NewTokenBucket(rlCfg, rdb))
	// The gateway redirects the browser back here with
	// success=true&session_id=... or canceled=true.
	auth.GET("/checkouts/:id/return", ck.Return)
}
