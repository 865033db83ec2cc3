package main // Entry point package

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/evently/checkout-service/internal/checkout"
	"github.com/evently/checkout-service/internal/config"
	"github.com/evently/checkout-service/internal/database"
	"github.com/evently/checkout-service/internal/handler"
	"github.com/evently/checkout-service/internal/loyalty"
	"github.com/evently/checkout-service/internal/payment"
	"github.com/evently/checkout-service/internal/queue"
	"github.com/evently/checkout-service/internal/repository"
	"github.com/evently/checkout-service/internal/router"
	queue_publisher "github.com/evently/checkout-service/internal/service"
)

func main() {
	// Load .env when present; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the balance cache, the submit busy lock and rate
	// limiting; a nil client disables all three.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; balance cache, busy lock and rate limiting disabled")
	}

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	ledger := loyalty.NewCachedLedger(loyalty.NewHTTPLedger(cfg.LedgerBaseURL, hc), rdb, cfg.BalanceTTL)
	gateway := payment.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, hc)

	tierRepo := repository.NewTierRepo(db)
	checkoutRepo := repository.NewCheckoutRepo(db)

	publisher := queue_publisher.NewPublisher(cfg.AMQPURL, queue.CheckoutCompletedQueue)
	defer publisher.Close()

	orch := checkout.New(checkoutRepo, tierRepo, ledger, gateway, rdb, publisher.PublishCheckoutCompleted)

	tierHandler := handler.NewTierHandler(tierRepo)
	loyaltyHandler := handler.NewLoyaltyHandler(ledger)
	checkoutHandler := handler.NewCheckoutHandler(orch)

	e := echo.New()
	router.RegisterRoutes(e, tierHandler)
	router.RegisterCheckout(e, checkoutHandler, loyaltyHandler, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	// Audit consumer for completed checkouts; runs its own reconnect loop.
	go func() {
		if err := queue.StartCheckoutConsumer(cfg.AMQPURL); err != nil {
			log.Printf("checkout consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
