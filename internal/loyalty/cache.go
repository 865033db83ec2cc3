package loyalty

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedLedger wraps a Ledger with a Redis read cache for Balance.  The
// cache exists so that per-keystroke cap recomputation in the sizing phase
// does not hammer the ledger service.  Any Redeem or Refund attempt,
// successful or not, invalidates the cached balance: serving a stale value
// after a mutation attempt could permit an invalid cap on the next edit.
//
// A nil Redis client degrades to a pass-through, matching how the rest of
// the service treats an unavailable Redis.
type CachedLedger struct {
	inner Ledger
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedLedger wraps inner with a balance cache.  ttl bounds staleness
// between mutations; a non-positive ttl defaults to 30 seconds.
func NewCachedLedger(inner Ledger, rdb *redis.Client, ttl time.Duration) *CachedLedger {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedLedger{inner: inner, rdb: rdb, ttl: ttl}
}

func balanceKey(userID uint64) string {
	return fmt.Sprintf("loyalty:balance:%d", userID)
}

// Balance returns the cached balance when present, otherwise fetches from
// the ledger and caches the result.  Cache errors are logged and treated as
// misses so the ledger remains the source of truth.
func (c *CachedLedger) Balance(ctx context.Context, userID uint64) (int64, error) {
	if c.rdb != nil {
		if v, err := c.rdb.Get(ctx, balanceKey(userID)).Result(); err == nil {
			if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				return n, nil
			}
		} else if err != redis.Nil {
			log.Printf("loyalty cache: get failed: %v", err)
		}
	}
	bal, err := c.inner.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, balanceKey(userID), strconv.FormatInt(bal, 10), c.ttl).Err(); err != nil {
			log.Printf("loyalty cache: set failed: %v", err)
		}
	}
	return bal, nil
}

// Redeem forwards to the inner ledger and invalidates the cached balance
// regardless of the outcome.
func (c *CachedLedger) Redeem(ctx context.Context, userID uint64, points int64, description string) (RedeemResult, error) {
	res, err := c.inner.Redeem(ctx, userID, points, description)
	c.invalidate(ctx, userID)
	return res, err
}

// Refund forwards to the inner ledger and invalidates the cached balance
// regardless of the outcome.
func (c *CachedLedger) Refund(ctx context.Context, userID uint64, points int64, description string) error {
	err := c.inner.Refund(ctx, userID, points, description)
	c.invalidate(ctx, userID)
	return err
}

func (c *CachedLedger) invalidate(ctx context.Context, userID uint64) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, balanceKey(userID)).Err(); err != nil {
		log.Printf("loyalty cache: invalidate failed: %v", err)
	}
}
