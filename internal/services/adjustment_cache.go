package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/go-redis/redis/v8"
)

// AdjustmentCache remembers the outcome of keyed admin adjustments so that a
// client replaying a request is answered without opening a store transaction.
// The ledger's own idempotency key check stays authoritative.
type AdjustmentCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewAdjustmentCache(redisClient *redis.Client, ttl time.Duration) *AdjustmentCache {
	return &AdjustmentCache{
		redis: redisClient,
		ttl:   ttl,
	}
}

// cachedAdjustment keeps the request fields a replay must match
type cachedAdjustment struct {
	Amount int64            `json:"amount"`
	Type   models.EntryType `json:"type"`
	Result AdjustResult     `json:"result"`
}

func adjustmentKey(userID, idempotencyKey string) string {
	return fmt.Sprintf("adjust:%s:%s", userID, idempotencyKey)
}

// Get returns the cached result for a keyed request. Redis failures and
// entries recorded for a different amount or type count as a miss, leaving
// the decision to the ledger.
func (c *AdjustmentCache) Get(ctx context.Context, req AdjustRequest) (*AdjustResult, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, adjustmentKey(req.UserID, req.IdempotencyKey)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[LEDGER] adjustment cache read failed: %v", err)
		return nil, false
	}

	var cached cachedAdjustment
	if err := json.Unmarshal(data, &cached); err != nil {
		log.Printf("[LEDGER] adjustment cache entry corrupt: %v", err)
		return nil, false
	}
	if cached.Amount != req.Amount || cached.Type != req.Type {
		return nil, false
	}

	result := cached.Result
	result.Replayed = true
	return &result, true
}

func (c *AdjustmentCache) Put(ctx context.Context, req AdjustRequest, result *AdjustResult) {
	if c == nil || c.redis == nil {
		return
	}

	data, err := json.Marshal(cachedAdjustment{Amount: req.Amount, Type: req.Type, Result: *result})
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, adjustmentKey(req.UserID, req.IdempotencyKey), data, c.ttl).Err(); err != nil {
		log.Printf("[LEDGER] adjustment cache write failed: %v", err)
	}
}
