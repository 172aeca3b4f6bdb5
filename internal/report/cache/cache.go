// Package cache fronts summary aggregation with a short-TTL Redis cache so
// dashboard polling does not re-list every owned timer on each refresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"timekeep/internal/report"
	id "timekeep/pkg/domain"
)

const summaryKeyPrefix = "timekeep:summary:"

// SummaryCache caches per-owner summaries. A nil client disables caching;
// every lookup is then a miss, which keeps wiring optional in dev setups.
// Cache failures degrade to recomputation, never to an error: the summary is
// derivable from the store at any time.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached summary for an owner, if present and fresh.
func (c *SummaryCache) Get(ctx context.Context, ownerID id.OwnerID) (report.Summary, bool) {
	if c.client == nil {
		return report.Summary{}, false
	}
	raw, err := c.client.Get(ctx, summaryKeyPrefix+ownerID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return report.Summary{}, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "summary cache read failed", "owner_id", ownerID, "error", err)
		return report.Summary{}, false
	}
	var summary report.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.logger.WarnContext(ctx, "summary cache entry corrupt", "owner_id", ownerID, "error", err)
		return report.Summary{}, false
	}
	return summary, true
}

// Set stores an owner's summary with the configured TTL.
func (c *SummaryCache) Set(ctx context.Context, ownerID id.OwnerID, summary report.Summary) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		c.logger.WarnContext(ctx, "summary cache encode failed", "owner_id", ownerID, "error", err)
		return
	}
	if err := c.client.Set(ctx, summaryKeyPrefix+ownerID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "summary cache write failed", "owner_id", ownerID, "error", err)
	}
}

// Invalidate drops an owner's cached summary. Transitions call this so a
// freshly-mutated timer is visible on the next dashboard poll instead of
// after TTL expiry.
func (c *SummaryCache) Invalidate(ctx context.Context, ownerID id.OwnerID) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, summaryKeyPrefix+ownerID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "summary cache invalidate failed", "owner_id", ownerID, "error", err)
	}
}
