package cache

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"timekeep/internal/report"
	id "timekeep/pkg/domain"
)

// A nil client disables caching entirely: every lookup is a miss and writes
// are no-ops, so dev setups without Redis just recompute.
func TestNilClientDisablesCaching(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	c := New(nil, time.Minute, logger)
	ctx := context.Background()
	owner := id.OwnerID(uuid.New())

	_, hit := c.Get(ctx, owner)
	assert.False(t, hit)

	c.Set(ctx, owner, report.Summary{Count: 3, TotalSeconds: 42})
	_, hit = c.Get(ctx, owner)
	assert.False(t, hit, "a nil-client cache must never report a hit")

	c.Invalidate(ctx, owner)
}
