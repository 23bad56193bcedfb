package idempotency

import (
	"context"
	"time"

	idempotencyv1 "github.com/openspot/matching-core/internal/domain/idempotency/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
	"github.com/openspot/matching-core/pkg/redis"
)

const keyPrefix = "idem:"

// Gate is the Redis-backed duplicate submission guard. A claim is one atomic
// SetNX; the stored value carries no meaning, only the key's existence does.
type Gate struct {
	redisclient redis.Client
	ttl         time.Duration
	logger      logger.Interface
}

var _ idempotencyv1.Gate = (*Gate)(nil)

// NewGate creates a gate whose claims expire after ttl.
func NewGate(redisclient redis.Client, ttl time.Duration, log logger.Interface) *Gate {
	return &Gate{
		redisclient: redisclient,
		ttl:         ttl,
		logger:      log,
	}
}

// Claim reserves key for the TTL. The first caller gets true, later callers
// false. On a gate outage the claim state is unknown and the error makes the
// caller reject instead of risking a duplicate order.
func (g *Gate) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.redisclient.SetNX(ctx, keyPrefix+key, "1", g.ttl)
	if err != nil {
		g.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "idempotency_key",
			Value: key,
		})
		return false, errors.NewTracer("idempotency_claim_error").Wrap(err)
	}
	return ok, nil
}
