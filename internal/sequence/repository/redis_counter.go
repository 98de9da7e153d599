package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/internal/sequence/domain"
	"gorm.io/gorm"
)

const redisKeyPrefix = "contractdesk:contract_counter:"

// redisCounter keeps counters outside the database. Values issued for a
// transaction that later rolls back are lost, which only leaves gaps.
type redisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) domain.Counter {
	return &redisCounter{client: client}
}

func (c *redisCounter) Increment(ctx context.Context, _ *gorm.DB, scope domain.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	value, err := c.client.Incr(ctx, redisKeyPrefix+scope.Key()).Result()
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("failed to increment contract counter %s", scope.Key()).
			Mark(ierr.ErrSystem)
	}
	return value, nil
}
