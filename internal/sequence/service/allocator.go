package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/config"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/internal/observability/metrics"
	"github.com/smallbiznis/contractdesk/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errNumberTaken = errors.New("contract number already taken")

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Counter domain.Counter
	Rules   *config.ContractRulesHolder
	Metrics *metrics.Metrics `optional:"true"`
}

// Allocator hands out contract numbers that are unique per berater. Gaps are
// tolerated, duplicates are not.
type Allocator struct {
	log     *zap.Logger
	clock   clock.Clock
	counter domain.Counter
	rules   *config.ContractRulesHolder
	metrics *metrics.Metrics
}

func NewAllocator(p Params) *Allocator {
	return &Allocator{
		log:     p.Log.Named("sequence.allocator"),
		clock:   p.Clock,
		counter: p.Counter,
		rules:   p.Rules,
		metrics: p.Metrics,
	}
}

// ScopeFor builds the numbering scope of a berater from the current rules.
func (a *Allocator) ScopeFor(beraterID snowflake.ID, at time.Time) domain.Scope {
	rules := a.rules.Get()
	return domain.Scope{
		BeraterID: beraterID,
		Prefix:    rules.NumberPrefix,
		Year:      at.UTC().Year(),
		Legacy:    rules.NumberFormat == config.NumberFormatLegacy,
		Padding:   rules.SequencePadding,
	}
}

// NextNumber draws numbers from the counter until exists reports a free one.
// After MaxNumberAttempts collisions the last candidate is suffixed with the
// current unix millis; a taken fallback is retried once with a later millis.
func (a *Allocator) NextNumber(ctx context.Context, tx *gorm.DB, scope domain.Scope, exists domain.ExistsFunc) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}

	attempts := a.rules.Get().MaxNumberAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		number    string
		candidate string
		tries     int
	)
	op := func() error {
		tries++
		if tries > 1 {
			a.metrics.RecordNumberRetry(ctx)
		}

		seq, err := a.counter.Increment(ctx, tx, scope)
		if err != nil {
			return backoff.Permanent(err)
		}
		candidate = domain.Format(scope, seq)

		taken, err := exists(ctx, candidate)
		if err != nil {
			return backoff.Permanent(err)
		}
		if taken {
			a.log.Debug("contract number collision",
				zap.String("number", candidate),
				zap.Int("attempt", tries),
			)
			return errNumberTaken
		}
		number = candidate
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(attempts-1)),
		ctx,
	)
	err := backoff.Retry(op, policy)
	if err == nil {
		return number, nil
	}
	if !errors.Is(err, errNumberTaken) {
		return "", err
	}

	fallback, err := a.fallback(ctx, candidate, exists)
	if err != nil {
		return "", err
	}
	if fallback == "" {
		return "", ierr.WithError(domain.ErrSequenceExhausted).
			WithHintf("no free contract number after %d attempts", attempts).
			Mark(ierr.ErrSystem)
	}

	a.metrics.RecordNumberFallback(ctx)
	a.log.Warn("contract number fallback used",
		zap.String("scope", scope.Key()),
		zap.String("number", fallback),
		zap.Int("attempts", attempts),
	)
	return fallback, nil
}

// fallback returns "" only when both millis suffixes are taken.
func (a *Allocator) fallback(ctx context.Context, candidate string, exists domain.ExistsFunc) (string, error) {
	at := a.clock.Now()
	for i := 0; i < 2; i++ {
		number := domain.Fallback(candidate, at)
		taken, err := exists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
		a.log.Debug("contract number fallback collision", zap.String("number", number))
		next := a.clock.Now()
		if next.UnixMilli() <= at.UnixMilli() {
			next = at.Add(time.Millisecond)
		}
		at = next
	}
	return "", nil
}
