// Package overlap decides whether occupancy intervals of a meter collide.
package overlap

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"gorm.io/gorm"
)

// Overlaps reports whether two closed date ranges intersect. A nil end is
// unbounded. Ranges that only touch, where one ends on the day the other
// starts, do not overlap.
func Overlaps(a, b domain.Interval) bool {
	aStart, bStart := clock.Date(a.Start), clock.Date(b.Start)
	if a.End != nil && !clock.Date(*a.End).After(bStart) {
		return false
	}
	if b.End != nil && !clock.Date(*b.End).After(aStart) {
		return false
	}
	return true
}

// CheckStart enforces that a new occupancy does not begin before minStart,
// the end date of the meter's most recently closed contract.
func CheckStart(start time.Time, minStart *time.Time) *domain.Conflict {
	if minStart == nil {
		return nil
	}
	blocking := clock.Date(*minStart)
	if !clock.Date(start).Before(blocking) {
		return nil
	}
	return &domain.Conflict{
		Reason:       domain.ReasonStartBeforePriorEnd,
		Start:        clock.Date(start),
		BlockingDate: &blocking,
	}
}

type Validator struct {
	repo domain.Repository
}

func NewValidator(repo domain.Repository) *Validator {
	return &Validator{repo: repo}
}

// CheckOverlap returns the first recorded interval of meterID that collides
// with candidate. Entries opened for excludeContractID are ignored so a
// contract never conflicts with its own history.
func (v *Validator) CheckOverlap(ctx context.Context, tx *gorm.DB, meterID snowflake.ID, candidate domain.Interval, excludeContractID snowflake.ID) (*domain.Conflict, error) {
	if candidate.End != nil && clock.Date(*candidate.End).Before(clock.Date(candidate.Start)) {
		return nil, domain.ErrInvalidInterval
	}

	entries, err := v.repo.ListByMeter(ctx, tx, meterID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.BelongsTo(excludeContractID) {
			continue
		}
		if !Overlaps(candidate, entry.Interval()) {
			continue
		}
		conflict := &domain.Conflict{
			Reason:     domain.ReasonOverlap,
			HistoryID:  entry.ID,
			CustomerID: entry.CustomerID,
			Start:      entry.StartDate,
			End:        entry.EndDate,
		}
		if entry.EndDate != nil {
			blocking := clock.Date(*entry.EndDate)
			conflict.BlockingDate = &blocking
		}
		return conflict, nil
	}
	return nil, nil
}
