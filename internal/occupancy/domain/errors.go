package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
)

type ConflictReason string

const (
	// ReasonOverlap: the candidate interval intersects a recorded one.
	ReasonOverlap ConflictReason = "overlap"
	// ReasonStartBeforePriorEnd: the start precedes the end of the meter's
	// most recently closed contract.
	ReasonStartBeforePriorEnd ConflictReason = "start_before_prior_end"
)

// Conflict names what blocks an assignment. BlockingDate is the first date on
// which the candidate may start, when one exists.
type Conflict struct {
	Reason       ConflictReason
	HistoryID    snowflake.ID
	CustomerID   snowflake.ID
	Start        time.Time
	End          *time.Time
	BlockingDate *time.Time
}

// OccupancyConflict is the error form of Conflict.
type OccupancyConflict struct {
	Conflict Conflict
}

func (e *OccupancyConflict) Error() string {
	switch {
	case e.Conflict.Reason == ReasonStartBeforePriorEnd && e.Conflict.BlockingDate != nil:
		return fmt.Sprintf("start date precedes prior occupancy end %s", formatDate(*e.Conflict.BlockingDate))
	case e.Conflict.End != nil:
		return fmt.Sprintf("occupancy overlaps interval %s..%s", formatDate(e.Conflict.Start), formatDate(*e.Conflict.End))
	default:
		return fmt.Sprintf("occupancy overlaps open interval from %s", formatDate(e.Conflict.Start))
	}
}

// Err converts the conflict into a conflict-category error carrying the
// blocking date as a hint.
func (c Conflict) Err() error {
	b := ierr.WithError(&OccupancyConflict{Conflict: c})
	if c.BlockingDate != nil {
		b = b.WithHintf("the meter is free from %s", formatDate(*c.BlockingDate))
	} else {
		b = b.WithHint("the meter is occupied for the requested period")
	}
	return b.Mark(ierr.ErrConflict)
}

// AsConflict extracts the conflict carried by err.
func AsConflict(err error) (Conflict, bool) {
	var target *OccupancyConflict
	if ierr.As(err, &target) && target != nil {
		return target.Conflict, true
	}
	return Conflict{}, false
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

var (
	ErrMeterOccupied   = ierr.Sentinel("meter_occupied", ierr.ErrConflict)
	ErrInvalidInterval = ierr.Sentinel("invalid_interval", ierr.ErrValidation)
	ErrNoOpenEntry     = ierr.Sentinel("no_open_history_entry", ierr.ErrInvalidOperation)
	ErrBoundToContract = ierr.Sentinel("occupancy_bound_to_contract", ierr.ErrInvalidOperation)
)
