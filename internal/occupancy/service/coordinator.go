package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/clock"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/internal/lifecycle"
	meterdomain "github.com/smallbiznis/contractdesk/internal/meter/domain"
	obslogger "github.com/smallbiznis/contractdesk/internal/observability/logger"
	"github.com/smallbiznis/contractdesk/internal/observability/metrics"
	"github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"github.com/smallbiznis/contractdesk/internal/occupancy/overlap"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Meters    meterdomain.Repository
	Validator *overlap.Validator
	Metrics   *metrics.Metrics `optional:"true"`
}

// Coordinator is the only writer of meter occupants and meter history. All
// methods run inside the caller's transaction.
type Coordinator struct {
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	meters    meterdomain.Repository
	validator *overlap.Validator
	metrics   *metrics.Metrics
}

func NewCoordinator(p Params) *Coordinator {
	return &Coordinator{
		log:       p.Log.Named("occupancy.coordinator"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		meters:    p.Meters,
		validator: p.Validator,
		metrics:   p.Metrics,
	}
}

type CloseAssignmentRequest struct {
	MeterID    snowflake.ID
	BeraterID  snowflake.ID
	CustomerID snowflake.ID
	// ContractID limits the close to the entry opened for that contract.
	// Zero closes whatever entry is open on the meter.
	ContractID snowflake.ID
	EndDate    *time.Time
}

// ApplyStatusEffect applies the meter side effect of moving a contract from
// previous to next. previous is empty on create.
func (c *Coordinator) ApplyStatusEffect(ctx context.Context, tx *gorm.DB, a domain.Assignment, previous, next lifecycle.Status) error {
	if previous == next {
		return nil
	}

	switch {
	case next.HoldsMeter():
		contractID := a.ContractID
		_, err := c.OpenAssignment(ctx, tx, domain.OpenAssignmentRequest{
			MeterID:    a.MeterID,
			BeraterID:  a.BeraterID,
			CustomerID: a.CustomerID,
			ContractID: &contractID,
			StartDate:  a.StartDate,
		})
		return err
	case previous.HoldsMeter():
		endDate := a.EndDate
		if next == lifecycle.Draft {
			endDate = nil
		}
		return c.CloseAssignment(ctx, tx, CloseAssignmentRequest{
			MeterID:    a.MeterID,
			BeraterID:  a.BeraterID,
			CustomerID: a.CustomerID,
			ContractID: a.ContractID,
			EndDate:    endDate,
		})
	default:
		return nil
	}
}

// OpenAssignment marks the meter as occupied by the customer and appends an
// open history entry starting at req.StartDate.
func (c *Coordinator) OpenAssignment(ctx context.Context, tx *gorm.DB, req domain.OpenAssignmentRequest) (*domain.MeterHistory, error) {
	meter, err := c.lockMeter(ctx, tx, req.BeraterID, req.MeterID)
	if err != nil {
		return nil, err
	}

	if meter.CurrentCustomerID != nil && *meter.CurrentCustomerID != req.CustomerID {
		c.metrics.RecordMeterConflict(ctx, "occupied")
		return nil, ierr.WithError(domain.ErrMeterOccupied).
			WithHintf("meter %s is occupied by another customer", meter.MeterNumber).
			Mark(ierr.ErrConflict)
	}

	start := clock.Date(req.StartDate)
	if req.ContractID != nil {
		start, err = c.resumeDate(ctx, tx, meter.ID, *req.ContractID, start)
		if err != nil {
			return nil, err
		}
	}

	conflict, err := c.validator.CheckOverlap(ctx, tx, meter.ID, domain.Interval{Start: start}, 0)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		c.metrics.RecordMeterConflict(ctx, string(conflict.Reason))
		return nil, conflict.Err()
	}

	now := c.clock.Now().UTC()
	entry := &domain.MeterHistory{
		ID:         c.genID.Generate(),
		MeterID:    meter.ID,
		BeraterID:  req.BeraterID,
		CustomerID: req.CustomerID,
		ContractID: req.ContractID,
		StartDate:  start,
		CreatedAt:  now,
	}
	if err := c.repo.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}

	customerID := req.CustomerID
	if err := c.meters.SetOccupant(ctx, tx, meter.ID, &customerID, now); err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, c.log).Debug("meter assignment opened",
		zap.String("meter_id", meter.ID.String()),
		zap.String("customer_id", req.CustomerID.String()),
		zap.Time("start_date", start),
	)
	return entry, nil
}

// CloseAssignment ends the open history entry at EndDate (today when nil)
// and frees the meter when it is held by the entry's customer.
func (c *Coordinator) CloseAssignment(ctx context.Context, tx *gorm.DB, req CloseAssignmentRequest) error {
	meter, err := c.lockMeter(ctx, tx, req.BeraterID, req.MeterID)
	if err != nil {
		return err
	}

	var entry *domain.MeterHistory
	if req.ContractID != 0 {
		entry, err = c.repo.FindOpenByContract(ctx, tx, req.ContractID)
	} else {
		entry, err = c.repo.FindOpenByMeter(ctx, tx, meter.ID)
	}
	if err != nil {
		return err
	}

	customerID := req.CustomerID
	if entry != nil {
		if customerID == 0 {
			customerID = entry.CustomerID
		}
		if _, err := c.repo.Close(ctx, tx, entry.ID, c.closeDate(entry.StartDate, req.EndDate)); err != nil {
			return err
		}
	}

	if customerID != 0 && meter.OccupiedBy(customerID) {
		if err := c.meters.SetOccupant(ctx, tx, meter.ID, nil, c.clock.Now().UTC()); err != nil {
			return err
		}
	}

	if entry == nil {
		obslogger.WithContext(ctx, c.log).Warn("no open history entry to close",
			zap.String("meter_id", meter.ID.String()),
			zap.String("contract_id", req.ContractID.String()),
		)
	}
	return nil
}

// ReleaseAssignment closes an occupancy opened without a contract. Entries
// owned by a contract only close through the contract's status.
func (c *Coordinator) ReleaseAssignment(ctx context.Context, tx *gorm.DB, beraterID, meterID snowflake.ID, endDate *time.Time) error {
	if _, err := c.lockMeter(ctx, tx, beraterID, meterID); err != nil {
		return err
	}
	entry, err := c.repo.FindOpenByMeter(ctx, tx, meterID)
	if err != nil {
		return err
	}
	if entry == nil {
		return domain.ErrNoOpenEntry
	}
	if entry.ContractID != nil {
		return ierr.WithError(domain.ErrBoundToContract).
			WithHintf("end contract %s to release the meter", entry.ContractID.String()).
			Mark(ierr.ErrInvalidOperation)
	}
	return c.CloseAssignment(ctx, tx, CloseAssignmentRequest{
		MeterID:    meterID,
		BeraterID:  beraterID,
		CustomerID: entry.CustomerID,
		EndDate:    endDate,
	})
}

// ReleaseForDraft undoes any tentative occupancy of a draft being deleted.
// The meter is only freed when no active contract still holds it.
func (c *Coordinator) ReleaseForDraft(ctx context.Context, tx *gorm.DB, a domain.Assignment, activeOnMeter bool) error {
	meter, err := c.lockMeter(ctx, tx, a.BeraterID, a.MeterID)
	if err != nil {
		return err
	}

	entry, err := c.repo.FindOpenByContract(ctx, tx, a.ContractID)
	if err != nil {
		return err
	}
	if entry != nil {
		if _, err := c.repo.Close(ctx, tx, entry.ID, c.closeDate(entry.StartDate, nil)); err != nil {
			return err
		}
	}

	if !activeOnMeter && meter.OccupiedBy(a.CustomerID) {
		return c.meters.SetOccupant(ctx, tx, meter.ID, nil, c.clock.Now().UTC())
	}
	return nil
}

// ListHistory returns the meter's occupancy intervals by start date.
func (c *Coordinator) ListHistory(ctx context.Context, db *gorm.DB, meterID snowflake.ID) ([]domain.MeterHistory, error) {
	return c.repo.ListByMeter(ctx, db, meterID)
}

// resumeDate moves a reactivated contract's start past the end of its own
// earlier occupancy so the meter history never overlaps itself.
func (c *Coordinator) resumeDate(ctx context.Context, tx *gorm.DB, meterID, contractID snowflake.ID, start time.Time) (time.Time, error) {
	entries, err := c.repo.ListByMeter(ctx, tx, meterID)
	if err != nil {
		return start, err
	}
	for _, entry := range entries {
		if !entry.BelongsTo(contractID) || entry.EndDate == nil {
			continue
		}
		if end := clock.Date(*entry.EndDate); end.After(start) {
			start = end
		}
	}
	return start, nil
}

func (c *Coordinator) lockMeter(ctx context.Context, tx *gorm.DB, beraterID, meterID snowflake.ID) (*meterdomain.Meter, error) {
	meter, err := c.meters.FindByIDForUpdate(ctx, tx, beraterID, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrNotFound
	}
	return meter, nil
}

// closeDate never lets an entry end before it started.
func (c *Coordinator) closeDate(start time.Time, end *time.Time) time.Time {
	date := clock.Date(c.clock.Now())
	if end != nil {
		date = clock.Date(*end)
	}
	if date.Before(clock.Date(start)) {
		return clock.Date(start)
	}
	return date
}
