package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/contractdesk/internal/clock"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/internal/lifecycle"
	meterdomain "github.com/smallbiznis/contractdesk/internal/meter/domain"
	meterrepository "github.com/smallbiznis/contractdesk/internal/meter/repository"
	"github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"github.com/smallbiznis/contractdesk/internal/occupancy/overlap"
	"github.com/smallbiznis/contractdesk/internal/occupancy/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const beraterID = snowflake.ID(1)

type fixture struct {
	db    *gorm.DB
	coord *Coordinator
	clock *clock.FakeClock
	meter meterdomain.Meter
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&meterdomain.Meter{}, &domain.MeterHistory{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	repo := repository.Provide()
	coord := NewCoordinator(Params{
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fc,
		Repo:      repo,
		Meters:    meterrepository.Provide(),
		Validator: overlap.NewValidator(repo),
	})

	meter := meterdomain.Meter{
		ID:          node.Generate(),
		BeraterID:   beraterID,
		MeterNumber: "DE0001",
		MeterType:   meterdomain.MeterTypeElectricity,
		CreatedAt:   fc.Now(),
		UpdatedAt:   fc.Now(),
	}
	require.NoError(t, db.Create(&meter).Error)

	return fixture{db: db, coord: coord, clock: fc, meter: meter}
}

func (f fixture) reloadMeter(t *testing.T) meterdomain.Meter {
	t.Helper()
	var m meterdomain.Meter
	require.NoError(t, f.db.First(&m, "id = ?", f.meter.ID).Error)
	return m
}

func (f fixture) history(t *testing.T) []domain.MeterHistory {
	t.Helper()
	entries, err := f.coord.ListHistory(context.Background(), f.db, f.meter.ID)
	require.NoError(t, err)
	return entries
}

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func TestOpenAssignmentOccupiesMeter(t *testing.T) {
	f := newFixture(t)
	contractID := snowflake.ID(500)

	entry, err := f.coord.OpenAssignment(context.Background(), f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 77, ContractID: &contractID,
		StartDate: date("2025-01-01").Add(13 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, date("2025-01-01"), entry.StartDate)
	assert.True(t, entry.Open())

	m := f.reloadMeter(t)
	require.NotNil(t, m.CurrentCustomerID)
	assert.Equal(t, snowflake.ID(77), *m.CurrentCustomerID)
	assert.Len(t, f.history(t), 1)
}

func TestOpenAssignmentRejectsOtherOccupant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 77, StartDate: date("2025-01-01"),
	})
	require.NoError(t, err)

	_, err = f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 88, StartDate: date("2026-01-01"),
	})
	assert.ErrorIs(t, err, domain.ErrMeterOccupied)
	assert.True(t, ierr.IsConflict(err))
	assert.Len(t, f.history(t), 1)
}

func TestOpenAssignmentRejectsOverlapWithBlockingDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&domain.MeterHistory{
		ID: 900, MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 77,
		StartDate: date("2025-01-01"), EndDate: datePtr("2025-06-01"), CreatedAt: f.clock.Now(),
	}).Error)

	_, err := f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 88, StartDate: date("2025-05-01"),
	})
	require.Error(t, err)
	assert.True(t, ierr.IsConflict(err))
	conflict, ok := domain.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, date("2025-06-01"), *conflict.BlockingDate)

	_, err = f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 88, StartDate: date("2025-06-01"),
	})
	require.NoError(t, err)
}

func TestOpenAssignmentUnknownMeter(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.OpenAssignment(context.Background(), f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: 999, CustomerID: 1, StartDate: date("2025-01-01"),
	})
	assert.ErrorIs(t, err, meterdomain.ErrNotFound)
}

func TestApplyStatusEffectEndedClosesAtContractEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := domain.Assignment{
		ContractID: 500, BeraterID: beraterID, MeterID: f.meter.ID, CustomerID: 77,
		StartDate: date("2025-01-01"), EndDate: datePtr("2026-01-01"),
	}

	require.NoError(t, f.coord.ApplyStatusEffect(ctx, f.db, a, "", lifecycle.Active))

	a.EndDate = datePtr("2025-06-01")
	require.NoError(t, f.coord.ApplyStatusEffect(ctx, f.db, a, lifecycle.Active, lifecycle.Ended))

	assert.Nil(t, f.reloadMeter(t).CurrentCustomerID)
	entries := f.history(t)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].EndDate)
	assert.Equal(t, date("2025-06-01"), entries[0].EndDate.UTC())

	// ended -> archived has no further effect
	require.NoError(t, f.coord.ApplyStatusEffect(ctx, f.db, a, lifecycle.Ended, lifecycle.Archived))
	assert.Len(t, f.history(t), 1)
}

func TestApplyStatusEffectDraftIsNoop(t *testing.T) {
	f := newFixture(t)
	a := domain.Assignment{ContractID: 500, BeraterID: beraterID, MeterID: f.meter.ID, CustomerID: 77, StartDate: date("2025-01-01")}

	require.NoError(t, f.coord.ApplyStatusEffect(context.Background(), f.db, a, "", lifecycle.Draft))
	assert.Nil(t, f.reloadMeter(t).CurrentCustomerID)
	assert.Empty(t, f.history(t))
}

func TestReactivationResumesAfterOwnHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := domain.Assignment{
		ContractID: 500, BeraterID: beraterID, MeterID: f.meter.ID, CustomerID: 77,
		StartDate: date("2025-01-01"), EndDate: datePtr("2025-06-01"),
	}

	require.NoError(t, f.coord.ApplyStatusEffect(ctx, f.db, a, "", lifecycle.Active))
	require.NoError(t, f.coord.ApplyStatusEffect(ctx, f.db, a, lifecycle.Active, lifecycle.Ended))
	require.NoError(t, f.coord.ApplyStatusEffect(ctx, f.db, a, lifecycle.Ended, lifecycle.Active))

	entries := f.history(t)
	require.Len(t, entries, 2)
	assert.Equal(t, date("2025-06-01"), entries[1].StartDate.UTC())
	assert.True(t, entries[1].Open())
	require.NotNil(t, f.reloadMeter(t).CurrentCustomerID)
}

func TestReleaseForDraftFreesMeter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := snowflake.ID(600)

	_, err := f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 77, ContractID: &contractID, StartDate: date("2025-01-01"),
	})
	require.NoError(t, err)

	a := domain.Assignment{ContractID: contractID, BeraterID: beraterID, MeterID: f.meter.ID, CustomerID: 77, StartDate: date("2025-01-01")}
	require.NoError(t, f.coord.ReleaseForDraft(ctx, f.db, a, false))

	assert.Nil(t, f.reloadMeter(t).CurrentCustomerID)
	entries := f.history(t)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].EndDate)
	assert.Equal(t, date("2025-03-15"), entries[0].EndDate.UTC())
}

func TestReleaseForDraftKeepsActiveOccupant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 77, StartDate: date("2025-01-01"),
	})
	require.NoError(t, err)

	a := domain.Assignment{ContractID: 601, BeraterID: beraterID, MeterID: f.meter.ID, CustomerID: 77}
	require.NoError(t, f.coord.ReleaseForDraft(ctx, f.db, a, true))
	assert.NotNil(t, f.reloadMeter(t).CurrentCustomerID)
}

func TestReleaseAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.coord.ReleaseAssignment(ctx, f.db, beraterID, f.meter.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNoOpenEntry)

	contractID := snowflake.ID(700)
	_, err = f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 77, ContractID: &contractID, StartDate: date("2025-01-01"),
	})
	require.NoError(t, err)

	err = f.coord.ReleaseAssignment(ctx, f.db, beraterID, f.meter.ID, nil)
	assert.ErrorIs(t, err, domain.ErrBoundToContract)
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestCloseAssignmentNeverEndsBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.OpenAssignment(ctx, f.db, domain.OpenAssignmentRequest{
		MeterID: f.meter.ID, BeraterID: beraterID, CustomerID: 77, StartDate: date("2025-09-01"),
	})
	require.NoError(t, err)

	require.NoError(t, f.coord.CloseAssignment(ctx, f.db, CloseAssignmentRequest{MeterID: f.meter.ID, BeraterID: beraterID}))

	entries := f.history(t)
	require.Len(t, entries, 1)
	assert.Equal(t, date("2025-09-01"), entries[0].EndDate.UTC())
	assert.Nil(t, f.reloadMeter(t).CurrentCustomerID)
}
