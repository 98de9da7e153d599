package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/contractdesk/internal/audit/domain"
	"github.com/smallbiznis/contractdesk/internal/audit/repository"
	"github.com/smallbiznis/contractdesk/internal/clock"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, db, fc
}

func TestAppendDropsUnchangedFields(t *testing.T) {
	svc, db, fc := newTestService(t)
	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-audit")

	entry, err := svc.Append(ctx, db, domain.AppendRequest{
		BeraterID:  1,
		TargetType: domain.TargetContract,
		TargetID:   100,
		ActorID:    7,
		Action:     domain.ActionUpdated,
		Changes: domain.Changes{
			"notes":           {Before: "a", After: "b"},
			"duration_months": {Before: 12, After: 12},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, fc.Now(), entry.CreatedAt)

	logs, err := svc.List(context.Background(), domain.ListRequest{
		BeraterID:  1,
		TargetType: domain.TargetContract,
		TargetID:   100,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	changes := logs[0].Changes.Data()
	assert.Contains(t, changes, "notes")
	assert.NotContains(t, changes, "duration_months")
	assert.Equal(t, "cid-audit", logs[0].Metadata["correlation_id"])
}

func TestAppendCreatedWithoutChanges(t *testing.T) {
	svc, db, _ := newTestService(t)

	_, err := svc.Append(context.Background(), db, domain.AppendRequest{
		BeraterID:  1,
		TargetType: domain.TargetCustomer,
		TargetID:   5,
		ActorID:    7,
		Action:     domain.ActionCreated,
	})
	require.NoError(t, err)

	logs, err := svc.List(context.Background(), domain.ListRequest{BeraterID: 1, TargetType: domain.TargetCustomer, TargetID: 5})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].Changes.Data())
}

func TestListKeepsAppendOrder(t *testing.T) {
	svc, db, fc := newTestService(t)
	ctx := context.Background()

	actions := []domain.Action{domain.ActionCreated, domain.ActionUpdated, domain.ActionStatusChanged}
	for _, action := range actions {
		_, err := svc.Append(ctx, db, domain.AppendRequest{
			BeraterID:  1,
			TargetType: domain.TargetContract,
			TargetID:   9,
			ActorID:    2,
			Action:     action,
			Changes:    domain.Changes{"status": {Before: "draft", After: "active"}},
		})
		require.NoError(t, err)
		fc.Advance(time.Minute)
	}

	logs, err := svc.List(ctx, domain.ListRequest{BeraterID: 1, TargetType: domain.TargetContract, TargetID: 9})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	for i, action := range actions {
		assert.Equal(t, action, logs[i].Action)
	}

	other, err := svc.List(ctx, domain.ListRequest{BeraterID: 2, TargetType: domain.TargetContract, TargetID: 9})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Append(ctx, tx, domain.AppendRequest{
			BeraterID:  1,
			TargetType: domain.TargetContract,
			TargetID:   3,
			ActorID:    2,
			Action:     domain.ActionDeleted,
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	logs, err := svc.List(ctx, domain.ListRequest{BeraterID: 1, TargetType: domain.TargetContract, TargetID: 3})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Append(ctx, db, domain.AppendRequest{BeraterID: 1, TargetType: domain.TargetContract, TargetID: 1, Action: "renamed"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
	assert.True(t, ierr.IsValidation(err))

	_, err = svc.Append(ctx, db, domain.AppendRequest{BeraterID: 1, TargetType: "meter", TargetID: 1, Action: domain.ActionCreated})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	_, err = svc.Append(ctx, db, domain.AppendRequest{TargetType: domain.TargetContract, TargetID: 1, Action: domain.ActionCreated})
	assert.ErrorIs(t, err, domain.ErrInvalidBerater)
}
