package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/contractdesk/internal/audit/domain"
	auditrepository "github.com/smallbiznis/contractdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/contractdesk/internal/audit/service"
	"github.com/smallbiznis/contractdesk/internal/caller"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/customer/domain"
	"github.com/smallbiznis/contractdesk/internal/customer/repository"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	audit auditdomain.Service
	clock *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Customer{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fc, Repo: auditrepository.Provide(),
	})
	svc := New(Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fc,
		Repo: repository.Provide(), AuditSvc: auditSvc,
	})
	return fixture{svc: svc, audit: auditSvc, clock: fc}
}

var testCaller = caller.Caller{BeraterID: 10, ActorID: 20}

func TestCreateCustomerAppendsAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.CreateCustomerRequest{Name: " Erika Muster ", Email: "erika@example.com"}, testCaller)
	require.NoError(t, err)
	assert.Equal(t, "Erika Muster", created.Name)

	got, err := f.svc.GetByID(ctx, created.ID, testCaller)
	require.NoError(t, err)
	assert.Equal(t, created.Email, got.Email)

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{BeraterID: 10, TargetType: auditdomain.TargetCustomer, TargetID: created.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionCreated, logs[0].Action)
	assert.Contains(t, logs[0].Changes.Data(), "name")
}

func TestUpdateCustomerRecordsOnlyChangedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Max", Phone: "123"}, testCaller)
	require.NoError(t, err)

	phone := "123"
	address := "Hauptstr. 1"
	updated, err := f.svc.Update(ctx, created.ID, domain.UpdateCustomerRequest{Phone: &phone, Address: &address}, testCaller)
	require.NoError(t, err)
	assert.Equal(t, address, updated.Address)

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{BeraterID: 10, TargetType: auditdomain.TargetCustomer, TargetID: created.ID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	changes := logs[1].Changes.Data()
	assert.Len(t, changes, 1)
	assert.Contains(t, changes, "address")
}

func TestUpdateCustomerNoopWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Max"}, testCaller)
	require.NoError(t, err)

	name := "Max"
	_, err = f.svc.Update(ctx, created.ID, domain.UpdateCustomerRequest{Name: &name}, testCaller)
	require.NoError(t, err)

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{BeraterID: 10, TargetType: auditdomain.TargetCustomer, TargetID: created.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestCustomerIsScopedToBerater(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Max"}, testCaller)
	require.NoError(t, err)

	_, err = f.svc.GetByID(ctx, created.ID, caller.Caller{BeraterID: 99, ActorID: 20})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, ierr.IsNotFound(err))
}

func TestCreateCustomerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateCustomerRequest{Name: "  "}, testCaller)
	assert.True(t, ierr.IsValidation(err))

	_, err = f.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Max", Email: "not-an-email"}, testCaller)
	assert.True(t, ierr.IsValidation(err))

	_, err = f.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Max"}, caller.Caller{ActorID: 1})
	assert.ErrorIs(t, err, caller.ErrMissingBerater)
}

func TestListCustomersPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"Anna", "Bernd", "Clara"} {
		_, err := f.svc.Create(ctx, domain.CreateCustomerRequest{Name: name}, testCaller)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.List(ctx, domain.ListCustomerRequest{Pagination: pagination.Pagination{PageSize: 2}}, testCaller)
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "Clara", first.Customers[0].Name)

	second, err := f.svc.List(ctx, domain.ListCustomerRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}}, testCaller)
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "Anna", second.Customers[0].Name)

	search, err := f.svc.List(ctx, domain.ListCustomerRequest{Search: "bern"}, testCaller)
	require.NoError(t, err)
	require.Len(t, search.Customers, 1)
	assert.Equal(t, "Bernd", search.Customers[0].Name)
}
