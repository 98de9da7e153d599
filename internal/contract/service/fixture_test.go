package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/contractdesk/internal/audit/domain"
	auditrepository "github.com/smallbiznis/contractdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/contractdesk/internal/audit/service"
	"github.com/smallbiznis/contractdesk/internal/caller"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/config"
	"github.com/smallbiznis/contractdesk/internal/contract/domain"
	"github.com/smallbiznis/contractdesk/internal/contract/repository"
	customerdomain "github.com/smallbiznis/contractdesk/internal/customer/domain"
	customerrepository "github.com/smallbiznis/contractdesk/internal/customer/repository"
	meterdomain "github.com/smallbiznis/contractdesk/internal/meter/domain"
	meterrepository "github.com/smallbiznis/contractdesk/internal/meter/repository"
	"github.com/smallbiznis/contractdesk/internal/observability/metrics"
	occupancydomain "github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"github.com/smallbiznis/contractdesk/internal/occupancy/overlap"
	occupancyrepository "github.com/smallbiznis/contractdesk/internal/occupancy/repository"
	occupancyservice "github.com/smallbiznis/contractdesk/internal/occupancy/service"
	reminderdomain "github.com/smallbiznis/contractdesk/internal/reminder/domain"
	reminderrepository "github.com/smallbiznis/contractdesk/internal/reminder/repository"
	sequencedomain "github.com/smallbiznis/contractdesk/internal/sequence/domain"
	sequencerepository "github.com/smallbiznis/contractdesk/internal/sequence/repository"
	sequenceservice "github.com/smallbiznis/contractdesk/internal/sequence/service"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testCaller = caller.Caller{BeraterID: 100, ActorID: 200}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// failingAudit lets the unit of work fail after every other write happened.
type failingAudit struct {
	auditdomain.Service
}

func (failingAudit) Append(context.Context, *gorm.DB, auditdomain.AppendRequest) (*auditdomain.AuditLog, error) {
	return nil, errors.New("audit store unavailable")
}

type fixture struct {
	t         *testing.T
	db        *gorm.DB
	svc       *Service
	clock     *clock.FakeClock
	node      *snowflake.Node
	storage   *mockStorage
	reader    *sdkmetric.ManualReader
	customers []customerdomain.Customer
	meter     meterdomain.Meter
}

type fixtureOption func(*Params)

func withRules(rules config.ContractRules) fixtureOption {
	return func(p *Params) { p.Rules = config.NewStaticContractRulesHolder(rules) }
}

func withAudit(svc auditdomain.Service) fixtureOption {
	return func(p *Params) { p.AuditSvc = svc }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&domain.Contract{},
		&meterdomain.Meter{},
		&occupancydomain.MeterHistory{},
		&customerdomain.Customer{},
		&reminderdomain.Reminder{},
		&auditdomain.AuditLog{},
		&sequencedomain.ContractCounter{},
	))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	m, err := metrics.New(metrics.Config{ServiceName: "contractdesk-test"}, provider)
	require.NoError(t, err)

	rules := config.NewStaticContractRulesHolder(config.DefaultContractRules())
	meters := meterrepository.Provide()
	history := occupancyrepository.Provide()
	storage := &mockStorage{}

	params := Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fc,
		Repo:      repository.Provide(),
		Meters:    meters,
		Customers: customerrepository.Provide(),
		Reminders: reminderrepository.Provide(),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB: db, Log: log, GenID: node, Clock: fc, Repo: auditrepository.Provide(),
		}),
		Allocator: sequenceservice.NewAllocator(sequenceservice.Params{
			Log: log, Clock: fc, Counter: sequencerepository.NewSQLCounter(), Rules: rules, Metrics: m,
		}),
		Coordinator: occupancyservice.NewCoordinator(occupancyservice.Params{
			Log: log, GenID: node, Clock: fc, Repo: history, Meters: meters,
			Validator: overlap.NewValidator(history), Metrics: m,
		}),
		Storage: storage,
		Rules:   rules,
		Metrics: m,
	}
	for _, opt := range opts {
		opt(&params)
	}

	f := &fixture{
		t:       t,
		db:      db,
		svc:     New(params).(*Service),
		clock:   fc,
		node:    node,
		storage: storage,
		reader:  reader,
	}
	f.customers = []customerdomain.Customer{f.addCustomer("Anna Becker"), f.addCustomer("Jonas Weber")}
	f.meter = f.addMeter("DE-M-0001")
	return f
}

func (f *fixture) addCustomer(name string) customerdomain.Customer {
	f.t.Helper()
	c := customerdomain.Customer{
		ID:        f.node.Generate(),
		BeraterID: testCaller.BeraterID,
		Name:      name,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}
	require.NoError(f.t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) addMeter(number string) meterdomain.Meter {
	f.t.Helper()
	m := meterdomain.Meter{
		ID:          f.node.Generate(),
		BeraterID:   testCaller.BeraterID,
		MeterNumber: number,
		MeterType:   meterdomain.MeterTypeElectricity,
		CreatedAt:   f.clock.Now(),
		UpdatedAt:   f.clock.Now(),
	}
	require.NoError(f.t, f.db.Create(&m).Error)
	return m
}

func (f *fixture) create(customer customerdomain.Customer, meter meterdomain.Meter, start time.Time, months int) (domain.Contract, error) {
	return f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerID:     customer.ID,
		MeterID:        meter.ID,
		StartDate:      start,
		DurationMonths: months,
	}, testCaller)
}

func (f *fixture) reloadMeter(id snowflake.ID) meterdomain.Meter {
	f.t.Helper()
	var m meterdomain.Meter
	require.NoError(f.t, f.db.First(&m, "id = ?", id).Error)
	return m
}

func (f *fixture) history(meterID snowflake.ID) []occupancydomain.MeterHistory {
	f.t.Helper()
	var entries []occupancydomain.MeterHistory
	require.NoError(f.t, f.db.Where("meter_id = ?", meterID).Order("start_date asc, id asc").Find(&entries).Error)
	return entries
}

func (f *fixture) count(model any) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) auditLogs(contractID snowflake.ID) []auditdomain.AuditLog {
	f.t.Helper()
	var logs []auditdomain.AuditLog
	require.NoError(f.t, f.db.Where("target_type = ? AND target_id = ?", auditdomain.TargetContract, contractID).
		Order("id asc").Find(&logs).Error)
	return logs
}

func (f *fixture) counterTotal(name string) int64 {
	f.t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(f.t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
