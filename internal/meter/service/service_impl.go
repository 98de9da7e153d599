package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/caller"
	"github.com/smallbiznis/contractdesk/internal/clock"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	meterdomain "github.com/smallbiznis/contractdesk/internal/meter/domain"
	occupancydomain "github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	occupancyservice "github.com/smallbiznis/contractdesk/internal/occupancy/service"
	"github.com/smallbiznis/contractdesk/internal/validator"
	"github.com/smallbiznis/contractdesk/pkg/db"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        meterdomain.Repository
	Coordinator *occupancyservice.Coordinator
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        meterdomain.Repository
	genID       *snowflake.Node
	clock       clock.Clock
	coordinator *occupancyservice.Coordinator
}

func New(p Params) meterdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("meter.service"),
		repo:        p.Repo,
		genID:       p.GenID,
		clock:       p.Clock,
		coordinator: p.Coordinator,
	}
}

func (s *Service) Create(ctx context.Context, req meterdomain.CreateRequest, c caller.Caller) (*meterdomain.Meter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	req.MeterNumber = normalizeMeterNumber(req.MeterNumber)
	req.MeterType = meterdomain.MeterType(strings.ToLower(strings.TrimSpace(string(req.MeterType))))
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if strings.IndexFunc(req.MeterNumber, invalidMeterRune) >= 0 {
		return nil, ierr.WithError(meterdomain.ErrInvalidMeterNumber).
			WithHint("meter numbers may contain letters, digits, dots, dashes and slashes").
			Mark(ierr.ErrValidation)
	}

	existing, err := s.repo.FindByNumber(ctx, s.db, req.MeterNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, duplicateNumber(req.MeterNumber)
	}

	now := s.clock.Now().UTC()
	m := &meterdomain.Meter{
		ID:          s.genID.Generate(),
		BeraterID:   c.BeraterID,
		MeterNumber: req.MeterNumber,
		MeterType:   req.MeterType,
		Location:    strings.TrimSpace(req.Location),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, m); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, duplicateNumber(req.MeterNumber)
		}
		return nil, err
	}

	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID, c caller.Caller) (*meterdomain.Meter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, c.BeraterID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, meterdomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req meterdomain.ListRequest, c caller.Caller) (meterdomain.ListResponse, error) {
	if err := c.Validate(); err != nil {
		return meterdomain.ListResponse{}, err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return meterdomain.ListResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, meterdomain.ListFilter{
		BeraterID: c.BeraterID,
		MeterType: req.MeterType,
		Search:    req.Search,
		Occupied:  req.Occupied,
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return meterdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(m *meterdomain.Meter) string {
		return pagination.CursorFor(m.ID.String(), m.CreatedAt)
	})

	meters := make([]meterdomain.Meter, 0, len(items))
	for _, item := range items {
		meters = append(meters, *item)
	}
	return meterdomain.ListResponse{PageInfo: pageInfo, Meters: meters}, nil
}

func (s *Service) ListHistory(ctx context.Context, id snowflake.ID, c caller.Caller) ([]occupancydomain.MeterHistory, error) {
	if _, err := s.GetByID(ctx, id, c); err != nil {
		return nil, err
	}
	return s.coordinator.ListHistory(ctx, s.db, id)
}

func (s *Service) AssignMeter(ctx context.Context, req meterdomain.AssignRequest, c caller.Caller) (*occupancydomain.MeterHistory, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	var entry *occupancydomain.MeterHistory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opened, err := s.coordinator.OpenAssignment(ctx, tx, occupancydomain.OpenAssignmentRequest{
			MeterID:    req.MeterID,
			BeraterID:  c.BeraterID,
			CustomerID: req.CustomerID,
			StartDate:  req.StartDate,
		})
		if err != nil {
			return err
		}
		entry = opened
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("meter assigned",
		zap.String("meter_id", req.MeterID.String()),
		zap.String("customer_id", req.CustomerID.String()),
	)
	return entry, nil
}

func (s *Service) ReleaseMeter(ctx context.Context, req meterdomain.ReleaseRequest, c caller.Caller) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return err
	}

	endDate := clock.DatePtr(req.EndDate)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.coordinator.ReleaseAssignment(ctx, tx, c.BeraterID, req.MeterID, endDate)
	})
}

func normalizeMeterNumber(value string) string {
	return strings.ToUpper(strings.Join(strings.Fields(value), ""))
}

func invalidMeterRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case r == '-', r == '.', r == '/':
		return false
	}
	return true
}

func duplicateNumber(number string) error {
	return ierr.WithError(meterdomain.ErrDuplicateMeterNumber).
		WithHintf("meter number %s is already registered", number).
		Mark(ierr.ErrConflict)
}
