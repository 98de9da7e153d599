package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/audit/domain"
	"github.com/smallbiznis/contractdesk/internal/clock"
	obslogger "github.com/smallbiznis/contractdesk/internal/observability/logger"
	"github.com/smallbiznis/contractdesk/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, req domain.AppendRequest) (*domain.AuditLog, error) {
	if !req.Action.Valid() {
		return nil, domain.ErrInvalidAction
	}
	if req.BeraterID == 0 {
		return nil, domain.ErrInvalidBerater
	}
	if req.TargetID == 0 || (req.TargetType != domain.TargetContract && req.TargetType != domain.TargetCustomer) {
		return nil, domain.ErrInvalidTarget
	}

	metadata := map[string]any{}
	for key, value := range req.Metadata {
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		metadata["correlation_id"] = cid
	}

	entry := domain.AuditLog{
		ID:         s.genID.Generate(),
		BeraterID:  req.BeraterID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorID:    req.ActorID,
		Action:     req.Action,
		Changes:    datatypes.NewJSONType(req.Changes.Compact()),
		Metadata:   datatypes.JSONMap(metadata),
		CreatedAt:  s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to write audit log",
			zap.String("action", string(req.Action)),
			zap.String("target_type", string(req.TargetType)),
			zap.String("target_id", req.TargetID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return &entry, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.AuditLog, error) {
	return s.ListWith(ctx, s.db, req)
}

// ListWith reads entries through db, so callers inside a transaction see
// their own uncommitted appends.
func (s *Service) ListWith(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.AuditLog, error) {
	if req.BeraterID == 0 {
		return nil, domain.ErrInvalidBerater
	}
	if req.TargetID == 0 {
		return nil, domain.ErrInvalidTarget
	}
	if req.Action != "" && !req.Action.Valid() {
		return nil, domain.ErrInvalidAction
	}

	items, err := s.repo.List(ctx, db, domain.ListFilter{
		BeraterID:  req.BeraterID,
		TargetType: req.TargetType,
		TargetIDs:  []snowflake.ID{req.TargetID},
		Action:     req.Action,
	})
	if err != nil {
		return nil, err
	}

	logs := make([]domain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return logs, nil
}
