package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/caller"
	"github.com/smallbiznis/contractdesk/internal/clock"
	contractdomain "github.com/smallbiznis/contractdesk/internal/contract/domain"
	"github.com/smallbiznis/contractdesk/internal/reminder/domain"
	"github.com/smallbiznis/contractdesk/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Contracts contractdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	contracts contractdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reminder.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		contracts: p.Contracts,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateReminderRequest, c caller.Caller) (domain.Reminder, error) {
	if err := c.Validate(); err != nil {
		return domain.Reminder{}, err
	}
	req.Note = strings.TrimSpace(req.Note)
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Reminder{}, err
	}
	if err := s.ensureContract(ctx, c.BeraterID, req.ContractID); err != nil {
		return domain.Reminder{}, err
	}

	reminder := domain.Reminder{
		ID:         s.genID.Generate(),
		BeraterID:  c.BeraterID,
		ContractID: req.ContractID,
		DueAt:      req.DueAt.UTC(),
		Note:       req.Note,
		CreatedBy:  c.ActorID,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &reminder); err != nil {
		return domain.Reminder{}, err
	}
	return reminder, nil
}

func (s *Service) ListByContract(ctx context.Context, contractID snowflake.ID, c caller.Caller) ([]domain.Reminder, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureContract(ctx, c.BeraterID, contractID); err != nil {
		return nil, err
	}
	return s.repo.ListByContract(ctx, s.db, c.BeraterID, contractID)
}

func (s *Service) ensureContract(ctx context.Context, beraterID, contractID snowflake.ID) error {
	contract, err := s.contracts.FindByID(ctx, s.db, beraterID, contractID)
	if err != nil {
		return err
	}
	if contract == nil {
		return domain.ErrContractNotFound
	}
	return nil
}
