package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/contractdesk/internal/audit/domain"
	"github.com/smallbiznis/contractdesk/internal/caller"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/customer/domain"
	"github.com/smallbiznis/contractdesk/internal/validator"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

var auditedFields = []auditdomain.Field[domain.Customer]{
	{Name: "name", Get: func(c domain.Customer) any { return c.Name }},
	{Name: "email", Get: func(c domain.Customer) any { return c.Email }},
	{Name: "phone", Get: func(c domain.Customer) any { return c.Phone }},
	{Name: "address", Get: func(c domain.Customer) any { return c.Address }},
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest, c caller.Caller) (domain.Customer, error) {
	if err := c.Validate(); err != nil {
		return domain.Customer{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now().UTC()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		BeraterID: c.BeraterID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &customer); err != nil {
			return err
		}
		_, err := s.auditSvc.Append(ctx, tx, auditdomain.AppendRequest{
			BeraterID:  c.BeraterID,
			TargetType: auditdomain.TargetCustomer,
			TargetID:   customer.ID,
			ActorID:    c.ActorID,
			Action:     auditdomain.ActionCreated,
			Changes:    auditdomain.Snapshot(customer, auditedFields...),
		})
		return err
	})
	if err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateCustomerRequest, c caller.Caller) (domain.Customer, error) {
	if err := c.Validate(); err != nil {
		return domain.Customer{}, err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Customer{}, err
	}

	var updated domain.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, c.BeraterID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		next := *current
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			next.Name = name
		}
		if req.Email != nil {
			next.Email = strings.TrimSpace(*req.Email)
		}
		if req.Phone != nil {
			next.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Address != nil {
			next.Address = strings.TrimSpace(*req.Address)
		}

		changes := auditdomain.Diff(*current, next, auditedFields...)
		if len(changes) == 0 {
			updated = *current
			return nil
		}

		next.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}
		if _, err := s.auditSvc.Append(ctx, tx, auditdomain.AppendRequest{
			BeraterID:  c.BeraterID,
			TargetType: auditdomain.TargetCustomer,
			TargetID:   next.ID,
			ActorID:    c.ActorID,
			Action:     auditdomain.ActionUpdated,
			Changes:    changes,
		}); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID, c caller.Caller) (domain.Customer, error) {
	if err := c.Validate(); err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, c.BeraterID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest, c caller.Caller) (domain.ListCustomerResponse, error) {
	if err := c.Validate(); err != nil {
		return domain.ListCustomerResponse{}, err
	}
	if err := validator.ValidateRequest(req.Pagination); err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	req.PageSize = pageSize

	items, err := s.repo.List(ctx, s.db, c.BeraterID, req.Search, req.Pagination)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Customer) string {
		return pagination.CursorFor(item.ID.String(), item.CreatedAt)
	})

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: customers}, nil
}
