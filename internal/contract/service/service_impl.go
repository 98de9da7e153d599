package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/smallbiznis/contractdesk/internal/attachment"
	auditdomain "github.com/smallbiznis/contractdesk/internal/audit/domain"
	"github.com/smallbiznis/contractdesk/internal/caller"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/config"
	"github.com/smallbiznis/contractdesk/internal/contract/domain"
	customerdomain "github.com/smallbiznis/contractdesk/internal/customer/domain"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/internal/lifecycle"
	meterdomain "github.com/smallbiznis/contractdesk/internal/meter/domain"
	obslogger "github.com/smallbiznis/contractdesk/internal/observability/logger"
	"github.com/smallbiznis/contractdesk/internal/observability/metrics"
	occupancydomain "github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"github.com/smallbiznis/contractdesk/internal/occupancy/overlap"
	occupancyservice "github.com/smallbiznis/contractdesk/internal/occupancy/service"
	reminderdomain "github.com/smallbiznis/contractdesk/internal/reminder/domain"
	sequenceservice "github.com/smallbiznis/contractdesk/internal/sequence/service"
	"github.com/smallbiznis/contractdesk/internal/validator"
	"github.com/smallbiznis/contractdesk/pkg/db"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("contractdesk/contract")

const effectAttachmentCleanup = "attachment_cleanup"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Meters      meterdomain.Repository
	Customers   customerdomain.Repository
	Reminders   reminderdomain.Repository
	AuditSvc    auditdomain.Service
	Allocator   *sequenceservice.Allocator
	Coordinator *occupancyservice.Coordinator
	Storage     attachment.Storage
	Rules       *config.ContractRulesHolder
	Metrics     *metrics.Metrics `optional:"true"`
}

// Service orchestrates contract writes. Every mutation runs in one
// transaction together with its meter, history and audit effects.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	meters      meterdomain.Repository
	customers   customerdomain.Repository
	reminders   reminderdomain.Repository
	auditSvc    auditdomain.Service
	allocator   *sequenceservice.Allocator
	coordinator *occupancyservice.Coordinator
	storage     attachment.Storage
	rules       *config.ContractRulesHolder
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("contract.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		meters:      p.Meters,
		customers:   p.Customers,
		reminders:   p.Reminders,
		auditSvc:    p.AuditSvc,
		allocator:   p.Allocator,
		coordinator: p.Coordinator,
		storage:     p.Storage,
		rules:       p.Rules,
		metrics:     p.Metrics,
	}
}

var auditedFields = []auditdomain.Field[domain.Contract]{
	{Name: "contract_number", Get: func(c domain.Contract) any { return c.ContractNumber }},
	{Name: "customer_id", Get: func(c domain.Contract) any { return c.CustomerID }},
	{Name: "meter_id", Get: func(c domain.Contract) any { return c.MeterID }},
	{Name: "supplier_id", Get: func(c domain.Contract) any { return c.SupplierID }},
	{Name: "supplier_contract_number", Get: func(c domain.Contract) any { return c.SupplierContractNumber }},
	{Name: "start_date", Get: func(c domain.Contract) any { return c.StartDate }},
	{Name: "duration_months", Get: func(c domain.Contract) any { return c.DurationMonths }},
	{Name: "end_date", Get: func(c domain.Contract) any { return c.EndDate }},
	{Name: "status", Get: func(c domain.Contract) any { return c.Status }},
	{Name: "notes", Get: func(c domain.Contract) any { return c.Notes }},
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest, c caller.Caller) (out domain.Contract, err error) {
	ctx, log, done := s.begin(ctx, "create", c)
	defer func() { done(err) }()

	if err := c.Validate(); err != nil {
		return domain.Contract{}, err
	}
	req.SupplierContractNumber = strings.TrimSpace(req.SupplierContractNumber)
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Contract{}, err
	}
	if err := s.checkDuration(req.DurationMonths); err != nil {
		return domain.Contract{}, err
	}

	status := req.Status
	if status == "" {
		status = domain.StatusActive
	}
	start := clock.Date(req.StartDate)
	end := domain.ComputeEndDate(start, req.DurationMonths)
	if req.EndDate != nil {
		end = clock.Date(*req.EndDate)
	}
	if end.Before(start) {
		return domain.Contract{}, ierr.WithError(domain.ErrInvalidDateRange).
			WithHint("end date must not be before the start date").
			Mark(ierr.ErrValidation)
	}

	now := s.clock.Now().UTC()
	contract := domain.Contract{
		ID:                     s.genID.Generate(),
		BeraterID:              c.BeraterID,
		CustomerID:             req.CustomerID,
		MeterID:                req.MeterID,
		SupplierID:             req.SupplierID,
		SupplierContractNumber: req.SupplierContractNumber,
		StartDate:              start,
		DurationMonths:         req.DurationMonths,
		EndDate:                end,
		Status:                 status,
		Notes:                  req.Notes,
		Attachments:            []domain.Attachment{},
		CreatedBy:              c.ActorID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := s.checkReferences(ctx, tx, c.BeraterID, req.MeterID, req.CustomerID); err != nil {
			return err
		}
		if err := s.checkMeterAvailable(ctx, tx, contract); err != nil {
			return err
		}

		number, err := s.allocator.NextNumber(ctx, tx, s.allocator.ScopeFor(c.BeraterID, now),
			func(ctx context.Context, number string) (bool, error) {
				return s.repo.NumberExists(ctx, tx, c.BeraterID, number)
			})
		if err != nil {
			return err
		}
		contract.ContractNumber = number

		if err := s.repo.Insert(ctx, tx, &contract); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return ierr.WithError(domain.ErrDuplicateNumber).
					WithHintf("contract number %s is already taken", number).
					Mark(ierr.ErrConflict)
			}
			return err
		}

		if err := s.coordinator.ApplyStatusEffect(ctx, tx, assignmentOf(contract), "", contract.Status); err != nil {
			return err
		}

		_, err = s.auditSvc.Append(ctx, tx, auditdomain.AppendRequest{
			BeraterID:  c.BeraterID,
			TargetType: auditdomain.TargetContract,
			TargetID:   contract.ID,
			ActorID:    c.ActorID,
			Action:     auditdomain.ActionCreated,
			Changes:    auditdomain.Snapshot(contract, auditedFields...),
		})
		return err
	})
	if err != nil {
		return domain.Contract{}, err
	}

	log.Info("contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("contract_number", contract.ContractNumber),
		zap.String("status", contract.Status.String()),
	)
	return contract, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest, c caller.Caller) (out domain.Contract, err error) {
	ctx, log, done := s.begin(ctx, "update", c)
	defer func() { done(err) }()

	if err := c.Validate(); err != nil {
		return domain.Contract{}, err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Contract{}, err
	}
	if req.DurationMonths != nil {
		if err := s.checkDuration(*req.DurationMonths); err != nil {
			return domain.Contract{}, err
		}
	}
	if req.Empty() {
		return s.GetByID(ctx, id, c)
	}

	var (
		updated       domain.Contract
		statusChanged bool
	)
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, c.BeraterID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		next, err := applyPatch(*current, req)
		if err != nil {
			return err
		}

		changes := auditdomain.Diff(*current, next, auditedFields...)
		if len(changes) == 0 {
			updated = *current
			return nil
		}

		endMoved := !clock.Date(next.EndDate).Equal(clock.Date(current.EndDate))
		if next.IsActive() && endMoved && next.EndsBefore(s.clock.Now()) {
			return ierr.WithError(domain.ErrEndDateInPast).
				WithHintf("end date %s of an active contract lies in the past", auditdomain.DateValue(next.EndDate)).
				Mark(ierr.ErrInvalidOperation)
		}

		statusChanged = current.Status != next.Status
		if statusChanged && next.IsActive() {
			if err := s.checkMeterAvailable(ctx, tx, next); err != nil {
				return err
			}
		}

		next.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}

		if statusChanged {
			if err := s.coordinator.ApplyStatusEffect(ctx, tx, assignmentOf(next), current.Status, next.Status); err != nil {
				return err
			}
		}

		action := auditdomain.ActionUpdated
		if statusChanged {
			action = auditdomain.ActionStatusChanged
		}
		if _, err := s.auditSvc.Append(ctx, tx, auditdomain.AppendRequest{
			BeraterID:  c.BeraterID,
			TargetType: auditdomain.TargetContract,
			TargetID:   next.ID,
			ActorID:    c.ActorID,
			Action:     action,
			Changes:    changes,
		}); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}

	if statusChanged {
		log.Info("contract status changed",
			zap.String("contract_id", updated.ID.String()),
			zap.String("status", updated.Status.String()),
		)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID, c caller.Caller) (err error) {
	ctx, log, done := s.begin(ctx, "delete", c)
	defer func() { done(err) }()

	if err := c.Validate(); err != nil {
		return err
	}

	var (
		keys      []string
		reminders int64
	)
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, c.BeraterID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.IsActive() {
			return ierr.WithError(domain.ErrActiveNotDeletable).
				WithHintf("end or archive contract %s before deleting it", current.ContractNumber).
				Mark(ierr.ErrInvalidOperation)
		}

		if current.Status == domain.StatusDraft {
			active, err := s.repo.FindActiveByMeter(ctx, tx, current.MeterID, current.ID)
			if err != nil {
				return err
			}
			if err := s.coordinator.ReleaseForDraft(ctx, tx, assignmentOf(*current), active != nil); err != nil {
				return err
			}
		}

		reminders, err = s.reminders.DeleteByContract(ctx, tx, c.BeraterID, current.ID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, c.BeraterID, current.ID); err != nil {
			return err
		}

		changes := auditdomain.Changes{}
		changes.Set("status", current.Status, nil)
		changes.Set("contract_number", current.ContractNumber, nil)
		if _, err := s.auditSvc.Append(ctx, tx, auditdomain.AppendRequest{
			BeraterID:  c.BeraterID,
			TargetType: auditdomain.TargetContract,
			TargetID:   current.ID,
			ActorID:    c.ActorID,
			Action:     auditdomain.ActionDeleted,
			Changes:    changes,
		}); err != nil {
			return err
		}

		keys = storageKeys(current.Attachments)
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("contract deleted",
		zap.String("contract_id", id.String()),
		zap.Int64("reminders_deleted", reminders),
		zap.Int("attachments", len(keys)),
	)
	s.runPostCommit(ctx, log, s.cleanupHooks(keys))
	return nil
}

func (s *Service) MinStartDateForMeter(ctx context.Context, meterID snowflake.ID, c caller.Caller) (*time.Time, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	meter, err := s.meters.FindByID(ctx, s.db, c.BeraterID, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrNotFound
	}

	last, err := s.repo.FindLastClosedByMeter(ctx, s.db, meterID, 0)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}
	minStart := clock.Date(last.EndDate)
	return &minStart, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID, c caller.Caller) (domain.Contract, error) {
	if err := c.Validate(); err != nil {
		return domain.Contract{}, err
	}
	contract, err := s.repo.FindByID(ctx, s.db, c.BeraterID, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if contract == nil {
		return domain.Contract{}, domain.ErrNotFound
	}

	logs, err := s.auditSvc.ListWith(ctx, s.db, auditdomain.ListRequest{
		BeraterID:  c.BeraterID,
		TargetType: auditdomain.TargetContract,
		TargetID:   contract.ID,
	})
	if err != nil {
		return domain.Contract{}, err
	}
	contract.AuditLog = logs
	return *contract, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest, c caller.Caller) (domain.ListResponse, error) {
	if err := c.Validate(); err != nil {
		return domain.ListResponse{}, err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return domain.ListResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		BeraterID:  c.BeraterID,
		Statuses:   req.Statuses,
		SupplierID: req.SupplierID,
		CustomerID: req.CustomerID,
		MeterID:    req.MeterID,
		StartFrom:  clock.DatePtr(req.StartFrom),
		StartTo:    clock.DatePtr(req.StartTo),
		Search:     req.Search,
		Page:       pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize},
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(c *domain.Contract) string {
		return pagination.CursorFor(c.ID.String(), c.CreatedAt)
	})

	contracts := lo.Map(items, func(item *domain.Contract, _ int) domain.Contract { return *item })
	return domain.ListResponse{PageInfo: pageInfo, Contracts: contracts}, nil
}

// AddAttachment records the metadata of a file the request layer is about
// to store under the returned StorageKey.
func (s *Service) AddAttachment(ctx context.Context, id snowflake.ID, in domain.AttachmentInput, c caller.Caller) (out domain.Attachment, err error) {
	ctx, _, done := s.begin(ctx, "add_attachment", c)
	defer func() { done(err) }()

	if err := c.Validate(); err != nil {
		return domain.Attachment{}, err
	}
	in.FileName = strings.TrimSpace(in.FileName)
	if err := validator.ValidateRequest(in); err != nil {
		return domain.Attachment{}, err
	}

	now := s.clock.Now().UTC()
	att := domain.Attachment{
		ID:          ulid.Make().String(),
		FileName:    in.FileName,
		StorageKey:  attachment.NewKey(id, in.FileName),
		ContentType: strings.TrimSpace(in.ContentType),
		Size:        in.Size,
		UploadedAt:  now,
		UploadedBy:  c.ActorID,
	}

	err = s.mutateAttachments(ctx, id, c, func(current domain.Contract) (domain.Contract, error) {
		next := current
		next.Attachments = append(slices.Clone(current.Attachments), att)
		return next, nil
	})
	if err != nil {
		return domain.Attachment{}, err
	}
	return att, nil
}

// RemoveAttachment drops the attachment metadata and deletes the stored file
// once the change is committed.
func (s *Service) RemoveAttachment(ctx context.Context, id snowflake.ID, attachmentID string, c caller.Caller) (err error) {
	ctx, log, done := s.begin(ctx, "remove_attachment", c)
	defer func() { done(err) }()

	if err := c.Validate(); err != nil {
		return err
	}

	var removed domain.Attachment
	err = s.mutateAttachments(ctx, id, c, func(current domain.Contract) (domain.Contract, error) {
		_, idx, found := lo.FindIndexOf(current.Attachments, func(a domain.Attachment) bool { return a.ID == attachmentID })
		if !found {
			return current, domain.ErrAttachmentNotFound
		}
		removed = current.Attachments[idx]
		next := current
		next.Attachments = slices.Delete(slices.Clone(current.Attachments), idx, idx+1)
		return next, nil
	})
	if err != nil {
		return err
	}

	s.runPostCommit(ctx, log, s.cleanupHooks(storageKeys([]domain.Attachment{removed})))
	return nil
}

func (s *Service) mutateAttachments(ctx context.Context, id snowflake.ID, c caller.Caller, mutate func(domain.Contract) (domain.Contract, error)) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, c.BeraterID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		next, err := mutate(*current)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}

		changes := auditdomain.Changes{}
		changes.Set("attachments", fileNames(current.Attachments), fileNames(next.Attachments))
		_, err = s.auditSvc.Append(ctx, tx, auditdomain.AppendRequest{
			BeraterID:  c.BeraterID,
			TargetType: auditdomain.TargetContract,
			TargetID:   next.ID,
			ActorID:    c.ActorID,
			Action:     auditdomain.ActionUpdated,
			Changes:    changes,
		})
		return err
	})
}

// transaction runs fn as one unit of work. Aborts caused by contention are
// reported as database errors the caller may retry.
func (s *Service) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if db.IsTransientTxErr(err) {
		return ierr.WithError(err).
			WithHint("the contract or meter is being changed concurrently, retry the request").
			Mark(ierr.ErrDatabase)
	}
	return err
}

func (s *Service) checkDuration(months int) error {
	rules := s.rules.Get()
	if months < rules.MinDurationMonths || months > rules.MaxDurationMonths {
		return ierr.WithError(domain.ErrInvalidDuration).
			WithHintf("duration must be between %d and %d months", rules.MinDurationMonths, rules.MaxDurationMonths).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, tx *gorm.DB, beraterID, meterID, customerID snowflake.ID) error {
	meter, err := s.meters.FindByID(ctx, tx, beraterID, meterID)
	if err != nil {
		return err
	}
	if meter == nil {
		return meterdomain.ErrNotFound
	}
	customer, err := s.customers.FindByID(ctx, tx, beraterID, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// checkMeterAvailable enforces one active contract per meter and that a new
// occupancy does not start before the meter's last closed contract ended.
// The meter row stays locked until the transaction ends, which serializes
// concurrent writers on the same meter.
func (s *Service) checkMeterAvailable(ctx context.Context, tx *gorm.DB, contract domain.Contract) error {
	meter, err := s.meters.FindByIDForUpdate(ctx, tx, contract.BeraterID, contract.MeterID)
	if err != nil {
		return err
	}
	if meter == nil {
		return meterdomain.ErrNotFound
	}

	active, err := s.repo.FindActiveByMeter(ctx, tx, contract.MeterID, contract.ID)
	if err != nil {
		return err
	}
	if active != nil {
		s.metrics.RecordMeterConflict(ctx, "active_contract")
		return ierr.WithError(domain.ErrMeterHasActiveContract).
			WithHintf("contract %s is active on this meter", active.ContractNumber).
			Mark(ierr.ErrConflict)
	}

	last, err := s.repo.FindLastClosedByMeter(ctx, tx, contract.MeterID, contract.ID)
	if err != nil {
		return err
	}
	if last == nil {
		return nil
	}
	if conflict := overlap.CheckStart(contract.StartDate, &last.EndDate); conflict != nil {
		s.metrics.RecordMeterConflict(ctx, string(conflict.Reason))
		return conflict.Err()
	}
	return nil
}

func applyPatch(current domain.Contract, req domain.UpdateRequest) (domain.Contract, error) {
	next := current

	recompute := false
	if req.StartDate != nil {
		next.StartDate = clock.Date(*req.StartDate)
		recompute = true
	}
	if req.DurationMonths != nil {
		next.DurationMonths = *req.DurationMonths
		recompute = true
	}
	switch {
	case req.EndDate != nil:
		next.EndDate = clock.Date(*req.EndDate)
	case recompute:
		next.EndDate = domain.ComputeEndDate(next.StartDate, next.DurationMonths)
	}
	if next.EndDate.Before(next.StartDate) {
		return current, ierr.WithError(domain.ErrInvalidDateRange).
			WithHint("end date must not be before the start date").
			Mark(ierr.ErrValidation)
	}

	if req.Status != nil {
		status, ok := lifecycle.Parse(req.Status.String())
		if !ok {
			return current, domain.ErrInvalidStatus
		}
		next.Status = status
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if req.SupplierContractNumber != nil {
		next.SupplierContractNumber = strings.TrimSpace(*req.SupplierContractNumber)
	}
	if req.SupplierID != nil {
		supplierID := *req.SupplierID
		next.SupplierID = &supplierID
	}
	return next, nil
}

func assignmentOf(c domain.Contract) occupancydomain.Assignment {
	end := c.EndDate
	return occupancydomain.Assignment{
		ContractID: c.ID,
		BeraterID:  c.BeraterID,
		MeterID:    c.MeterID,
		CustomerID: c.CustomerID,
		StartDate:  c.StartDate,
		EndDate:    &end,
	}
}

func fileNames(attachments []domain.Attachment) []string {
	return lo.Map(attachments, func(a domain.Attachment, _ int) string { return a.FileName })
}

func storageKeys(attachments []domain.Attachment) []string {
	return lo.Compact(lo.Map(attachments, func(a domain.Attachment, _ int) string { return a.StorageKey }))
}

// begin opens the span and unit-of-work logger of a mutation. The returned
// func records the outcome and must be deferred.
func (s *Service) begin(ctx context.Context, op string, c caller.Caller) (context.Context, *zap.Logger, func(error)) {
	ctx = caller.WithCaller(ctx, c)
	ctx, span := tracer.Start(ctx, "contract."+op, trace.WithAttributes(
		attribute.String("berater_id", c.BeraterID.String()),
	))
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("operation", op),
		zap.String("unit_of_work", uuid.NewString()),
	)

	started := time.Now()
	return ctx, log, func(err error) {
		result := "ok"
		if err != nil {
			result = ierr.Category(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
			log.Debug("contract operation failed", zap.String("result", result), zap.Error(err))
		}
		span.SetAttributes(attribute.String("result", result))
		s.metrics.RecordOperation(ctx, op, result, time.Since(started))
		span.End()
	}
}

// postCommit is a side effect that runs after the unit of work committed.
// Its failure never undoes the committed change.
type postCommit struct {
	name   string
	effect string
	run    func(ctx context.Context) error
}

func (s *Service) cleanupHooks(keys []string) []postCommit {
	if s.storage == nil {
		return nil
	}
	return lo.Map(keys, func(key string, _ int) postCommit {
		return postCommit{
			name:   "delete " + key,
			effect: effectAttachmentCleanup,
			run:    func(ctx context.Context) error { return s.storage.Delete(ctx, key) },
		}
	})
}

func (s *Service) runPostCommit(ctx context.Context, log *zap.Logger, hooks []postCommit) {
	for _, hook := range hooks {
		s.runHook(ctx, log, hook)
	}
}

func (s *Service) runHook(ctx context.Context, log *zap.Logger, hook postCommit) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordPostCommitFailure(ctx, hook.effect)
			log.Error("post-commit effect panicked",
				zap.String("effect", hook.effect),
				zap.String("hook", hook.name),
				zap.Any("panic", r),
			)
		}
	}()

	if err := hook.run(ctx); err != nil {
		s.metrics.RecordPostCommitFailure(ctx, hook.effect)
		log.Warn("post-commit effect failed",
			zap.String("effect", hook.effect),
			zap.String("hook", hook.name),
			zap.Error(err),
		)
	}
}
