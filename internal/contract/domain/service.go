package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/caller"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
)

type CreateRequest struct {
	CustomerID             snowflake.ID  `validate:"required"`
	MeterID                snowflake.ID  `validate:"required"`
	SupplierID             *snowflake.ID `validate:"omitempty"`
	SupplierContractNumber string        `validate:"max=128"`
	StartDate              time.Time     `validate:"required"`
	DurationMonths         int           `validate:"required"`
	// EndDate overrides the date computed from StartDate and DurationMonths.
	EndDate *time.Time
	// Status is active when empty. Only draft and active are accepted.
	Status Status `validate:"omitempty,oneof=draft active"`
	Notes  string `validate:"max=10000"`
}

// UpdateRequest is a patch over the mutable contract fields; nil fields are
// left untouched.
type UpdateRequest struct {
	DurationMonths         *int          `validate:"omitempty"`
	Notes                  *string       `validate:"omitempty,max=10000"`
	Status                 *Status       `validate:"omitempty,oneof=draft active ended archived"`
	StartDate              *time.Time    `validate:"omitempty"`
	EndDate                *time.Time    `validate:"omitempty"`
	SupplierContractNumber *string       `validate:"omitempty,max=128"`
	SupplierID             *snowflake.ID `validate:"omitempty"`
}

func (r UpdateRequest) Empty() bool {
	return r.DurationMonths == nil && r.Notes == nil && r.Status == nil &&
		r.StartDate == nil && r.EndDate == nil &&
		r.SupplierContractNumber == nil && r.SupplierID == nil
}

type AttachmentInput struct {
	FileName    string `validate:"required,max=255"`
	ContentType string `validate:"max=255"`
	Size        int64  `validate:"gte=0"`
}

type ListRequest struct {
	pagination.Pagination
	Statuses   []Status `validate:"dive,oneof=draft active ended archived"`
	SupplierID *snowflake.ID
	CustomerID *snowflake.ID
	MeterID    *snowflake.ID
	StartFrom  *time.Time
	StartTo    *time.Time
	Search     string `validate:"max=255"`
}

type ListResponse struct {
	pagination.PageInfo
	Contracts []Contract `json:"contracts"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest, c caller.Caller) (Contract, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest, c caller.Caller) (Contract, error)
	Delete(ctx context.Context, id snowflake.ID, c caller.Caller) error
	// MinStartDateForMeter returns the end date of the meter's most recently
	// closed contract, or nil when the meter has none.
	MinStartDateForMeter(ctx context.Context, meterID snowflake.ID, c caller.Caller) (*time.Time, error)
	GetByID(ctx context.Context, id snowflake.ID, c caller.Caller) (Contract, error)
	List(ctx context.Context, req ListRequest, c caller.Caller) (ListResponse, error)
	AddAttachment(ctx context.Context, id snowflake.ID, in AttachmentInput, c caller.Caller) (Attachment, error)
	RemoveAttachment(ctx context.Context, id snowflake.ID, attachmentID string, c caller.Caller) error
}

var (
	ErrNotFound               = ierr.Sentinel("contract_not_found", ierr.ErrNotFound)
	ErrCustomerNotFound       = ierr.Sentinel("customer_not_found", ierr.ErrNotFound)
	ErrAttachmentNotFound     = ierr.Sentinel("attachment_not_found", ierr.ErrNotFound)
	ErrInvalidDuration        = ierr.Sentinel("invalid_duration", ierr.ErrValidation)
	ErrInvalidStatus          = ierr.Sentinel("invalid_status", ierr.ErrValidation)
	ErrInvalidDateRange       = ierr.Sentinel("invalid_date_range", ierr.ErrValidation)
	ErrMeterHasActiveContract = ierr.Sentinel("meter_has_active_contract", ierr.ErrConflict)
	ErrDuplicateNumber        = ierr.Sentinel("duplicate_contract_number", ierr.ErrConflict)
	ErrActiveNotDeletable     = ierr.Sentinel("active_contract_not_deletable", ierr.ErrInvalidOperation)
	ErrEndDateInPast          = ierr.Sentinel("end_date_in_past", ierr.ErrInvalidOperation)
)
