package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/caller"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	occupancydomain "github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest, c caller.Caller) (*Meter, error)
	GetByID(ctx context.Context, id snowflake.ID, c caller.Caller) (*Meter, error)
	List(ctx context.Context, req ListRequest, c caller.Caller) (ListResponse, error)
	ListHistory(ctx context.Context, id snowflake.ID, c caller.Caller) ([]occupancydomain.MeterHistory, error)
	// AssignMeter opens an occupancy without a contract, as imports do.
	AssignMeter(ctx context.Context, req AssignRequest, c caller.Caller) (*occupancydomain.MeterHistory, error)
	ReleaseMeter(ctx context.Context, req ReleaseRequest, c caller.Caller) error
}

type CreateRequest struct {
	MeterNumber string    `validate:"required,max=64"`
	MeterType   MeterType `validate:"required,oneof=electricity gas water heat"`
	Location    string    `validate:"max=512"`
}

type ListRequest struct {
	pagination.Pagination
	MeterType MeterType `validate:"omitempty,oneof=electricity gas water heat"`
	Search    string
	Occupied  *bool
}

type ListResponse struct {
	pagination.PageInfo
	Meters []Meter `json:"meters"`
}

type AssignRequest struct {
	MeterID    snowflake.ID `validate:"required"`
	CustomerID snowflake.ID `validate:"required"`
	StartDate  time.Time    `validate:"required"`
}

type ReleaseRequest struct {
	MeterID snowflake.ID `validate:"required"`
	EndDate *time.Time
}

var (
	ErrNotFound             = ierr.Sentinel("meter_not_found", ierr.ErrNotFound)
	ErrInvalidMeterNumber   = ierr.Sentinel("invalid_meter_number", ierr.ErrValidation)
	ErrDuplicateMeterNumber = ierr.Sentinel("duplicate_meter_number", ierr.ErrConflict)
)
