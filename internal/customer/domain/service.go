package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/caller"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
)

type CreateCustomerRequest struct {
	Name    string `validate:"required,max=255"`
	Email   string `validate:"omitempty,email"`
	Phone   string `validate:"max=64"`
	Address string `validate:"max=1024"`
}

// UpdateCustomerRequest is a patch; nil fields are left untouched.
type UpdateCustomerRequest struct {
	Name    *string `validate:"omitempty,min=1,max=255"`
	Email   *string `validate:"omitempty,email"`
	Phone   *string `validate:"omitempty,max=64"`
	Address *string `validate:"omitempty,max=1024"`
}

type ListCustomerRequest struct {
	pagination.Pagination
	Search string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest, c caller.Caller) (Customer, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateCustomerRequest, c caller.Caller) (Customer, error)
	GetByID(ctx context.Context, id snowflake.ID, c caller.Caller) (Customer, error)
	List(ctx context.Context, req ListCustomerRequest, c caller.Caller) (ListCustomerResponse, error)
}

var (
	ErrNotFound    = ierr.Sentinel("customer_not_found", ierr.ErrNotFound)
	ErrInvalidName = ierr.Sentinel("invalid_name", ierr.ErrValidation)
)
