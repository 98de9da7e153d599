package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"gorm.io/gorm"
)

type AppendRequest struct {
	BeraterID  snowflake.ID
	TargetType TargetType
	TargetID   snowflake.ID
	ActorID    snowflake.ID
	Action     Action
	Changes    Changes
	Metadata   map[string]any
}

type ListRequest struct {
	BeraterID  snowflake.ID
	TargetType TargetType
	TargetID   snowflake.ID
	Action     Action
}

type Service interface {
	// Append writes one entry inside tx. Unchanged fields are dropped.
	Append(ctx context.Context, tx *gorm.DB, req AppendRequest) (*AuditLog, error)
	List(ctx context.Context, req ListRequest) ([]AuditLog, error)
	ListWith(ctx context.Context, db *gorm.DB, req ListRequest) ([]AuditLog, error)
}

var (
	ErrInvalidAction  = ierr.Sentinel("invalid_action", ierr.ErrValidation)
	ErrInvalidTarget  = ierr.Sentinel("invalid_target", ierr.ErrValidation)
	ErrInvalidBerater = ierr.Sentinel("invalid_berater", ierr.ErrValidation)
)
