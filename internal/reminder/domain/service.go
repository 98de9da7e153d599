package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/caller"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
)

type CreateReminderRequest struct {
	ContractID snowflake.ID `validate:"required"`
	DueAt      time.Time    `validate:"required"`
	Note       string       `validate:"max=2000"`
}

type Service interface {
	Create(ctx context.Context, req CreateReminderRequest, c caller.Caller) (Reminder, error)
	ListByContract(ctx context.Context, contractID snowflake.ID, c caller.Caller) ([]Reminder, error)
}

var ErrContractNotFound = ierr.Sentinel("reminder_contract_not_found", ierr.ErrNotFound)
