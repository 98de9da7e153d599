package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TargetType string

const (
	TargetContract TargetType = "contract"
	TargetCustomer TargetType = "customer"
)

type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionStatusChanged Action = "status_changed"
	ActionDeleted       Action = "deleted"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionStatusChanged, ActionDeleted:
		return true
	default:
		return false
	}
}

// FieldChange is the before/after pair of a single audited field.
type FieldChange struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Changes maps a field name to its change.
type Changes map[string]FieldChange

// AuditLog is an immutable entry. Entries for a target are ordered by id,
// which is a time-ordered snowflake.
type AuditLog struct {
	ID         snowflake.ID                `json:"id" gorm:"primaryKey"`
	BeraterID  snowflake.ID                `json:"berater_id" gorm:"not null;index:idx_audit_logs_target,priority:1"`
	TargetType TargetType                  `json:"target_type" gorm:"type:text;not null;index:idx_audit_logs_target,priority:2"`
	TargetID   snowflake.ID                `json:"target_id" gorm:"not null;index:idx_audit_logs_target,priority:3"`
	ActorID    snowflake.ID                `json:"actor_id" gorm:"not null"`
	Action     Action                      `json:"action" gorm:"type:text;not null"`
	Changes    datatypes.JSONType[Changes] `json:"changes"`
	Metadata   datatypes.JSONMap           `json:"metadata,omitempty"`
	CreatedAt  time.Time                   `json:"created_at" gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_logs" }
