package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	BeraterID  snowflake.ID
	TargetType TargetType
	TargetIDs  []snowflake.ID
	Action     Action
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
	DeleteByTarget(ctx context.Context, db *gorm.DB, beraterID snowflake.ID, targetType TargetType, targetID snowflake.ID) error
}
