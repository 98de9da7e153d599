package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reminder *Reminder) error
	ListByContract(ctx context.Context, db *gorm.DB, beraterID, contractID snowflake.ID) ([]Reminder, error)
	DeleteByContract(ctx context.Context, db *gorm.DB, beraterID, contractID snowflake.ID) (int64, error)
}
