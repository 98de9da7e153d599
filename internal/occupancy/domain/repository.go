package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *MeterHistory) error
	ListByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) ([]MeterHistory, error)
	FindOpenByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*MeterHistory, error)
	FindOpenByContract(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (*MeterHistory, error)
	// Close sets the end date of an open entry. Closed entries are left as is.
	Close(ctx context.Context, db *gorm.DB, id snowflake.ID, endDate time.Time) (bool, error)
}
