package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, meter *Meter) error
	FindByID(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*Meter, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*Meter, error)
	FindByNumber(ctx context.Context, db *gorm.DB, meterNumber string) (*Meter, error)
	SetOccupant(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID *snowflake.ID, now time.Time) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Meter, error)
}

type ListFilter struct {
	BeraterID snowflake.ID
	MeterType MeterType
	Search    string
	Occupied  *bool
	PageToken string
	PageSize  int
}
