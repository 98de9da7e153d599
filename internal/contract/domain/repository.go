package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	BeraterID  snowflake.ID
	Statuses   []Status
	SupplierID *snowflake.ID
	CustomerID *snowflake.ID
	MeterID    *snowflake.ID
	StartFrom  *time.Time
	StartTo    *time.Time
	Search     string
	Page       pagination.Pagination
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	Update(ctx context.Context, db *gorm.DB, contract *Contract) error
	Delete(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*Contract, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*Contract, error)
	// FindActiveByMeter returns the active contract on the meter other than
	// excludeID, or nil.
	FindActiveByMeter(ctx context.Context, db *gorm.DB, meterID, excludeID snowflake.ID) (*Contract, error)
	// FindLastClosedByMeter returns the ended or archived contract with the
	// latest end date on the meter other than excludeID, or nil.
	FindLastClosedByMeter(ctx context.Context, db *gorm.DB, meterID, excludeID snowflake.ID) (*Contract, error)
	NumberExists(ctx context.Context, db *gorm.DB, beraterID snowflake.ID, number string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Contract, error)
}
