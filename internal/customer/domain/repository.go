package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, beraterID snowflake.ID, search string, page pagination.Pagination) ([]*Customer, error)
}
