package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	meterdomain "github.com/smallbiznis/contractdesk/internal/meter/domain"
	"github.com/smallbiznis/contractdesk/pkg/db/option"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() meterdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *meterdomain.Meter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meters (id, berater_id, meter_number, meter_type, location, current_customer_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.BeraterID,
		m.MeterNumber,
		m.MeterType,
		m.Location,
		m.CurrentCustomerID,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*meterdomain.Meter, error) {
	return first(db.WithContext(ctx).Where("berater_id = ? AND id = ?", beraterID, id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*meterdomain.Meter, error) {
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("berater_id = ? AND id = ?", beraterID, id))
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, meterNumber string) (*meterdomain.Meter, error) {
	return first(db.WithContext(ctx).Where("meter_number = ?", meterNumber))
}

func (r *repo) SetOccupant(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID *snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meters SET current_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerID,
		now,
		id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter meterdomain.ListFilter) ([]*meterdomain.Meter, error) {
	opts := []option.QueryOption{
		option.WithSearch(filter.Search, "meter_number", "location"),
	}
	if filter.MeterType != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "meter_type", Operator: option.EQ, Value: filter.MeterType}))
	}
	if filter.Occupied != nil {
		cond := "current_customer_id IS NULL"
		if *filter.Occupied {
			cond = "current_customer_id IS NOT NULL"
		}
		opts = append(opts, rawCondition(cond))
	}
	opts = append(opts,
		option.WithSortBy(option.SortBy{Field: "created_at", Direction: "desc"}),
		option.ApplyPagination(pagination.Pagination{PageToken: strings.TrimSpace(filter.PageToken), PageSize: filter.PageSize}),
	)

	stmt := db.WithContext(ctx).Model(&meterdomain.Meter{}).Where("berater_id = ?", filter.BeraterID)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var meters []*meterdomain.Meter
	if err := stmt.Find(&meters).Error; err != nil {
		return nil, err
	}
	return meters, nil
}

type rawCondition string

func (c rawCondition) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(string(c))
}

func first(stmt *gorm.DB) (*meterdomain.Meter, error) {
	var meter meterdomain.Meter
	if err := stmt.First(&meter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meter, nil
}
