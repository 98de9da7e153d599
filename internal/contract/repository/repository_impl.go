package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/contractdesk/internal/contract/domain"
	"github.com/smallbiznis/contractdesk/internal/lifecycle"
	"github.com/smallbiznis/contractdesk/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Create(contract).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).
		Model(&domain.Contract{}).
		Where("id = ? AND berater_id = ?", contract.ID, contract.BeraterID).
		Updates(map[string]any{
			"supplier_id":              contract.SupplierID,
			"supplier_contract_number": contract.SupplierContractNumber,
			"start_date":               contract.StartDate,
			"duration_months":          contract.DurationMonths,
			"end_date":                 contract.EndDate,
			"status":                   contract.Status,
			"notes":                    contract.Notes,
			"attachments":              contract.Attachments,
			"updated_at":               contract.UpdatedAt,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM contracts WHERE id = ? AND berater_id = ?`,
		id, beraterID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*domain.Contract, error) {
	return first(db.WithContext(ctx).Where("id = ? AND berater_id = ?", id, beraterID))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*domain.Contract, error) {
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND berater_id = ?", id, beraterID))
}

func (r *repo) FindActiveByMeter(ctx context.Context, db *gorm.DB, meterID, excludeID snowflake.ID) (*domain.Contract, error) {
	stmt := db.WithContext(ctx).
		Where("meter_id = ? AND status = ?", meterID, domain.StatusActive)
	if excludeID != 0 {
		stmt = stmt.Where("id <> ?", excludeID)
	}
	return first(stmt.Order("start_date desc, id desc"))
}

func (r *repo) FindLastClosedByMeter(ctx context.Context, db *gorm.DB, meterID, excludeID snowflake.ID) (*domain.Contract, error) {
	stmt := db.WithContext(ctx).
		Where("meter_id = ? AND status IN ?", meterID, lifecycle.ClosedStatuses())
	if excludeID != 0 {
		stmt = stmt.Where("id <> ?", excludeID)
	}
	return first(stmt.Order("end_date desc, id desc"))
}

func (r *repo) NumberExists(ctx context.Context, db *gorm.DB, beraterID snowflake.ID, number string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM contracts WHERE berater_id = ? AND contract_number = ?`,
		beraterID, number,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Contract, error) {
	opts := []option.QueryOption{
		option.WithSearch(strings.TrimSpace(filter.Search), "contract_number", "supplier_contract_number", "notes"),
	}
	if len(filter.Statuses) > 0 {
		statuses := lo.Uniq(lo.Map(filter.Statuses, func(s domain.Status, _ int) string { return s.String() }))
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.IN, Value: statuses}))
	}
	if filter.SupplierID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "supplier_id", Operator: option.EQ, Value: *filter.SupplierID}))
	}
	if filter.CustomerID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "customer_id", Operator: option.EQ, Value: *filter.CustomerID}))
	}
	if filter.MeterID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "meter_id", Operator: option.EQ, Value: *filter.MeterID}))
	}
	if filter.StartFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "start_date", Operator: option.GTE, Value: *filter.StartFrom}))
	}
	if filter.StartTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "start_date", Operator: option.LTE, Value: *filter.StartTo}))
	}
	opts = append(opts,
		option.WithSortBy(option.SortBy{Field: "created_at", Direction: "desc"}),
		option.ApplyPagination(filter.Page),
	)

	stmt := db.WithContext(ctx).Model(&domain.Contract{}).Where("berater_id = ?", filter.BeraterID)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var contracts []*domain.Contract
	if err := stmt.Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func first(stmt *gorm.DB) (*domain.Contract, error) {
	var contract domain.Contract
	if err := stmt.First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}
