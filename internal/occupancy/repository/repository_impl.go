package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.MeterHistory) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) ([]domain.MeterHistory, error) {
	var entries []domain.MeterHistory
	err := db.WithContext(ctx).
		Where("meter_id = ?", meterID).
		Order("start_date asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) FindOpenByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*domain.MeterHistory, error) {
	return r.findOpen(ctx, db.Where("meter_id = ?", meterID))
}

func (r *repo) FindOpenByContract(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (*domain.MeterHistory, error) {
	return r.findOpen(ctx, db.Where("contract_id = ?", contractID))
}

func (r *repo) findOpen(ctx context.Context, stmt *gorm.DB) (*domain.MeterHistory, error) {
	var entry domain.MeterHistory
	err := stmt.WithContext(ctx).
		Where("end_date IS NULL").
		Order("start_date desc, id desc").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) Close(ctx context.Context, db *gorm.DB, id snowflake.ID, endDate time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.MeterHistory{}).
		Where("id = ? AND end_date IS NULL", id).
		Update("end_date", endDate)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
