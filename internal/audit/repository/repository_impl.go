package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{}).
		Where("berater_id = ?", filter.BeraterID)

	if filter.TargetType != "" {
		stmt = stmt.Where("target_type = ?", filter.TargetType)
	}
	if len(filter.TargetIDs) > 0 {
		stmt = stmt.Where("target_id IN ?", filter.TargetIDs)
	}
	if filter.Action != "" {
		stmt = stmt.Where("action = ?", filter.Action)
	}

	if err := stmt.Order("id asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) DeleteByTarget(ctx context.Context, db *gorm.DB, beraterID snowflake.ID, targetType domain.TargetType, targetID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("berater_id = ? AND target_type = ? AND target_id = ?", beraterID, targetType, targetID).
		Delete(&domain.AuditLog{}).Error
}
