package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/reminder/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reminder *domain.Reminder) error {
	return db.WithContext(ctx).Create(reminder).Error
}

func (r *repo) ListByContract(ctx context.Context, db *gorm.DB, beraterID, contractID snowflake.ID) ([]domain.Reminder, error) {
	var reminders []domain.Reminder
	err := db.WithContext(ctx).Raw(
		`SELECT id, berater_id, contract_id, due_at, note, created_by, created_at
		FROM reminders
		WHERE berater_id = ? AND contract_id = ?
		ORDER BY due_at ASC, id ASC`,
		beraterID, contractID,
	).Scan(&reminders).Error
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

func (r *repo) DeleteByContract(ctx context.Context, db *gorm.DB, beraterID, contractID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM reminders WHERE berater_id = ? AND contract_id = ?`,
		beraterID, contractID,
	)
	return res.RowsAffected, res.Error
}
