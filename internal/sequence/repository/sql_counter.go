package repository

import (
	"context"
	"time"

	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/smallbiznis/contractdesk/internal/sequence/domain"
	"gorm.io/gorm"
)

// sqlCounter increments contract_counters inside the caller's transaction so
// a rolled back contract insert also rolls back its number.
type sqlCounter struct{}

func NewSQLCounter() domain.Counter {
	return &sqlCounter{}
}

func (c *sqlCounter) Increment(ctx context.Context, db *gorm.DB, scope domain.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if db.Dialector.Name() == "mysql" {
		return c.incrementMySQL(ctx, db, scope.Key(), now)
	}

	var value int64
	err := db.WithContext(ctx).Raw(`
		INSERT INTO contract_counters (scope, value, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (scope) DO UPDATE
		SET value = contract_counters.value + 1,
			updated_at = excluded.updated_at
		RETURNING value
	`, scope.Key(), now, now).Scan(&value).Error
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("failed to increment contract counter %s", scope.Key()).
			Mark(ierr.ErrDatabase)
	}
	return value, nil
}

// incrementMySQL relies on LAST_INSERT_ID(expr) being session scoped.
func (c *sqlCounter) incrementMySQL(ctx context.Context, db *gorm.DB, key string, now time.Time) (int64, error) {
	err := db.WithContext(ctx).Exec(`
		INSERT INTO contract_counters (scope, value, created_at, updated_at)
		VALUES (?, LAST_INSERT_ID(1), ?, ?)
		ON DUPLICATE KEY UPDATE
			value = LAST_INSERT_ID(value + 1),
			updated_at = VALUES(updated_at)
	`, key, now, now).Error
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("failed to increment contract counter %s", key).
			Mark(ierr.ErrDatabase)
	}

	var value int64
	if err := db.WithContext(ctx).Raw(`SELECT LAST_INSERT_ID()`).Scan(&value).Error; err != nil {
		return 0, ierr.WithError(err).
			WithHint("failed to read contract counter").
			Mark(ierr.ErrDatabase)
	}
	return value, nil
}
