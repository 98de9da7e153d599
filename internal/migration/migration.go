package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/contractdesk/internal/audit/domain"
	contractdomain "github.com/smallbiznis/contractdesk/internal/contract/domain"
	customerdomain "github.com/smallbiznis/contractdesk/internal/customer/domain"
	meterdomain "github.com/smallbiznis/contractdesk/internal/meter/domain"
	occupancydomain "github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	reminderdomain "github.com/smallbiznis/contractdesk/internal/reminder/domain"
	sequencedomain "github.com/smallbiznis/contractdesk/internal/sequence/domain"
	"github.com/smallbiznis/contractdesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// openHistoryIndex allows one open occupancy per meter. MySQL has no partial
// indexes and relies on the meter row lock alone.
const openHistoryIndex = "CREATE UNIQUE INDEX IF NOT EXISTS ux_meter_histories_open ON meter_histories (meter_id) WHERE end_date IS NULL"

// Models lists every table the engine owns.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&meterdomain.Meter{},
		&contractdomain.Contract{},
		&occupancydomain.MeterHistory{},
		&auditdomain.AuditLog{},
		&reminderdomain.Reminder{},
		&sequencedomain.ContractCounter{},
	}
}

// Apply brings the schema up to date. Postgres runs the embedded SQL
// migrations; the other dialects are created from the gorm models.
func Apply(conn *gorm.DB, dialect string, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dialect != db.DialectPostgres {
		log.Info("creating schema from models", zap.String("dialect", dialect))
		if err := conn.AutoMigrate(Models()...); err != nil {
			return err
		}
		if dialect == db.DialectSQLite {
			return conn.Exec(openHistoryIndex).Error
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("schema migrations applied")
	return nil
}

// RunMigrations applies every pending postgres migration.
func RunMigrations(sqlDB *sql.DB) error {
	migrator, err := newMigrator(sqlDB)
	if err != nil {
		return err
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Rollback reverts the given number of migrations.
func Rollback(sqlDB *sql.DB, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	migrator, err := newMigrator(sqlDB)
	if err != nil {
		return err
	}
	if err := migrator.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}

// Version reports the applied migration version.
func Version(sqlDB *sql.DB) (uint, bool, error) {
	migrator, err := newMigrator(sqlDB)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrator(sqlDB *sql.DB) (*migrate.Migrate, error) {
	if sqlDB == nil {
		return nil, errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return nil, err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}

// Source exposes the embedded migrations as a golang-migrate source.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	driver, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return driver, nil
}
