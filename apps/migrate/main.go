package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/smallbiznis/contractdesk/internal/config"
	"github.com/smallbiznis/contractdesk/internal/migration"
	obslogger "github.com/smallbiznis/contractdesk/internal/observability/logger"
	"github.com/smallbiznis/contractdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	command := flag.String("command", "up", "up, down or version")
	steps := flag.Int("steps", 1, "number of migrations to revert with -command=down")
	flag.Parse()

	var runErr error
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
		fx.Provide(config.Load),
		fx.Provide(func(cfg config.Config) obslogger.Config {
			return obslogger.Config{ServiceName: "contractdesk-migrate", Level: cfg.LogLevel, Format: cfg.LogFormat}
		}),
		fx.Provide(obslogger.New),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) {
			runErr = run(conn, cfg, log.Named("migrate"), *command, *steps)
		}),
	)
	if err := app.Start(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = app.Stop(context.Background())

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func run(conn *gorm.DB, cfg config.Config, log *zap.Logger, command string, steps int) error {
	if command == "up" {
		return migration.Apply(conn, cfg.DBType, log)
	}
	if cfg.DBType != db.DialectPostgres {
		return fmt.Errorf("%s is only supported for postgres", command)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	switch command {
	case "down":
		if err := migration.Rollback(sqlDB, steps); err != nil {
			return err
		}
		log.Info("migrations reverted", zap.Int("steps", steps))
	case "version":
		version, dirty, err := migration.Version(sqlDB)
		if err != nil {
			return err
		}
		log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
