package migration

import (
	"github.com/smallbiznis/contractdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		log = log.Named("migration")
		if !cfg.DBAutoMigrate {
			log.Info("schema migrations skipped", zap.String("reason", "DATABASE_AUTO_MIGRATE disabled"))
			return nil
		}
		return Apply(conn, cfg.DBType, log)
	}),
)
