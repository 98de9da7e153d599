package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/attachment"
	"github.com/smallbiznis/contractdesk/internal/audit"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/config"
	"github.com/smallbiznis/contractdesk/internal/contract"
	contractdomain "github.com/smallbiznis/contractdesk/internal/contract/domain"
	"github.com/smallbiznis/contractdesk/internal/customer"
	"github.com/smallbiznis/contractdesk/internal/meter"
	"github.com/smallbiznis/contractdesk/internal/migration"
	"github.com/smallbiznis/contractdesk/internal/observability"
	"github.com/smallbiznis/contractdesk/internal/occupancy"
	"github.com/smallbiznis/contractdesk/internal/reminder"
	"github.com/smallbiznis/contractdesk/internal/sequence"
	"github.com/smallbiznis/contractdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Collaborators
		attachment.Module,
		sequence.Module,
		occupancy.Module,
		audit.Module,

		// Functional Domains
		meter.Module,
		customer.Module,
		reminder.Module,
		contract.Module,

		fx.Invoke(announce),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func announce(_ contractdomain.Service, cfg config.Config, rules *config.ContractRulesHolder, log *zap.Logger) {
	current := rules.Get()
	log.Info("contract engine ready",
		zap.String("database", cfg.DBType),
		zap.String("counter_backend", cfg.Counter.Backend),
		zap.String("attachment_storage", cfg.Attachments.Backend),
		zap.String("number_prefix", current.NumberPrefix),
		zap.String("number_format", current.NumberFormat),
	)
}
