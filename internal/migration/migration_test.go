package migration

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsAreReadable(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, name, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "core_schema", name)
}

func TestApplyCreatesSchemaFromModels(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Apply(conn, "sqlite", zap.NewNop()))
	for _, table := range []string{"customers", "meters", "contracts", "meter_histories", "audit_logs", "reminders", "contract_counters"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("contracts", "ux_contracts_berater_number"))
	assert.True(t, conn.Migrator().HasIndex("meter_histories", "ux_meter_histories_open"))

	// idempotent
	require.NoError(t, Apply(conn, "sqlite", zap.NewNop()))
}

func TestApplyRequiresConnection(t *testing.T) {
	assert.Error(t, Apply(nil, "postgres", zap.NewNop()))
}
