package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/database/dbtest"
	"github.com/Additional-Code/ordertrack/internal/entity"
)

func TestSQLiteBuildsSchemaFromModels(t *testing.T) {
	conns := dbtest.Open(t)
	ctx := context.Background()
	cfg := config.Config{Database: config.Database{Driver: "sqlite"}}

	m, err := New(cfg, conns, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, m.Down(ctx, 0, true))
	_, err = conns.Writer.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	require.Error(t, err, "tables are dropped")

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "up is repeatable")
	count, err := conns.Writer.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestGooseDialect(t *testing.T) {
	for driver, want := range map[string]string{"postgres": "postgres", "pg": "postgres", "mysql": "mysql", "sqlite": "sqlite3"} {
		got, err := gooseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := gooseDialect("oracle")
	assert.Error(t, err)
}
