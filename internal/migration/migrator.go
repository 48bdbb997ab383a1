package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	migrations "github.com/Additional-Code/ordertrack/db/migrations"
	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/database"
	"github.com/Additional-Code/ordertrack/internal/entity"
	ordertracklog "github.com/Additional-Code/ordertrack/internal/logger"
)

// Module provides the Migrator.
var Module = fx.Provide(New)

// Migrator wraps goose operations. Only Postgres runs the embedded SQL; other dialects
// build the schema from the bun models.
type Migrator struct {
	db      *bun.DB
	driver  string
	logger  *zap.Logger
	useSQL  bool
	dirName string
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	m := &Migrator{
		db:      conns.Writer,
		driver:  cfg.Database.Driver,
		logger:  logger,
		useSQL:  dialect == "postgres",
		dirName: migrations.Dir,
	}
	if !m.useSQL {
		return m, nil
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(ordertracklog.NewPrintf(logger, "goose", zapcore.InfoLevel))
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}
	return m, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if !m.useSQL {
		if err := database.CreateSchema(ctx, m.db); err != nil {
			return err
		}
		m.logger.Info("schema created from models", zap.String("driver", m.driver))
		return nil
	}

	if err := goose.UpContext(ctx, m.db.DB, m.dirName); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")

			return nil
		}
		return err
	}

	m.logger.Info("migrations applied")

	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if !m.useSQL {
		return m.dropModels(ctx)
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, m.dirName, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))

		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, m.dirName); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))

	return nil
}

// Version reports the current goose version; model-built schemas report 0.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if !m.useSQL {
		return 0, nil
	}
	return goose.GetDBVersionContext(ctx, m.db.DB)
}

func (m *Migrator) dropModels(ctx context.Context) error {
	models := []any{
		(*entity.OrderTrackingEvent)(nil),
		(*entity.Order)(nil),
		(*entity.Customer)(nil),
	}
	for _, model := range models {
		if _, err := m.db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	m.logger.Info("schema dropped", zap.String("driver", m.driver))
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
