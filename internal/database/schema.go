package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/ordertrack/internal/entity"
)

// CreateSchema creates the tables straight from the bun models. The goose migrations remain
// the source of truth for Postgres; this path serves SQLite deployments and tests.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []struct {
		model       any
		foreignKeys []string
	}{
		{model: (*entity.Customer)(nil)},
		{
			model:       (*entity.Order)(nil),
			foreignKeys: []string{`("customer_id") REFERENCES "customers" ("id") ON DELETE CASCADE`},
		},
		{
			model:       (*entity.OrderTrackingEvent)(nil),
			foreignKeys: []string{`("order_id") REFERENCES "orders" ("id") ON DELETE CASCADE`},
		},
	}

	for _, table := range tables {
		q := db.NewCreateTable().Model(table.model).IfNotExists()
		for _, fk := range table.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{model: (*entity.Order)(nil), name: "orders_customer_id_idx", columns: []string{"customer_id"}},
		{model: (*entity.Order)(nil), name: "orders_status_idx", columns: []string{"status"}},
		{model: (*entity.OrderTrackingEvent)(nil), name: "order_tracking_events_order_id_idx", columns: []string{"order_id"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
