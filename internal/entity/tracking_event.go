package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderTrackingEvent records a single accepted status transition. Rows are append-only.
type OrderTrackingEvent struct {
	bun.BaseModel `bun:"table:order_tracking_events,alias:e"`

	ID        int64       `bun:",pk,autoincrement"`
	OrderID   int64       `bun:"order_id,notnull"`
	Status    OrderStatus `bun:"status,notnull"`
	Comment   *string     `bun:"comment"`
	Timestamp time.Time   `bun:"timestamp,notnull"`
}
