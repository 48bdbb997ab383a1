package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusPicked    OrderStatus = "PICKED"
	StatusDelivered OrderStatus = "DELIVERED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []OrderStatus{StatusCreated, StatusPicked, StatusDelivered}

// Valid reports whether s is one of the enumerated statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusPicked, StatusDelivered:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	return string(s)
}

// Order is a customer shipment identified by a unique tracking number.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID             int64       `bun:",pk,autoincrement"`
	TrackingNumber string      `bun:"tracking_number,notnull,unique"`
	CustomerID     int64       `bun:"customer_id,notnull"`
	Customer       *Customer   `bun:"rel:belongs-to,join:customer_id=id"`
	Status         OrderStatus `bun:"status,notnull,default:'CREATED'"`
	CreatedAt      time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time   `bun:"updated_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
