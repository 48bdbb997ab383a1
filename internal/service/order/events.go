package order

import (
	"encoding/json"
	"time"

	"github.com/Additional-Code/ordertrack/internal/entity"
)

// Message types published on the order topic.
const (
	MessageOrderCreated       = "order.created"
	MessageOrderStatusChanged = "order.status_changed"
)

// Envelope wraps every payload published on the order topic.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderCreatedEvent is emitted when a new order is persisted.
type OrderCreatedEvent struct {
	ID             int64              `json:"id"`
	TrackingNumber string             `json:"tracking_number"`
	CustomerID     int64              `json:"customer_id"`
	Status         entity.OrderStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
}

// StatusChangedEvent is emitted after a status transition has been committed.
type StatusChangedEvent struct {
	OrderID        int64              `json:"order_id"`
	TrackingNumber string             `json:"tracking_number"`
	From           entity.OrderStatus `json:"from"`
	To             entity.OrderStatus `json:"to"`
	EventID        int64              `json:"event_id"`
	Timestamp      time.Time          `json:"timestamp"`
}

func newEnvelope(kind string, at time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, OccurredAt: at, Payload: raw})
}
