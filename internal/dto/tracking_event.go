package dto

import (
	"time"

	"github.com/Additional-Code/ordertrack/internal/entity"
)

// TrackingEventResponse is the read-only view of an order tracking event.
type TrackingEventResponse struct {
	ID        int64     `json:"id"`
	Order     int64     `json:"order"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Comment   *string   `json:"comment"`
}

func FromTrackingEvent(e *entity.OrderTrackingEvent) TrackingEventResponse {
	return TrackingEventResponse{
		ID:        e.ID,
		Order:     e.OrderID,
		Status:    e.Status.String(),
		Timestamp: e.Timestamp,
		Comment:   e.Comment,
	}
}

func FromTrackingEvents(events []entity.OrderTrackingEvent) []TrackingEventResponse {
	out := make([]TrackingEventResponse, 0, len(events))
	for i := range events {
		out = append(out, FromTrackingEvent(&events[i]))
	}
	return out
}
