package order

import (
	"fmt"

	"github.com/Additional-Code/ordertrack/internal/entity"
)

// transitions maps each status to the statuses it may move to. DELIVERED is terminal.
var transitions = map[entity.OrderStatus][]entity.OrderStatus{
	entity.StatusCreated:   {entity.StatusPicked},
	entity.StatusPicked:    {entity.StatusDelivered},
	entity.StatusDelivered: {},
}

// CanTransition reports whether an order in current may move to requested.
// Unknown statuses and resubmitting the current status are never allowed.
func CanTransition(current, requested entity.OrderStatus) bool {
	for _, next := range transitions[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from current in one step.
func AllowedTransitions(current entity.OrderStatus) []entity.OrderStatus {
	allowed := transitions[current]
	out := make([]entity.OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

// StatusComment is the comment stored on the tracking event of an accepted transition.
func StatusComment(from, to entity.OrderStatus) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}
