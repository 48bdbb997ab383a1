package dto

import (
	"encoding/json"
	"time"

	"github.com/Additional-Code/ordertrack/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID             int64             `json:"id"`
	TrackingNumber string            `json:"tracking_number"`
	Customer       *CustomerResponse `json:"customer"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// OrderRequest is the writable subset of an order. Absent fields stay nil.
type OrderRequest struct {
	TrackingNumber *string `json:"tracking_number" form:"tracking_number"`
	CustomerID     *int64  `json:"customer_id" form:"customer_id"`
	Status         *string `json:"status" form:"status"`

	nulls []string
}

var orderRequestFields = []string{"tracking_number", "customer_id", "status"}

// UnmarshalJSON decodes the request and remembers fields sent as an explicit null,
// which would otherwise be indistinguishable from absent ones.
func (r *OrderRequest) UnmarshalJSON(data []byte) error {
	type plain OrderRequest
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded.nulls = nil
	for _, name := range orderRequestFields {
		if v, ok := raw[name]; ok && v == nil {
			decoded.nulls = append(decoded.nulls, name)
		}
	}

	*r = OrderRequest(decoded)
	return nil
}

// NullField returns the first writable field that was sent as null.
func (r OrderRequest) NullField() (string, bool) {
	if len(r.nulls) == 0 {
		return "", false
	}
	return r.nulls[0], true
}

// FromOrder converts an order entity, embedding its customer when loaded.
func FromOrder(order *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:             order.ID,
		TrackingNumber: order.TrackingNumber,
		Status:         order.Status.String(),
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	if order.Customer != nil {
		c := FromCustomer(order.Customer)
		resp.Customer = &c
	}
	return resp
}

// FromOrders converts a slice of orders.
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}
