package dto

import "github.com/Additional-Code/ordertrack/internal/entity"

// CustomerResponse represents a customer in API payloads.
type CustomerResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// CustomerRequest carries customer fields for create and update calls.
type CustomerRequest struct {
	Name        *string `json:"name" form:"name"`
	PhoneNumber *string `json:"phone_number" form:"phone_number"`
}

func FromCustomer(c *entity.Customer) CustomerResponse {
	return CustomerResponse{ID: c.ID, Name: c.Name, PhoneNumber: c.PhoneNumber}
}

func FromCustomers(customers []entity.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		out = append(out, FromCustomer(&customers[i]))
	}
	return out
}
