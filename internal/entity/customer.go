package entity

import "github.com/uptrace/bun"

// Customer owns zero or more orders; deleting it removes them.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID          int64  `bun:",pk,autoincrement"`
	Name        string `bun:"name,notnull"`
	PhoneNumber string `bun:"phone_number,notnull"`
}
