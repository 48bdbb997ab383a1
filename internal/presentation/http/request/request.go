// Package request extracts typed values from echo requests.
package request

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/ordertrack/pkg/errorbank"
)

// ID parses the named path parameter as a positive integer identifier.
func ID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.NotFound("Not found.", errorbank.WithDetail(name, c.Param(name)))
	}
	return id, nil
}

// OptionalInt64 parses a query parameter; an absent or empty parameter yields nil.
func OptionalInt64(c echo.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errorbank.BadRequest("Enter a number.", errorbank.WithField(name), errorbank.WithCause(err))
	}
	return &v, nil
}

// OptionalString returns a query parameter when it is present and non-empty.
func OptionalString(c echo.Context, name string) *string {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	return &raw
}

// Ordering splits the ordering query parameter into its comma separated fields.
func Ordering(c echo.Context) []string {
	raw := c.QueryParam("ordering")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
