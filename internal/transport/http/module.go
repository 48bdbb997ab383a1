package http

import (
	"go.uber.org/fx"

	customertransport "github.com/Additional-Code/ordertrack/internal/transport/http/customer"
	ordertransport "github.com/Additional-Code/ordertrack/internal/transport/http/order"
	eventtransport "github.com/Additional-Code/ordertrack/internal/transport/http/trackingevent"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	customertransport.Module,
	ordertransport.Module,
	eventtransport.Module,
)
