package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/ordertrack/internal/cache"
	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/database"
	"github.com/Additional-Code/ordertrack/internal/logger"
	"github.com/Additional-Code/ordertrack/internal/messaging"
	"github.com/Additional-Code/ordertrack/internal/observability"
	repositorycustomer "github.com/Additional-Code/ordertrack/internal/repository/customer"
	repositoryorder "github.com/Additional-Code/ordertrack/internal/repository/order"
	repositorytrackingevent "github.com/Additional-Code/ordertrack/internal/repository/trackingevent"
	grpcserver "github.com/Additional-Code/ordertrack/internal/server/grpc"
	httpserver "github.com/Additional-Code/ordertrack/internal/server/http"
	servicecustomer "github.com/Additional-Code/ordertrack/internal/service/customer"
	serviceorder "github.com/Additional-Code/ordertrack/internal/service/order"
	transporthttp "github.com/Additional-Code/ordertrack/internal/transport/http"
	"github.com/Additional-Code/ordertrack/internal/worker"
	workerorder "github.com/Additional-Code/ordertrack/internal/worker/order"
)

// Infra provides configuration, logging and the storage/messaging backends.
var Infra = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
)

// Core adds repositories and services on top of Infra.
var Core = fx.Options(
	Infra,
	repositorycustomer.Module,
	repositoryorder.Module,
	repositorytrackingevent.Module,
	serviceorder.Module,
	servicecustomer.Module,
)

// API wires the HTTP and gRPC transports on top of the core modules.
var API = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes background worker processing. It needs no database.
var Worker = fx.Options(
	config.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring.
var Module = API
