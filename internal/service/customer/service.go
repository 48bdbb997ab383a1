package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/ordertrack/internal/entity"
	repo "github.com/Additional-Code/ordertrack/internal/repository/customer"
	ordersvc "github.com/Additional-Code/ordertrack/internal/service/order"
	"github.com/Additional-Code/ordertrack/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/ordertrack/service/customer")

const (
	maxNameLength  = 255
	maxPhoneLength = 20
)

// Changes lists the customer fields an update touches.
type Changes struct {
	Name        *string
	PhoneNumber *string
}

// Service manages customers. Removing a customer removes its orders.
type Service struct {
	repo   *repo.Repository
	orders *ordersvc.Service
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Orders     *ordersvc.Service
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: p.Repository, orders: p.Orders, logger: logger}
}

// Create validates and stores a customer.
func (s *Service) Create(ctx context.Context, customer *entity.Customer) error {
	if customer == nil {
		return errorbank.BadRequest("customer payload is required")
	}
	customer.Name = strings.TrimSpace(customer.Name)
	customer.PhoneNumber = strings.TrimSpace(customer.PhoneNumber)
	if err := validate(customer); err != nil {
		return err
	}

	ctx, span := serviceTracer.Start(ctx, "CustomerService.Create")
	defer span.End()

	if err := s.repo.Create(ctx, customer); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to create customer", errorbank.WithCause(err))
	}
	s.logger.Info("customer created", zap.Int64("id", customer.ID))
	return nil
}

// Get fetches a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Customer, error) {
	ctx, span := serviceTracer.Start(ctx, "CustomerService.Get", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	customer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("customer not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load customer", errorbank.WithCause(err))
	}
	return customer, nil
}

// List returns a page of customers and the total number of matches.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Customer, int, error) {
	customers, count, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list customers", errorbank.WithCause(err))
	}
	return customers, count, nil
}

// Update applies changes to a customer. Cached orders embed the customer, so they are evicted.
func (s *Service) Update(ctx context.Context, id int64, changes Changes) (*entity.Customer, error) {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Name != nil {
		customer.Name = strings.TrimSpace(*changes.Name)
	}
	if changes.PhoneNumber != nil {
		customer.PhoneNumber = strings.TrimSpace(*changes.PhoneNumber)
	}
	if err := validate(customer); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CustomerService.Update", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	if err := s.repo.Update(ctx, customer); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update customer", errorbank.WithCause(err))
	}

	orderIDs, err := s.repo.OrderIDs(ctx, id)
	if err != nil {
		s.logger.Warn("list customer orders for cache eviction", zap.Int64("id", id), zap.Error(err))
	} else if s.orders != nil {
		s.orders.Evict(ctx, orderIDs...)
	}
	return customer, nil
}

// Delete removes a customer together with its orders and their tracking events.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CustomerService.Delete", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	orderIDs, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("customer not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete customer", errorbank.WithCause(err))
	}
	if s.orders != nil {
		s.orders.Evict(ctx, orderIDs...)
	}
	s.logger.Info("customer deleted", zap.Int64("id", id), zap.Int("orders", len(orderIDs)))
	return nil
}

func validate(c *entity.Customer) error {
	switch {
	case c.Name == "":
		return errorbank.BadRequest("name is required", errorbank.WithField("name"))
	case len(c.Name) > maxNameLength:
		return errorbank.BadRequest(fmt.Sprintf("name must be at most %d characters", maxNameLength), errorbank.WithField("name"))
	case c.PhoneNumber == "":
		return errorbank.BadRequest("phone_number is required", errorbank.WithField("phone_number"))
	case len(c.PhoneNumber) > maxPhoneLength:
		return errorbank.BadRequest(fmt.Sprintf("phone_number must be at most %d characters", maxPhoneLength), errorbank.WithField("phone_number"))
	}
	return nil
}
