package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/ordertrack/internal/cache"
	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/entity"
	"github.com/Additional-Code/ordertrack/internal/messaging"
	customerrepo "github.com/Additional-Code/ordertrack/internal/repository/customer"
	repo "github.com/Additional-Code/ordertrack/internal/repository/order"
	eventrepo "github.com/Additional-Code/ordertrack/internal/repository/trackingevent"
	"github.com/Additional-Code/ordertrack/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/ordertrack/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/ordertrack/service/order")
)

const (
	maxTrackingNumberLength = 100

	// evictionHold keeps an evicted key blocked from read-through fills.
	evictionHold = 10 * time.Second
)

// tombstone marks an evicted order; readers treat it as a miss and may not refill the key.
var tombstone = []byte("evicted")

// Store is the order persistence the service relies on.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, f repo.Filter) ([]entity.Order, int, error)
	TrackingNumberTaken(ctx context.Context, number string, excludeID int64) (bool, error)
	Mutate(ctx context.Context, id int64, fn repo.MutateFunc) (*entity.Order, error)
	Delete(ctx context.Context, id int64) error
}

// CustomerLookup resolves the customer an order points to.
type CustomerLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.Customer, error)
}

// EventReader reads the tracking event log.
type EventReader interface {
	GetByID(ctx context.Context, id int64) (*entity.OrderTrackingEvent, error)
	List(ctx context.Context, f eventrepo.Filter) ([]entity.OrderTrackingEvent, int, error)
}

// Changes lists the order fields an update touches. Nil fields are left unchanged.
type Changes struct {
	TrackingNumber *string
	CustomerID     *int64
	Status         *entity.OrderStatus
}

// Service encapsulates business logic around orders.
type Service struct {
	store       Store
	customers   CustomerLookup
	events      EventReader
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	messaging   messagingConfig
	transitions metric.Int64Counter
	now         func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Customers  *customerrepo.Repository
	Events     *eventrepo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	transitions, err := serviceMeter.Int64Counter("ordertrack.order.transitions",
		metric.WithDescription("Order status transitions by outcome"),
	)
	if err != nil {
		logger.Warn("transition counter unavailable", zap.Error(err))
	}
	return &Service{
		store:       p.Repository,
		customers:   p.Customers,
		events:      p.Events,
		cache:       p.Cache,
		cacheTTL:    p.Config.Cache.DefaultTTL,
		logger:      logger,
		publisher:   p.Publisher,
		transitions: transitions,
		now:         func() time.Time { return time.Now().UTC() },
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.fillCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

// List returns a page of orders and the total number of matches.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Order, int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, errorbank.BadRequest("Select a valid choice. "+f.Status.String()+" is not one of the available choices.",
			errorbank.WithField("status"))
	}

	orders, count, err := s.store.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, 0, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, count, nil
}

// Create validates and persists a new order. The status defaults to CREATED.
func (s *Service) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errorbank.BadRequest("order payload is required")
	}
	order.TrackingNumber = strings.TrimSpace(order.TrackingNumber)
	if order.Status == "" {
		order.Status = entity.StatusCreated
	}
	if !order.Status.Valid() {
		return errorbank.BadRequest("Invalid status value", errorbank.WithField("status"))
	}
	if order.CreatedAt.IsZero() {
		now := s.now()
		order.CreatedAt = now
		order.UpdatedAt = now
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.tracking_number", order.TrackingNumber)))
	defer span.End()

	if err := s.validateTrackingNumber(ctx, order.TrackingNumber, 0); err != nil {
		return err
	}
	customer, err := s.lookupCustomer(ctx, order.CustomerID)
	if err != nil {
		return err
	}

	if err := s.store.Create(ctx, order); err != nil {
		if errors.Is(err, repo.ErrDuplicateTrackingNumber) {
			return duplicateTrackingNumber()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	order.Customer = customer

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}

	s.publish(ctx, order.ID, MessageOrderCreated, order.CreatedAt, OrderCreatedEvent{
		ID:             order.ID,
		TrackingNumber: order.TrackingNumber,
		CustomerID:     order.CustomerID,
		Status:         order.Status,
		CreatedAt:      order.CreatedAt,
	})
	return nil
}

// Update applies changes to an order. A status change is checked against the transition
// policy and recorded as a tracking event; the check, the order write and the event insert
// happen in one transaction with the order row locked.
func (s *Service) Update(ctx context.Context, id int64, changes Changes) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	// Early answer for the common case; the locked re-check in Mutate decides.
	if changes.Status != nil && !CanTransition(existing.Status, *changes.Status) {
		return nil, s.rejectTransition(ctx, id, existing.Status, *changes.Status)
	}

	if changes.TrackingNumber != nil {
		trimmed := strings.TrimSpace(*changes.TrackingNumber)
		changes.TrackingNumber = &trimmed
		if err := s.validateTrackingNumber(ctx, trimmed, id); err != nil {
			return nil, err
		}
	}
	if changes.CustomerID != nil {
		if _, err := s.lookupCustomer(ctx, *changes.CustomerID); err != nil {
			return nil, err
		}
	}

	var (
		event *entity.OrderTrackingEvent
		from  entity.OrderStatus
		order *entity.Order
	)
	order, err = s.store.Mutate(ctx, id, func(order *entity.Order) (*entity.OrderTrackingEvent, error) {
		now := s.now()
		if changes.Status != nil {
			current, requested := order.Status, *changes.Status
			from = current
			if !CanTransition(current, requested) {
				return nil, invalidTransition(current, requested)
			}
			comment := StatusComment(current, requested)
			order.Status = requested
			event = &entity.OrderTrackingEvent{Status: requested, Comment: &comment, Timestamp: now}
		}
		if changes.TrackingNumber != nil {
			order.TrackingNumber = *changes.TrackingNumber
		}
		if changes.CustomerID != nil {
			order.CustomerID = *changes.CustomerID
		}
		order.UpdatedAt = now
		return event, nil
	})
	if err != nil {
		var appErr *errorbank.AppError
		switch {
		case errors.As(err, &appErr):
			if changes.Status != nil {
				return nil, s.rejectTransition(ctx, id, from, *changes.Status)
			}
			return nil, appErr
		case errors.Is(err, repo.ErrNotFound):
			return nil, errorbank.NotFound("order not found")
		case errors.Is(err, repo.ErrDuplicateTrackingNumber):
			return nil, duplicateTrackingNumber()
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
		s.Evict(ctx, order.ID)
	}

	if event != nil {
		s.recordTransition(ctx, from, event.Status, "accepted")
		s.logger.Info("order status changed",
			zap.Int64("id", order.ID),
			zap.String("from", from.String()),
			zap.String("to", event.Status.String()),
			zap.Int64("event_id", event.ID),
		)
		s.publish(ctx, order.ID, MessageOrderStatusChanged, event.Timestamp, StatusChangedEvent{
			OrderID:        order.ID,
			TrackingNumber: order.TrackingNumber,
			From:           from,
			To:             event.Status,
			EventID:        event.ID,
			Timestamp:      event.Timestamp,
		})
	}

	return order, nil
}

// Delete removes the order and its tracking events.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}
	s.Evict(ctx, id)
	return nil
}

// Evict invalidates cached copies of the given orders. Each key holds a tombstone for a
// short while so a read that started before the write cannot put the old row back.
func (s *Service) Evict(ctx context.Context, ids ...int64) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	var failed []int64
	for _, id := range ids {
		if err := s.cache.Set(ctx, CacheKey(id), tombstone, evictionHold); err != nil {
			failed = append(failed, id)
		}
	}
	if len(failed) == 0 {
		return
	}
	keys := make([]string, len(failed))
	for i, id := range failed {
		keys[i] = CacheKey(id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64s("ids", failed), zap.Error(err))
	}
}

// GetEvent fetches a single tracking event.
func (s *Service) GetEvent(ctx context.Context, id int64) (*entity.OrderTrackingEvent, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return nil, errorbank.NotFound("tracking event not found")
		}
		return nil, errorbank.Internal("failed to load tracking event", errorbank.WithCause(err))
	}
	return event, nil
}

// ListEvents returns tracking events newest first.
func (s *Service) ListEvents(ctx context.Context, f eventrepo.Filter) ([]entity.OrderTrackingEvent, int, error) {
	events, count, err := s.events.List(ctx, f)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list tracking events", errorbank.WithCause(err))
	}
	return events, count, nil
}

func (s *Service) validateTrackingNumber(ctx context.Context, number string, excludeID int64) error {
	if number == "" {
		return errorbank.BadRequest("tracking_number is required", errorbank.WithField("tracking_number"))
	}
	if len(number) > maxTrackingNumberLength {
		return errorbank.BadRequest(fmt.Sprintf("tracking_number must be at most %d characters", maxTrackingNumberLength),
			errorbank.WithField("tracking_number"))
	}
	taken, err := s.store.TrackingNumberTaken(ctx, number, excludeID)
	if err != nil {
		return errorbank.Internal("failed to check tracking number", errorbank.WithCause(err))
	}
	if taken {
		return duplicateTrackingNumber()
	}
	return nil
}

func (s *Service) lookupCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	if id <= 0 {
		return nil, errorbank.BadRequest("customer_id is required", errorbank.WithField("customer_id"))
	}
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, customerrepo.ErrNotFound) {
			return nil, errorbank.BadRequest(fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id),
				errorbank.WithField("customer_id"))
		}
		return nil, errorbank.Internal("failed to load customer", errorbank.WithCause(err))
	}
	return customer, nil
}

func (s *Service) rejectTransition(ctx context.Context, id int64, from, to entity.OrderStatus) error {
	s.recordTransition(ctx, from, to, "rejected")
	s.logger.Info("order status transition rejected",
		zap.Int64("id", id),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	return invalidTransition(from, to)
}

func (s *Service) recordTransition(ctx context.Context, from, to entity.OrderStatus, outcome string) {
	if s.transitions == nil {
		return
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
		attribute.String("outcome", outcome),
	))
}

func (s *Service) publish(ctx context.Context, orderID int64, kind string, at time.Time, payload any) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	body, err := newEnvelope(kind, at, payload)
	if err != nil {
		s.logger.Error("marshal order message", zap.String("type", kind), zap.Error(err))
		return
	}
	msg := messaging.Message{
		Key:     []byte(fmt.Sprintf("order-%d", orderID)),
		Value:   body,
		Headers: map[string]string{messaging.HeaderType: kind},
		Time:    at,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("publish order message", zap.String("type", kind), zap.String("topic", s.messaging.topic), zap.Error(err))
	}
}

// CacheKey is the cache key holding the order with the given id.
func CacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, CacheKey(id))
	if err != nil {
		return nil, err
	}
	if string(bytes) == string(tombstone) {
		return nil, cache.ErrCacheMiss
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, CacheKey(order.ID), bytes, s.cacheTTL)
}

// fillCache populates a read-through entry without overwriting a newer write or a tombstone.
func (s *Service) fillCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	_, err = s.cache.Add(ctx, CacheKey(order.ID), bytes, s.cacheTTL)
	return err
}

func invalidTransition(current, requested entity.OrderStatus) *errorbank.AppError {
	return errorbank.BadRequest(
		fmt.Sprintf("Invalid status transition from %s to %s", current, requested),
		errorbank.WithDetail("from", current.String()),
		errorbank.WithDetail("to", requested.String()),
		errorbank.WithDetail("allowed", AllowedTransitions(current)),
	)
}

func duplicateTrackingNumber() *errorbank.AppError {
	return errorbank.BadRequest("order with this tracking number already exists.", errorbank.WithField("tracking_number"))
}
