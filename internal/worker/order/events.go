package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/messaging"
	ordersvc "github.com/Additional-Code/ordertrack/internal/service/order"
	"github.com/Additional-Code/ordertrack/internal/worker"
)

var (
	workerTracer = otel.Tracer("github.com/Additional-Code/ordertrack/worker/order")
	workerMeter  = otel.Meter("github.com/Additional-Code/ordertrack/worker/order")
)

// Module registers one worker handler per order message type.
var Module = fx.Module("worker_order",
	fx.Provide(
		NewProcessor,
		fx.Annotate(NewOrderCreatedHandler, fx.ResultTags(`group:"worker.handlers"`)),
		fx.Annotate(NewStatusChangedHandler, fx.ResultTags(`group:"worker.handlers"`)),
	),
)

// Processor handles the envelopes published on the order topic.
type Processor struct {
	logger   *zap.Logger
	messages metric.Int64Counter
}

// NewProcessor builds a Processor.
func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	messages, err := workerMeter.Int64Counter("ordertrack.worker.messages",
		metric.WithDescription("Order messages consumed by type and outcome"),
	)
	if err != nil {
		logger.Warn("worker counter unavailable", zap.Error(err))
	}
	return &Processor{logger: logger, messages: messages}
}

// NewOrderCreatedHandler routes order.created messages on the order topic to p.
func NewOrderCreatedHandler(p *Processor, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Type:    ordersvc.MessageOrderCreated,
		Handler: p.HandleOrderCreated,
	}
}

// NewStatusChangedHandler routes order.status_changed messages on the order topic to p.
func NewStatusChangedHandler(p *Processor, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Type:    ordersvc.MessageOrderStatusChanged,
		Handler: p.HandleStatusChanged,
	}
}

// HandleOrderCreated logs a newly created order.
func (p *Processor) HandleOrderCreated(ctx context.Context, msg messaging.Message) error {
	var event ordersvc.OrderCreatedEvent
	if err := p.decode(ctx, msg, ordersvc.MessageOrderCreated, &event); err != nil {
		return err
	}
	p.logger.Info("order created event processed",
		zap.Int64("id", event.ID),
		zap.String("tracking_number", event.TrackingNumber),
		zap.Int64("customer_id", event.CustomerID),
		zap.String("status", event.Status.String()),
	)
	p.count(ctx, ordersvc.MessageOrderCreated, "processed")
	return nil
}

// HandleStatusChanged logs a committed status transition.
func (p *Processor) HandleStatusChanged(ctx context.Context, msg messaging.Message) error {
	var event ordersvc.StatusChangedEvent
	if err := p.decode(ctx, msg, ordersvc.MessageOrderStatusChanged, &event); err != nil {
		return err
	}
	p.logger.Info("order status change processed",
		zap.Int64("order_id", event.OrderID),
		zap.String("tracking_number", event.TrackingNumber),
		zap.String("from", event.From.String()),
		zap.String("to", event.To.String()),
		zap.Int64("event_id", event.EventID),
		zap.Time("timestamp", event.Timestamp),
	)
	p.count(ctx, ordersvc.MessageOrderStatusChanged, "processed")
	return nil
}

// decode unwraps the envelope into payload. The envelope type must agree with the routed type.
func (p *Processor) decode(ctx context.Context, msg messaging.Message, kind string, payload any) error {
	_, span := workerTracer.Start(ctx, "worker.orders.decode", trace.WithAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.String("messaging.type", kind),
		attribute.Int64("messaging.offset", msg.Offset),
	))
	defer span.End()

	var env ordersvc.Envelope
	err := json.Unmarshal(msg.Value, &env)
	switch {
	case err != nil:
		err = fmt.Errorf("decode envelope: %w", err)
	case env.Type != kind:
		err = fmt.Errorf("envelope type %q does not match %q", env.Type, kind)
	default:
		if err = json.Unmarshal(env.Payload, payload); err != nil {
			err = fmt.Errorf("decode %s: %w", kind, err)
		}
	}
	if err != nil {
		p.logger.Error("failed to decode order message", zap.String("type", kind), zap.Int64("offset", msg.Offset), zap.Error(err))
		p.count(ctx, kind, "decode_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode error")
		return err
	}
	return nil
}

func (p *Processor) count(ctx context.Context, kind, outcome string) {
	if p.messages == nil {
		return
	}
	p.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", kind),
		attribute.String("outcome", outcome),
	))
}
