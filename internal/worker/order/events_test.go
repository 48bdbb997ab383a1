package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/entity"
	"github.com/Additional-Code/ordertrack/internal/messaging"
	ordersvc "github.com/Additional-Code/ordertrack/internal/service/order"
)

func envelope(t *testing.T, kind string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(ordersvc.Envelope{Type: kind, OccurredAt: time.Now().UTC(), Payload: raw})
	require.NoError(t, err)
	return body
}

func typed(kind string, value []byte) messaging.Message {
	return messaging.Message{Topic: "orders.events", Value: value, Headers: map[string]string{messaging.HeaderType: kind}}
}

func TestProcessorHandlesEachType(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewProcessor(zap.New(core))
	ctx := context.Background()

	err := p.HandleStatusChanged(ctx, typed(ordersvc.MessageOrderStatusChanged, envelope(t, ordersvc.MessageOrderStatusChanged, ordersvc.StatusChangedEvent{
		OrderID:        7,
		TrackingNumber: "TRACK123",
		From:           entity.StatusCreated,
		To:             entity.StatusPicked,
		EventID:        3,
	})))
	require.NoError(t, err)

	err = p.HandleOrderCreated(ctx, typed(ordersvc.MessageOrderCreated, envelope(t, ordersvc.MessageOrderCreated, ordersvc.OrderCreatedEvent{ID: 8, TrackingNumber: "TRACK124"})))
	require.NoError(t, err)

	changed := logs.FilterMessage("order status change processed").All()
	require.Len(t, changed, 1)
	assert.Equal(t, "PICKED", changed[0].ContextMap()["to"])
	assert.Equal(t, int64(3), changed[0].ContextMap()["event_id"])
	assert.Equal(t, 1, logs.FilterMessage("order created event processed").Len())
}

func TestProcessorRejectsMismatchedEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	p := NewProcessor(zap.New(core))

	body := envelope(t, ordersvc.MessageOrderCreated, ordersvc.OrderCreatedEvent{ID: 8})
	err := p.HandleStatusChanged(context.Background(), typed(ordersvc.MessageOrderStatusChanged, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
	assert.Equal(t, 1, logs.FilterMessage("failed to decode order message").Len())
}

func TestProcessorRejectsMalformedMessages(t *testing.T) {
	p := NewProcessor(nil)

	assert.Error(t, p.HandleOrderCreated(context.Background(), typed(ordersvc.MessageOrderCreated, []byte("{"))))

	bad, err := json.Marshal(ordersvc.Envelope{Type: ordersvc.MessageOrderCreated, Payload: json.RawMessage(`"not an object"`)})
	require.NoError(t, err)
	assert.Error(t, p.HandleOrderCreated(context.Background(), typed(ordersvc.MessageOrderCreated, bad)))
}

func TestRegistrationsRouteByType(t *testing.T) {
	cfg := config.Config{Messaging: config.Messaging{Kafka: config.Kafka{Topic: "orders.events"}}}
	p := NewProcessor(zap.NewNop())

	created := NewOrderCreatedHandler(p, cfg)
	assert.Equal(t, "orders.events", created.Topic)
	assert.Equal(t, ordersvc.MessageOrderCreated, created.Type)
	assert.NotNil(t, created.Handler)

	changed := NewStatusChangedHandler(p, cfg)
	assert.Equal(t, "orders.events", changed.Topic)
	assert.Equal(t, ordersvc.MessageOrderStatusChanged, changed.Type)
	assert.NotNil(t, changed.Handler)
}
