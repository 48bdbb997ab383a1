package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/messaging"
)

// replayClient hands a fixed batch of messages to the first consumer, then blocks.
type replayClient struct {
	once     sync.Once
	messages []messaging.Message
}

func (c *replayClient) Publish(context.Context, messaging.Message) error { return nil }
func (c *replayClient) Topic() string                                    { return "orders.events" }

func (c *replayClient) Consume(ctx context.Context, handler messaging.Handler) error {
	c.once.Do(func() {
		for _, msg := range c.messages {
			_ = handler(ctx, msg)
		}
	})
	<-ctx.Done()
	return ctx.Err()
}

func typed(topic, kind, value string) messaging.Message {
	msg := messaging.Message{Topic: topic, Value: []byte(value)}
	if kind != "" {
		msg.Headers = map[string]string{messaging.HeaderType: kind}
	}
	return msg
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handler(name string) messaging.Handler {
	return func(_ context.Context, msg messaging.Message) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, name+":"+string(msg.Value))
		return nil
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestEngineRoutesByTopicAndType(t *testing.T) {
	client := &replayClient{messages: []messaging.Message{
		typed("orders.events", "order.created", "a"),
		typed("orders.events", "order.status_changed", "b"),
		typed("other", "order.created", "c"),
		typed("orders.events", "order.archived", "d"),
		typed("orders.events", "", "e"),
	}}

	rec := &recorder{}
	engine, err := NewEngine(Params{
		Client: client,
		Logger: zaptest.NewLogger(t),
		Config: config.Config{Messaging: config.Messaging{Enabled: true, Workers: config.Worker{Enabled: true, Concurrency: 1}}},
		Registrations: []HandlerRegistration{
			{Topic: "orders.events", Type: "order.created", Handler: rec.handler("created")},
			{Topic: "orders.events", Type: "order.status_changed", Handler: rec.handler("changed")},
			{Topic: "", Handler: nil},
		},
	})
	require.NoError(t, err)

	require.NoError(t, engine.start(context.Background()))
	assert.Eventually(t, func() bool {
		stats := engine.Stats()
		return stats.Handled+stats.Skipped == 5
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, engine.stop(context.Background()))

	assert.Equal(t, []string{"created:a", "changed:b"}, rec.seen)
	assert.Equal(t, Stats{Handled: 2, Skipped: 3}, engine.Stats())
}

func TestEngineFallsBackToUntypedHandler(t *testing.T) {
	rec := &recorder{}
	engine, err := NewEngine(Params{
		Client: &replayClient{},
		Logger: zaptest.NewLogger(t),
		Registrations: []HandlerRegistration{
			{Topic: "orders.events", Type: "order.created", Handler: rec.handler("created")},
			{Topic: "orders.events", Handler: rec.handler("any")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, engine.dispatch(context.Background(), 0, typed("orders.events", "order.created", "a")))
	require.NoError(t, engine.dispatch(context.Background(), 0, typed("orders.events", "order.archived", "b")))
	require.NoError(t, engine.dispatch(context.Background(), 0, typed("orders.events", "", "c")))
	assert.Equal(t, []string{"created:a", "any:b", "any:c"}, rec.seen)
	assert.Equal(t, 3, rec.count())
}

func TestEngineCountsHandlerFailures(t *testing.T) {
	boom := errors.New("boom")
	engine, err := NewEngine(Params{
		Client: &replayClient{},
		Registrations: []HandlerRegistration{
			{Topic: "orders.events", Type: "order.created", Handler: func(context.Context, messaging.Message) error { return boom }},
		},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, engine.dispatch(context.Background(), 0, typed("orders.events", "order.created", "a")), boom)
	assert.Equal(t, Stats{Failed: 1}, engine.Stats())
}

func TestEngineRejectsDuplicateRoutes(t *testing.T) {
	noop := func(context.Context, messaging.Message) error { return nil }
	_, err := NewEngine(Params{
		Registrations: []HandlerRegistration{
			{Topic: "orders.events", Type: "order.created", Handler: noop},
			{Topic: "orders.events", Type: "order.created", Handler: noop},
		},
	})
	assert.Error(t, err)
}

func TestEngineDisabled(t *testing.T) {
	engine, err := NewEngine(Params{
		Client: &replayClient{},
		Logger: zaptest.NewLogger(t),
		Config: config.Config{Messaging: config.Messaging{Enabled: false}},
	})
	require.NoError(t, err)
	require.NoError(t, engine.start(context.Background()))
	require.NoError(t, engine.stop(context.Background()))
}
