package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/messaging"
)

// HandlerRegistration binds one message type on a topic to a handler. The type is matched
// against the messaging.HeaderType header; an empty Type catches messages no typed handler claims.
type HandlerRegistration struct {
	Topic   string
	Type    string
	Handler messaging.Handler
}

type route struct {
	topic string
	kind  string
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Stats counts messages by outcome since the engine started.
type Stats struct {
	Handled int64
	Failed  int64
	Skipped int64
}

// Engine orchestrates background message consumption.
type Engine struct {
	client messaging.Client
	logger *zap.Logger
	cfg    config.Config
	routes map[route]messaging.Handler
	cancel context.CancelFunc
	wg     *sync.WaitGroup

	handled atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

// NewEngine constructs the worker Engine. Two handlers for the same topic and type are rejected.
func NewEngine(p Params) (*Engine, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	routes := make(map[route]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		key := route{topic: r.Topic, kind: r.Type}
		if _, exists := routes[key]; exists {
			return nil, fmt.Errorf("duplicate worker handler for topic %q type %q", r.Topic, r.Type)
		}
		routes[key] = r.Handler
	}

	return &Engine{
		client: p.Client,
		logger: logger,
		cfg:    p.Config,
		routes: routes,
	}, nil
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.routes) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency))

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		stats := e.Stats()
		e.logger.Info("worker engine stopped",
			zap.Int64("handled", stats.Handled),
			zap.Int64("failed", stats.Failed),
			zap.Int64("skipped", stats.Skipped),
		)

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, workerID, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Stats reports message outcomes so far.
func (e *Engine) Stats() Stats {
	return Stats{
		Handled: e.handled.Load(),
		Failed:  e.failed.Load(),
		Skipped: e.skipped.Load(),
	}
}

func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) error {
	kind := msg.Headers[messaging.HeaderType]
	handler, ok := e.routes[route{topic: msg.Topic, kind: kind}]
	if !ok {
		handler, ok = e.routes[route{topic: msg.Topic}]
	}
	if !ok {
		e.skipped.Add(1)
		e.logger.Warn("no handler for message",
			zap.String("topic", msg.Topic),
			zap.String("type", kind),
			zap.Int64("offset", msg.Offset),
		)
		return nil
	}

	e.logger.Debug("processing message",
		zap.String("topic", msg.Topic),
		zap.String("type", kind),
		zap.Int("worker", workerID),
	)
	if err := handler(ctx, msg); err != nil {
		e.failed.Add(1)
		return err
	}
	e.handled.Add(1)
	return nil
}
