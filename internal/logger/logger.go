package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/ordertrack/internal/config"
)

// Module exposes a configured Zap logger to the Fx container.
var Module = fx.Provide(New)

// New builds the service logger and syncs it when the application stops.
func New(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, err := Build(cfg.Observability)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := logger.Sync(); err != nil && !isUnsyncable(err) {
				return err
			}
			return nil
		},
	})

	return logger, nil
}

// Build assembles a logger from the observability settings, tagged with the service identity.
// Options are applied before the identity fields.
func Build(obs config.Observability, opts ...zap.Option) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(obs.LogLevel); raw != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	switch obs.LogEncoding {
	case "", "json":
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unsupported log encoding: %s", obs.LogEncoding)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, err
	}

	return logger.With(
		zap.String("service", obs.ServiceName),
		zap.String("version", obs.ServiceVersion),
		zap.String("environment", obs.Environment),
	), nil
}

// Printf adapts a zap logger to the printf-style logger hooks of kafka-go and goose.
type Printf struct {
	sugar *zap.SugaredLogger
	level zapcore.Level
}

// NewPrintf returns a Printf writing at level under the given component name.
func NewPrintf(logger *zap.Logger, component string, level zapcore.Level) Printf {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Printf{
		sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar().With(zap.String("component", component)),
		level: level,
	}
}

// Printf logs a formatted message at the adapter's level.
func (p Printf) Printf(format string, args ...any) {
	p.sugar.Logf(p.level, strings.TrimSuffix(format, "\n"), args...)
}

// Fatalf logs a formatted message and exits.
func (p Printf) Fatalf(format string, args ...any) {
	p.sugar.Fatalf(strings.TrimSuffix(format, "\n"), args...)
}

// isUnsyncable reports sync errors raised by terminals and pipes, which cannot be fsynced.
func isUnsyncable(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
