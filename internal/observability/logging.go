// Package observability provides logging and metrics utilities.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/loreforge/internal/config"
)

// NewLogger creates a structured logger for the named binary. Every entry
// carries a "service" field so forge and forged output can share a sink.
// Stack traces are attached at error level and above in both formats.
//
// Precondition: service must be non-empty.
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(service string, cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg, err := loggerConfig(service, cfg)
	if err != nil {
		return nil, err
	}
	logger, err := zapCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("building %s logger: %w", service, err)
	}
	return logger, nil
}

// loggerConfig maps cfg onto a zap.Config: json is the sampled production
// encoder, console the development one.
func loggerConfig(service string, cfg config.LoggingConfig) (zap.Config, error) {
	if service == "" {
		return zap.Config{}, fmt.Errorf("logger requires a service name")
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]any{"service": service}
	return zapCfg, nil
}
