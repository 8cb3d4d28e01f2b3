// Package logging builds the service's zap loggers.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings.
type Config struct {
	// ServiceName is attached to every entry as "service".
	ServiceName string
	// Env is attached to every entry as "env" (local, docker, production).
	Env string
	// Level is debug, info, warn or error. Defaults to info.
	Level string
	// Format is json or console. Defaults to console for local, json otherwise.
	Format string
	// AddCaller annotates entries with file:line.
	AddCaller bool
}

// New creates a zap.Logger writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	return newLogger(cfg, zapcore.AddSync(os.Stderr))
}

func newLogger(cfg Config, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		if cfg.Env == "" || cfg.Env == "local" {
			cfg.Format = "console"
		} else {
			cfg.Format = "json"
		}
	}

	var level zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Level)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be json/console)", cfg.Format)
	}

	var opts []zap.Option
	if cfg.AddCaller {
		opts = append(opts, zap.AddCaller())
	}
	logger := zap.New(zapcore.NewCore(encoder, sink, level), opts...)

	return logger.With(
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
	), nil
}

// Sync flushes buffered entries, ignoring the harmless errors some
// platforms report for stderr.
func Sync(log *zap.Logger) {
	_ = log.Sync()
}
