// Package log provides the structured logger used across the runtime: a
// JSON-encoded zap.Logger at Info level by default, with a Debug mode for
// local development and per-component fields for the agent loop, provider
// adapters, and tool executor to attach call and session identifiers.
//
// Grounded on _examples/vellankikoti-kubilitics-os-emergent/kubilitics-ai/internal/audit/logger.go's
// zapcore.EncoderConfig/zapcore.NewJSONEncoder construction, simplified from
// its dual app/audit-log rotation setup down to the single runtime logger
// this module needs (no audit trail requirement in scope here); the
// teacher itself carries no logging library, so the choice is grounded on
// the wider example pack rather than the teacher.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once    sync.Once
	base    *zap.Logger
	initErr error
)

// Config selects the logger's verbosity and output format.
type Config struct {
	// Debug enables debug-level logging and a console encoder instead of
	// JSON, matching the teacher's print-mode CLI's plain stderr output.
	Debug bool
}

// Init constructs the process-wide base logger. Safe to call more than
// once; only the first call's Config takes effect.
func Init(cfg Config) (*zap.Logger, error) {
	once.Do(func() {
		level := zapcore.InfoLevel
		if cfg.Debug {
			level = zapcore.DebugLevel
		}

		encoderCfg := zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}

		var encoder zapcore.Encoder
		if cfg.Debug {
			encoder = zapcore.NewConsoleEncoder(encoderCfg)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderCfg)
		}

		core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
		base = zap.New(core, zap.AddCaller())
	})
	return base, initErr
}

// Get returns the process-wide logger, initializing it with defaults
// (Info level, JSON encoding) if Init was never called.
func Get() *zap.Logger {
	if base == nil {
		_, _ = Init(Config{})
	}
	return base
}

// ForSession returns a logger scoped to a session ID, attached to every
// subsequent log line it emits.
func ForSession(sessionID string) *zap.Logger {
	return Get().With(zap.String("session_id", sessionID))
}

// ForTool returns a logger scoped to one tool call.
func ForTool(toolName, callID string) *zap.Logger {
	return Get().With(zap.String("tool", toolName), zap.String("call_id", callID))
}

// ForProvider returns a logger scoped to one provider/model pair.
func ForProvider(provider, modelID string) *zap.Logger {
	return Get().With(zap.String("provider", provider), zap.String("model", modelID))
}
