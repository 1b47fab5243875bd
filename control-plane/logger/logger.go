package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// Init initializes the global logger. An empty level falls back to LOG_LEVEL.
func Init(level string) error {
	config := zap.NewProductionConfig()

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	// Configure JSON encoding
	config.Encoding = "json"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := config.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zap.DebugLevel
	case "WARN", "WARNING":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// WithFields creates a logger with additional fields
func WithFields(fields ...zap.Field) *zap.Logger {
	if Logger == nil {
		// Fallback to nop logger if not initialized
		return zap.NewNop()
	}
	return Logger.With(fields...)
}

// WithComponent creates a logger with component field
func WithComponent(component string) *zap.Logger {
	return WithFields(zap.String("component", component))
}

// WithProjectID creates a logger with project ID field
func WithProjectID(projectID int64) *zap.Logger {
	return WithFields(zap.Int64("project_id", projectID))
}

// WithRuleID creates a logger with rule ID field
func WithRuleID(ruleID int64) *zap.Logger {
	return WithFields(zap.Int64("rule_id", ruleID))
}

// WithRequestID creates a logger with request ID field
func WithRequestID(requestID string) *zap.Logger {
	return WithFields(zap.String("request_id", requestID))
}
