// Package utils provides logging and CSV helpers for the case disposition engine.
package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry written by the global logger.
const ServiceName = "case-disposition-engine"

// Logger is the global logger instance.
var Logger *zap.Logger

// InitLogger initializes the global logger. Unknown levels fall back to info.
func InitLogger(level string) error {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil || level == "" {
		zapLevel = zapcore.InfoLevel
	}

	fields := []zap.Field{zap.String("service", ServiceName)}

	var config zap.Config
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		// JSON to stdout for CloudWatch
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		fields = append(fields, zap.String("function", fn))
		if stage := os.Getenv("STAGE"); stage != "" {
			fields = append(fields, zap.String("stage", stage))
		}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(zap.Fields(fields...))
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

// GetLogger returns the global logger, initializing if necessary.
func GetLogger() *zap.Logger {
	if Logger == nil {
		_ = InitLogger("info")
	}
	return Logger
}

// Component returns the global logger named after one part of the pipeline,
// e.g. "matcher", "org-cache" or "case-import".
func Component(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// Sync flushes any buffered log entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Field constructors shared by every package.
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Float64  = zap.Float64
	Bool     = zap.Bool
	Duration = zap.Duration
	Error    = zap.Error
)

// BatchID tags an entry with a case package.
func BatchID(id string) zap.Field { return zap.String("batch_id", id) }

// PlanID tags an entry with an assignment plan.
func PlanID(id string) zap.Field { return zap.String("plan_id", id) }

// OrgID tags an entry with a disposal organization.
func OrgID(id string) zap.Field { return zap.String("org_id", id) }

// ObjectKey tags an entry with an S3 object key.
func ObjectKey(key string) zap.Field { return zap.String("key", key) }
