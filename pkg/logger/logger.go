package logger

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger configured for the given environment.
// "local" and "development" get a human-readable console encoder with debug
// level; everything else gets production JSON at info level.
func New(env string) *zap.Logger {
	var cfg zap.Config

	switch env {
	case "local", "development", "dev":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("failed to build zap logger: %v", err)
	}

	return logger
}
