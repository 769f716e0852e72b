package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseZapLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// NewLogger builds a zap logger for the configured level. The debug level
// uses the development encoder; every other level logs JSON.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Level == "debug" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = parseZapLevel(cfg.Level)
	}

	if cfg.File != "" {
		zapConfig.OutputPaths = []string{cfg.File}
	}

	return zapConfig.Build()
}
