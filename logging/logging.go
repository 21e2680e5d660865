// Package logging builds the zap logger for an environment
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environments understood by New
const (
	Local       = "local"
	Development = "development"
	Production  = "production"
)

// New creates a new zap logger. local logs everything from debug up in
// console form, development starts at info, anything else gets the JSON
// production logger.
func New(env string) (*zap.Logger, error) {
	switch env {
	case Local:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	case Development:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		return cfg.Build()
	}
	return zap.NewProduction()
}
