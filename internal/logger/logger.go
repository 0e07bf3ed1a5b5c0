// Package logger builds the zap.Logger used throughout docweave. Unlike a
// package-level global, the constructed logger is threaded explicitly
// through each component's constructor.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction from CLI flags.
type Options struct {
	Debug bool
	// Quiet suppresses Info-level output (level Warn) when Debug is not
	// set.
	Quiet bool
}

// New builds a zap.Logger writing to stderr, matching the project's
// convention of leaving stdout free for rendered output.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch {
	case opts.Debug:
		cfg = zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case opts.Quiet:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

// Nop returns a logger that discards everything, used in tests and as a
// safe zero value.
func Nop() *zap.Logger {
	return zap.NewNop()
}
