package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the package-level logger shared by the catalog, coverage and store
// packages. It defaults to a no-op logger so library consumers that never
// call Initialize pay nothing for it.
var Log *zap.SugaredLogger

func init() {
	Log = zap.NewNop().Sugar()
}

// Initialize replaces the no-op logger with a real one. verbose enables
// debug-level query tracing.
func Initialize(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = zl.Sugar()
	return nil
}
