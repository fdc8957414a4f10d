// Package logging owns the process-wide zap logger. Components get a named child via
// Named so each log line says which part of the service wrote it.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process logger. It is nil until Setup runs.
var Logger *zap.Logger

// Setup builds the process logger and installs it as zap's global. debug selects the
// console encoder at debug level; otherwise JSON at info level with ISO8601 times,
// which is what log shippers in front of the service expect. On failure Logger falls
// back to zap's example logger and the build error is returned.
func Setup(debug bool, appName, appVersion string) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// Request logs are the bulk of the output; never drop them.
		cfg.Sampling = nil
	}
	cfg.InitialFields = map[string]interface{}{
		"appName":    appName,
		"appVersion": appVersion,
	}

	logger, err := cfg.Build()
	if err != nil {
		Logger = zap.NewExample()
		return err
	}
	Logger = logger
	zap.ReplaceGlobals(Logger)
	return nil
}

// Named returns a child of the process logger for a component, or a no-op logger
// before Setup has run.
func Named(component string) *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger.Named(component)
}
