package logbase

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a development logger without stack traces. Debug output is
// enabled only when verbose is set.
func New(verbose bool) (*zap.Logger, error) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return c.Build()
}

// Init installs a New(verbose) logger as the zap global.
func Init(verbose bool) (*zap.Logger, error) {
	log, err := New(verbose)
	if err != nil {
		return nil, err
	}
	_ = zap.ReplaceGlobals(log)
	return log, nil
}

// L returns the logger installed by Init, or a no-op logger before that.
func L() *zap.Logger {
	return zap.L()
}
