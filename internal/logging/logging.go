// Package logging wires a logrus logger into a context.Context the way the
// rest of this module expects to find one, via dlib/dlog.
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/datawire/dlib/dlog"
)

// NewContext returns ctx with a logrus-backed dlog.Logger attached. Level
// defaults to "info" and can be overridden with the LOG_LEVEL environment
// variable (debug, info, warn, error).
func NewContext(ctx context.Context) context.Context {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		FullTimestamp:   true,
	})
	l.SetLevel(levelFromEnv())

	logger := dlog.WrapLogrus(l)
	dlog.SetFallbackLogger(logger)
	return dlog.WithLogger(ctx, logger)
}

func levelFromEnv() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
