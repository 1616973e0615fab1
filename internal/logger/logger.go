package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var base = logrus.New()

// Configure sets the global level and output format.
func Configure(level string, jsonOutput bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	if jsonOutput {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	base.SetOutput(os.Stdout)
}

// SetOutput is mostly useful in tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// NewContextWithLogger returns a child context carrying entry.
func NewContextWithLogger(ctx context.Context, fields logrus.Fields) context.Context {
	return context.WithValue(ctx, ctxKey{}, For(ctx).WithFields(fields))
}

// For returns the logger attached to ctx, or the base logger. ctx may be nil.
func For(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(base)
}
