package logging

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// LoggerFromContext never returns nil, a discarding logger is used when ctx carries none.
func LoggerFromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return Wrap(logrus.NewEntry(l))
}
