package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields logrus.Fields) Logger
	WithError(err error) Logger

	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})

	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	SetLevel(level logrus.Level)
}

type logger struct {
	*logrus.Entry
}

func New() Logger {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput is used by CLI commands that keep stdout for their results.
func NewWithOutput(out io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &logger{logrus.NewEntry(l)}
}

// Wrap adapts an existing logrus entry, e.g. one whose output is captured in tests.
func Wrap(entry *logrus.Entry) Logger {
	return &logger{entry}
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{l.Entry.WithField(key, value)}
}

func (l *logger) WithFields(fields logrus.Fields) Logger {
	return &logger{l.Entry.WithFields(fields)}
}

func (l *logger) WithError(err error) Logger {
	return &logger{l.Entry.WithError(err)}
}

func (l *logger) SetLevel(level logrus.Level) {
	l.Entry.Logger.SetLevel(level)
}
