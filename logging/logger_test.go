package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/messenger-watcher/logging"
)

func newBufferedLogger(buf *bytes.Buffer) logging.Logger {
	return logging.NewWithOutput(buf)
}

func TestLogger_WithFields(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger := newBufferedLogger(buf).
		WithField("watcher_id", "boba").
		WithFields(logrus.Fields{"domain": "home"}).
		WithError(errors.New("boom"))
	logger.Info("resolving relay")

	entry := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "boba", entry["watcher_id"])
	require.Equal(t, "home", entry["domain"])
	require.Equal(t, "boom", entry["error"])
	require.Equal(t, "resolving relay", entry["msg"])
}

func TestLogger_SetLevel(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger := newBufferedLogger(buf)
	logger.SetLevel(logrus.WarnLevel)
	logger.Info("skipped")
	require.Zero(t, buf.Len())
	logger.Warn("printed")
	require.NotZero(t, buf.Len())
}

func TestLoggerFromContext(t *testing.T) {
	t.Parallel()

	require.NotNil(t, logging.LoggerFromContext(context.Background()))

	buf := new(bytes.Buffer)
	logger := newBufferedLogger(buf)
	ctx := logging.WithLogger(context.Background(), logger)
	logging.LoggerFromContext(ctx).Info("from context")
	require.Contains(t, buf.String(), "from context")
}
