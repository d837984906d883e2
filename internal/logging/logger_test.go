package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelInfo, FormatJSON, &buf)

	logger.WithFields(map[string]interface{}{
		"projectId": "p1",
		"votes":     3,
	}).WithError(errors.New("boom")).Info("vote cast")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "vote cast", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "p1", entry["projectId"])
	assert.Equal(t, float64(3), entry["votes"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelWarn, FormatText, &buf)

	logger.Info("hidden")
	logger.Debug("hidden debug")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter(LevelInfo, FormatJSON, &buf)
	_ = parent.WithField("child", true)

	parent.Info("parent")
	assert.False(t, strings.Contains(buf.String(), "child"))
}

func TestInitGlobalLogger(t *testing.T) {
	logger := InitGlobalLogger(LevelWarn, FormatText)
	defer logger.Sync()
	assert.Same(t, logger, GetGlobalLogger())
	assert.Same(t, logger, FromContext(context.Background()))
}

func TestFromContext(t *testing.T) {
	custom := NewNopLogger()
	ctx := WithLogger(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, FormatText, ParseLogFormat("text"))
	assert.Equal(t, FormatJSON, ParseLogFormat("xml"))
}
