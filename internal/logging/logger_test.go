package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NewLogger_EnablesConfiguredLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := NewLogger("dev")
	assert.True(t, logger.Enabled(nil, slog.LevelDebug))

	t.Setenv("LOG_LEVEL", "error")
	logger = NewLogger("prod")
	assert.False(t, logger.Enabled(nil, slog.LevelWarn))
	assert.True(t, logger.Enabled(nil, slog.LevelError))
}

func Test_ParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
