// ABOUTME: Tests for the convsession logger setup
// ABOUTME: Verifies level filtering, attribute rendering, and JSON output

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/convsession/internal/config"
)

func TestSetupLogger_TextLevels(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "conversation_id", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
	assert.Contains(t, out, "conversation_id=abc")
}

func TestSetupLogger_WithAttrsAndGroup(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug"}, &buf)

	logger.With("component", "filter").WithGroup("req").Debug("bound", "path", "/api/notes")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "DBG bound")
	assert.Contains(t, line, "component=filter")
	assert.Contains(t, line, "req.path=/api/notes")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("conversation created", "conversation_id", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "conversation created", rec["msg"])
	assert.Equal(t, "abc", rec["conversation_id"])
}
