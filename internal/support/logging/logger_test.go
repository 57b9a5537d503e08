package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Writer: &buf})
	logger.Debug("hidden")
	logger.Info("rendered", "dialect", "mihomo")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rendered", entry["msg"])
	assert.Equal(t, "mihomo", entry["dialect"])
	assert.Equal(t, "configflow", entry["service"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelDebug, Format: "console", Writer: &buf})
	logger.Debug("prefetched", "name", "ads")
	assert.Contains(t, buf.String(), "msg=prefetched")
	assert.Contains(t, buf.String(), "name=ads")
}
