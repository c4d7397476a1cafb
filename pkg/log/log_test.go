package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		" INFO ":  InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"trace":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestNewJSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	logger.Info().Msg("hidden")
	logger.Warn().Str("node", "zk1").Msg("probe failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "zk1", entry["node"])
	assert.Equal(t, "probe failed", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestInitAndChildLoggers(t *testing.T) {
	prev := Logger
	t.Cleanup(func() {
		Logger = prev
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithComponent("scheduler")
	logger.Info().Msg("tick")
	logger = WithArtifact(42)
	logger.Info().Msg("moved")
	NewPrinter("zookeeper").Printf("connected to %s\n", "zk1:2181")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var first, second, third map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))
	assert.Equal(t, "scheduler", first["component"])
	assert.Equal(t, float64(42), second["artifact_id"])
	assert.Equal(t, "debug", third["level"])
	assert.Equal(t, "zookeeper", third["component"])
	assert.Equal(t, "connected to zk1:2181", third["message"])
}
