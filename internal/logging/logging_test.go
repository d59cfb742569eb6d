package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{" warn ", WarnLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"fatal", FatalLevel},
		{"", InfoLevel},
		{"bogus", InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.in), "input: %q", tt.in)
	}
}

func TestInit_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("key", "value").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "info", entry["level"])
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: ErrorLevel, Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("dropped")
	Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	Error().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, Output: &buf})
	defer Init(DefaultConfig())

	log := Component("engine")
	log.Info().Msg("tagged")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
}
