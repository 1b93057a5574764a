package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rewardbot/internal/config"
)

// lines decodes each JSON log line written to buf.
func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m), l)
		out = append(out, m)
	}
	return out
}

func TestSubsystemFields(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug").Sub("aggregator").With("customerId", "c1").Info().Msg("fetched")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "aggregator", got[0]["subsystem"])
	assert.Equal(t, "c1", got[0]["customerId"])
	assert.Equal(t, "fetched", got[0]["message"])
	assert.Contains(t, got[0], "time")
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"ERROR", []string{"error"}},
		{"silent", nil},
		{"bogus", []string{"info", "warn", "error"}},
		{"", []string{"info", "warn", "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, tt.level)
			log.Debug().Msg("x")
			log.Info().Msg("x")
			log.Warn().Msg("x")
			log.Error().Msg("x")

			var levels []string
			for _, l := range lines(t, &buf) {
				levels = append(levels, l["level"].(string))
			}
			assert.Equal(t, tt.want, levels)
		})
	}
}

func TestParseLevel_Silent(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, parseLevel(" Silent "))
}

func TestNewFromConfig(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		log, closer, err := NewFromConfig(config.LoggingConfig{Level: "silent"})
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.NoError(t, closer.Close())
	})

	t.Run("tees to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "rewardbot.log")
		log, closer, err := NewFromConfig(config.LoggingConfig{Level: "info", File: path, ConsoleStyle: "json"})
		require.NoError(t, err)
		log.Sub("orchestrator").Debug().Msg("below level")
		log.Sub("orchestrator").Info().Str("sessionId", "s1").Msg("answered")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		got := lines(t, bytes.NewBuffer(data))
		require.Len(t, got, 1)
		assert.Equal(t, "s1", got[0]["sessionId"])
		assert.Equal(t, "orchestrator", got[0]["subsystem"])
	})

	t.Run("unwritable dir", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o600))
		_, _, err := NewFromConfig(config.LoggingConfig{File: filepath.Join(blocker, "x.log")})
		assert.Error(t, err)
	})
}
