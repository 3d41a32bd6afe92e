package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imgurcomments/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"json format", &config.LoggingConfig{Level: "warn", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func newJSONLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level, Format: "json"}, &buf)
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newJSONLogger(t, "warn")

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")
	l.Error("visible error")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "visible warn", entries[0]["message"])
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "imgurcomments", entries[1]["app"])
}

func TestStructuredFields(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")

	child := l.WithField("account", "12345").WithFields(map[string]interface{}{
		"page":    2,
		"elapsed": 1500 * time.Millisecond,
	})
	child.WithError(errors.New("boom")).InfoWithFields("page fetched", map[string]interface{}{
		"items":   100,
		"partial": false,
	})

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "page fetched", entry["message"])
	assert.Equal(t, "12345", entry["account"])
	assert.Equal(t, float64(2), entry["page"])
	assert.Equal(t, float64(100), entry["items"])
	assert.Equal(t, false, entry["partial"])
	assert.Equal(t, "boom", entry["error"])
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	l, buf := newJSONLogger(t, "info")

	_ = l.WithField("scoped", "yes")
	l.Info("parent")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	_, present := entries[0]["scoped"]
	assert.False(t, present)
}

func TestLogRequest(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://api.imgur.com/3/account/x/comments", 200, time.Second)
	LogRequest(tl, "GET", "https://api.imgur.com/3/account/x/comments", 404, time.Second)
	LogRequest(tl, "GET", "https://api.imgur.com/3/account/x/comments", 503, time.Second)

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
}

func TestLogQuota(t *testing.T) {
	tl := NewTestLogger()
	LogQuota(tl, "user", 1, 500)

	msgs := tl.GetMessagesByLevel("WARN")
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Fields["scope"])
	assert.Equal(t, 1, msgs[0].Fields["remaining"])
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("a", 1).WithError(errors.New("x"))
	child.Warn("from child")
	tl.Info("from parent")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].Fields["a"])
	assert.EqualError(t, msgs[0].Error, "x")
	assert.Nil(t, msgs[1].Fields)
	assert.True(t, tl.HasMessage("from parent"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, WithField("k", "v"))

	assert.Error(t, Initialize(&config.LoggingConfig{Level: "nope"}))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("ignored")).Error("nothing")
	assert.NotNil(t, l)
}
