package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn, true)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := &logger{level: LevelDebug, console: &buf, noColor: true, now: func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	}}

	l.Infof("Scanning '%s'", "id")
	assert.Equal(t, "[03:04:05] [INFO] Scanning 'id'\n", buf.String())
}

func TestNewFromSettings_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.log")

	l, closer, err := NewFromSettings(types.LogSettings{Level: "info", File: path, MaxSizeMB: 1}, true)
	require.NoError(t, err)

	l.Warnf("probe failed for %s", "qty")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[WARN] probe failed for qty")
}

func TestNewFromSettings_BadLevel(t *testing.T) {
	_, _, err := NewFromSettings(types.LogSettings{Level: "chatty"}, true)
	assert.Error(t, err)
}
