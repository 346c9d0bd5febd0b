package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/papercex/backend/internal/config"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	l, err := New(config.Logging{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Debug("hello")
	_ = l.Sync() // stdout sync can fail under test runners

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.Logging{Level: "chatty"})
	assert.Error(t, err)
}
