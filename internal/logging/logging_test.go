package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFiltersMessages(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "warn", Fallback: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden message")
	logger.Warn("shown message", "file", "policy.md")
	assert.NotContains(t, buf.String(), "hidden message")
	assert.Contains(t, buf.String(), "shown message")
	assert.Contains(t, buf.String(), "policy.md")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragchat.log")
	logger, closeFn, err := New(Options{File: path})
	require.NoError(t, err)
	logger.Info("to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
