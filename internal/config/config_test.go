package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eddy.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.GreaterOrEqual(t, cfg.VM.Workers, 1)
	assert.Equal(t, "cpu", cfg.DefaultDevice)
}

func TestLoadOverlaysDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
default_device = "webgpu"

[vm]
workers = 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.VM.Workers)
	assert.Equal(t, "webgpu", cfg.DefaultDevice)
	// Undefined keys keep their defaults.
	assert.Equal(t, Default().VM.SubmitQueueDepth, cfg.VM.SubmitQueueDepth)
	assert.Equal(t, 0, cfg.ProcessRank)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero workers", "[vm]\nworkers = 0\n"},
		{"negative rank", "process_rank = -1\n"},
		{"unknown device", `default_device = "tpu"` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
