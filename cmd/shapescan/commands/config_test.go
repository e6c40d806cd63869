package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JNZader/shapescan/internal/config"
)

func TestConfigShowYAML(t *testing.T) {
	out, err := executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# No config file found, using defaults")

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "auto", cfg.Scan.Language)
}

func TestConfigShowFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", "output:\n  format: sarif\nscan:\n  workers: 3\n")

	out, err := executeCommand(t, "--config", path, "config", "show", "--json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "sarif", cfg.Output.Format)
	assert.Equal(t, 3, cfg.Scan.Workers)
}

func TestConfigShowRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "output:\n  format: html\n")

	_, err := executeCommand(t, "--config", path, "config", "show")
	assert.ErrorContains(t, err, "output.format")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".shapescan.yaml")

	_, err := executeCommand(t, "-q", "config", "init", "--path", path)
	require.NoError(t, err)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Output, cfg.Output)

	_, err = executeCommand(t, "config", "init", "--path", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = executeCommand(t, "-q", "config", "init", "--path", path, "--force")
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
