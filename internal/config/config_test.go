package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wfl.config")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesRecognizedKeys(t *testing.T) {
	path := writeConfig(t, "timeout_seconds=30\nlog_level=debug\nsnake_case_variables=false\n")
	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.SnakeCaseVariables)
	assert.Equal(t, Default().IndentSize, cfg.IndentSize)
}

func TestLoadWarnsOnUnknownKey(t *testing.T) {
	path := writeConfig(t, "made_up_key=1\n")
	_, warnings, err := Load(path)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "made_up_key", warnings[0].Key)
}

func TestLoadRejectsInvalidType(t *testing.T) {
	path := writeConfig(t, "timeout_seconds=not-a-number\n")
	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidEnum(t *testing.T) {
	path := writeConfig(t, "log_level=extremely_verbose\n")
	_, _, err := Load(path)
	assert.Error(t, err)
}
