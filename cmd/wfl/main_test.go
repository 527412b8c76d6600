package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// whatever was written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func writeScript(t *testing.T, dir, source string) string {
	t.Helper()
	path := filepath.Join(dir, "main.wfl")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestRunExecutesScriptAndExitsZero(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `display "hello"`)

	var code int
	out := captureStdout(t, func() {
		code = run([]string{path})
	})
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "hello\n", out)
}

func TestRunLoadsAdjacentConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `display "hello"`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wfl.config"), []byte("timeout_seconds=5\n"), 0o644))

	var code int
	out := captureStdout(t, func() {
		code = run([]string{path})
	})
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "hello\n", out)
}

func TestRunRejectsInvalidConfigValue(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `display "hello"`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wfl.config"), []byte("timeout_seconds=not-a-number\n"), 0o644))

	var code int
	_ = captureStdout(t, func() {
		code = run([]string{path})
	})
	assert.Equal(t, exitCompile, code)
}

func TestRunWarnsOnUnknownConfigKey(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `display "hello"`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wfl.config"), []byte("made_up_key=true\n"), 0o644))

	var code int
	out := captureStdout(t, func() {
		code = run([]string{path})
	})
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "hello\n", out)
}

func TestRunExplicitTimeoutFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `display "hello"`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wfl.config"), []byte("timeout_seconds=1\n"), 0o644))

	var code int
	out := captureStdout(t, func() {
		code = run([]string{"--timeout", "30", path})
	})
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "hello\n", out)
}
