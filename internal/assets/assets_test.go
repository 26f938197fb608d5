package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_EnvOverrideWins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDirOverride, dir)

	got, err := Resolve(false)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolve_DevModeFallsBackToCWD(t *testing.T) {
	t.Setenv(EnvDirOverride, "")
	emptyUserConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", emptyUserConfig) // os.UserConfigDir honors this on linux

	cwd, err := os.Getwd()
	require.NoError(t, err)

	got, err := Resolve(true)
	require.NoError(t, err)
	assert.Equal(t, cwd, got)
}

func TestVerifyRequired_MissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	err := VerifyRequired(dir)
	assert.Error(t, err)
}

func TestVerifyRequired_SucceedsWhenAllPresent(t *testing.T) {
	dir := t.TempDir()
	for _, name := range Required {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	assert.NoError(t, VerifyRequired(dir))
}
