package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalDirs() {
	globalDirs = nil
	globalDirsOnce = sync.Once{}
}

func TestResolveDirs(t *testing.T) {
	resetGlobalDirs()
	t.Cleanup(resetGlobalDirs)

	dirs := ResolveDirs()
	require.NotNil(t, dirs)
	assert.NotEmpty(t, dirs.Config)
	assert.NotEmpty(t, dirs.Data)
	assert.Contains(t, dirs.Config, AppName)
	assert.Same(t, dirs, ResolveDirs())
}

func TestResolveDirsXDGOverride(t *testing.T) {
	resetGlobalDirs()
	t.Cleanup(resetGlobalDirs)

	cfg, data := t.TempDir(), t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfg)
	t.Setenv("XDG_DATA_HOME", data)

	dirs := ResolveDirs()
	assert.Equal(t, filepath.Join(cfg, AppName), dirs.Config)
	assert.Equal(t, filepath.Join(data, AppName), dirs.Data)
	assert.Equal(t, filepath.Join(data, AppName, "datasheets"), dirs.DatasheetDir())
	assert.Equal(t, filepath.Join(cfg, AppName, "config.yaml"), dirs.ConfigDir("config.yaml"))
}

func TestResolveProjectDirs(t *testing.T) {
	root := filepath.Join("test", "project")
	dirs := ResolveProjectDirs(root)

	assert.Equal(t, filepath.Join(root, ".halflife"), dirs.Root)
	assert.Equal(t, filepath.Join(root, ".halflife", "config.yaml"), dirs.Config)
	assert.Equal(t, filepath.Join(root, ".halflife", "local.yaml"), dirs.Local)
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureDir(path, 0))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, EnsureDir(path, 0700))
}
