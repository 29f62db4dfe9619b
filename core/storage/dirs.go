// Package storage resolves platform-native directories with XDG support.
package storage

import (
	"os"
	"path/filepath"
	"sync"
)

// AppName names the per-user directories and the project directory.
const AppName = "halflife"

// Dirs holds the per-user directories.
type Dirs struct {
	Config string // config.yaml
	Data   string // default datasheet directory
}

// ProjectDirs holds project-local paths.
type ProjectDirs struct {
	Root   string // .halflife/
	Config string // .halflife/config.yaml (committed)
	Local  string // .halflife/local.yaml (gitignored)
}

var (
	globalDirs     *Dirs
	globalDirsOnce sync.Once
)

// ResolveDirs returns platform-appropriate directories.
// Results are cached after first call.
func ResolveDirs() *Dirs {
	globalDirsOnce.Do(func() {
		globalDirs = resolveDirsImpl()
	})
	return globalDirs
}

func resolveDirsImpl() *Dirs {
	return &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", platformConfigDefault()),
		Data:   resolveDir("XDG_DATA_HOME", platformDataDefault()),
	}
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, AppName)
	}
	return fallback
}

// ResolveProjectDirs returns project-local paths for the given project root.
func ResolveProjectDirs(projectRoot string) *ProjectDirs {
	root := filepath.Join(projectRoot, "."+AppName)
	return &ProjectDirs{
		Root:   root,
		Config: filepath.Join(root, "config.yaml"),
		Local:  filepath.Join(root, "local.yaml"),
	}
}

// ConfigDir returns a path under the config directory.
func (d *Dirs) ConfigDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Config}, subpath...)...)
}

// DataDir returns a path under the data directory.
func (d *Dirs) DataDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Data}, subpath...)...)
}

// DatasheetDir is the directory scanned when no datasheet directory is
// configured.
func (d *Dirs) DatasheetDir() string {
	return d.DataDir("datasheets")
}

// EnsureDir creates path with perm (0755 when zero) if it doesn't exist.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = 0755
	}
	return os.MkdirAll(path, perm)
}
