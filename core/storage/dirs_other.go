//go:build !linux && !windows

package storage

import (
	"os"
	"path/filepath"
)

func platformConfigDefault() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.Getenv("HOME"), "."+AppName)
}

func platformDataDefault() string {
	return filepath.Join(platformConfigDefault(), "data")
}
