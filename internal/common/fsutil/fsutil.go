// Package fsutil resolves the filesystem paths the service is configured with.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// DataFile expands path and creates its parent directory so a database can
// be opened there. The SQLite in-memory name is returned unchanged.
func DataFile(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return p, nil
}

// StaticDir expands dir and reports whether it holds an index.html. An
// empty dir is not an error; it disables static serving.
func StaticDir(dir string) (string, bool, error) {
	if dir == "" {
		return "", false, nil
	}
	p, err := ExpandHome(dir)
	if err != nil {
		return "", false, err
	}
	return p, PathExists(filepath.Join(p, "index.html")), nil
}
