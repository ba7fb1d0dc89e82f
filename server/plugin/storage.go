package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/otiai10/copy"
)

// Directory returns the directory searched for plugin binaries.
func (m *Manager[S, C]) Directory() string {
	return m.directory()
}

// DataRoot returns the directory holding the data directories of plugins.
func (m *Manager[S, C]) DataRoot() string {
	return m.dataRoot()
}

// ResolvePath resolves path against the plugin directory unless it is
// absolute, and cleans the result.
func (m *Manager[S, C]) ResolvePath(path string) string {
	return m.resolvePath(path)
}

func (m *Manager[S, C]) directory() string {
	if m.cfg.Directory == "" {
		return "plugins"
	}
	return m.cfg.Directory
}

// dataRoot defaults to the data folder inside the plugin directory. Relative
// configured paths are taken relative to the plugin directory as well.
func (m *Manager[S, C]) dataRoot() string {
	switch dir := m.cfg.DataDirectory; {
	case dir == "":
		return filepath.Join(m.directory(), "data")
	case filepath.IsAbs(dir):
		return filepath.Clean(dir)
	default:
		return filepath.Join(m.directory(), dir)
	}
}

func (m *Manager[S, C]) dataDirectory(plugin string) string {
	return filepath.Join(m.dataRoot(), dirName(plugin))
}

func (m *Manager[S, C]) prepareDirectories() error {
	if err := mkdir(m.directory()); err != nil {
		return fmt.Errorf("prepare plugin directory: %w", err)
	}
	if err := mkdir(m.dataRoot()); err != nil {
		return fmt.Errorf("prepare plugin data storage: %w", err)
	}
	return nil
}

func (m *Manager[S, C]) resolvePath(path string) string {
	if path == "" {
		return ""
	}
	path = filepath.Clean(path)
	if filepath.IsAbs(path) {
		return path
	}
	dir := filepath.Clean(m.directory())
	// "plugins/demo.so" already points into the plugin directory.
	if rel, err := filepath.Rel(dir, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.Join(dir, path)
}

func mkdir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// moveData moves the data directory of a renamed plugin. A missing source
// leaves an empty target behind.
func moveData(from, to string) error {
	switch {
	case from == to:
		return nil
	case to == "":
		return errors.New("empty target data directory")
	case from == "":
		return mkdir(to)
	}
	info, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return mkdir(to)
	} else if err != nil {
		return fmt.Errorf("stat source data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source data directory %s is not a directory", from)
	}
	if err := mkdir(filepath.Dir(to)); err != nil {
		return fmt.Errorf("ensure target parent: %w", err)
	}
	err = os.Rename(from, to)
	if errors.Is(err, syscall.EXDEV) {
		// The data root is on another device.
		if err := copy.Copy(from, to, copy.Options{Sync: true}); err != nil {
			return fmt.Errorf("copy data directory: %w", err)
		}
		return os.RemoveAll(from)
	}
	if err != nil {
		return fmt.Errorf("rename data directory: %w", err)
	}
	return nil
}

// fileBase returns the file name of path without its extension, or "plugin"
// if nothing is left.
func fileBase(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if base == "" || base == "." {
		return "plugin"
	}
	return base
}

// dirName turns a plugin name into a lower case directory name made of
// letters, digits, dashes, underscores and dots.
func dirName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(name)))
	if name = strings.Trim(name, "-_."); name == "" {
		return "plugin"
	}
	return name
}
