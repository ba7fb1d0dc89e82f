package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"slices"
	"strings"
)

// factorySymbols are the exported names looked up in a plugin, in order.
var factorySymbols = [...]string{"InitPlugin", "Init", "NewPlugin", "New"}

var errNoFactory = errors.New("no compatible factory symbol found")

// discover lists the shared objects to enable: every .so file in the plugin
// directory if autoloading is on, followed by the files named in the
// configuration. The result is sorted and free of duplicates.
func (m *Manager[S, C]) discover() ([]string, error) {
	if err := mkdir(m.directory()); err != nil {
		return nil, fmt.Errorf("create plugin directory: %w", err)
	}
	var paths []string
	if m.cfg.Autoload {
		files, err := os.ReadDir(m.directory())
		if err != nil {
			m.log.Error("Read plugin directory.", "dir", m.directory(), "error", err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".so") {
				continue
			}
			if m.excluded(f.Name()) {
				m.log.Debug("Plugin skipped.", "file", f.Name())
				continue
			}
			paths = append(paths, filepath.Join(m.directory(), f.Name()))
		}
	}
	for _, file := range m.cfg.Files {
		if file == "" {
			continue
		}
		paths = append(paths, m.resolvePath(file))
	}
	for i, p := range paths {
		paths[i] = filepath.Clean(p)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// excluded reports whether file is named in the Disabled list of the
// configuration. Extensions and case are ignored.
func (m *Manager[S, C]) excluded(file string) bool {
	base := fileBase(file)
	return slices.ContainsFunc(m.cfg.Disabled, func(name string) bool {
		return strings.EqualFold(fileBase(name), base)
	})
}

// findFactory returns the first factory symbol exported by lib along with its
// name.
func findFactory[S any, C any](lib *goplugin.Plugin) (PluginFactory[S, C], string, error) {
	for _, name := range factorySymbols {
		sym, err := lib.Lookup(name)
		if err != nil {
			continue
		}
		f, err := asFactory[S, C](sym)
		if err != nil {
			return nil, name, fmt.Errorf("symbol %s: %w", name, err)
		}
		return f, name, nil
	}
	return nil, "", errNoFactory
}

// asFactory converts a looked up symbol to a PluginFactory. Functions are
// exported as values, variables holding them as pointers.
func asFactory[S any, C any](sym goplugin.Symbol) (PluginFactory[S, C], error) {
	switch fn := sym.(type) {
	case PluginFactory[S, C]:
		return fn, nil
	case *PluginFactory[S, C]:
		return *fn, nil
	case func(*API[S, C]) (Plugin, error):
		return fn, nil
	case *func(*API[S, C]) (Plugin, error):
		return *fn, nil
	case func(*API[S, C]) Plugin:
		return nonNil(fn), nil
	case *func(*API[S, C]) Plugin:
		return nonNil(*fn), nil
	}
	return nil, fmt.Errorf("incompatible type %T", sym)
}

func nonNil[S any, C any](ctor func(*API[S, C]) Plugin) PluginFactory[S, C] {
	return func(api *API[S, C]) (Plugin, error) {
		if p := ctor(api); p != nil {
			return p, nil
		}
		return nil, errors.New("constructor returned nil plugin")
	}
}
