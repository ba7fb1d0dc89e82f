package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	goplugin "plugin"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/df-mc/foundation/server/conversation"
)

// entry is a plugin that is currently enabled.
type entry[S any, C any] struct {
	name    string
	version string
	path    string
	impl    Plugin
	lib     *goplugin.Plugin
	api     *API[S, C]
	stop    context.CancelFunc
	since   time.Time
}

func (e entry[S, C]) info() Info {
	return Info{Name: e.name, Version: e.version, Path: e.path, Enabled: e.since}
}

// Manager loads Go plugins from the plugin directory and tracks them while
// they are enabled. Everything a plugin registers through its API is removed
// again when it is disabled.
type Manager[S any, C any] struct {
	host Host[S, C]
	cfg  Config
	log  *slog.Logger

	once    sync.Once
	mu      sync.RWMutex
	entries []entry[S, C]
	events  *eventHub[S, C]
}

// NewManager returns a Manager for the host passed. cfg is copied.
func NewManager[S any, C any](host Host[S, C], cfg Config) *Manager[S, C] {
	cfg.Files = slices.Clone(cfg.Files)
	cfg.Disabled = slices.Clone(cfg.Disabled)
	log := host.Logger()
	if log == nil {
		log = slog.Default()
	}
	m := &Manager[S, C]{host: host, cfg: cfg, log: log}
	m.events = newEventHub(m, log)
	return m
}

// Enabled reports whether the plugin subsystem should run.
func (m *Manager[S, C]) Enabled() bool {
	return m.cfg.Enabled
}

// LoadConfigured enables the plugins found in the plugin directory and those
// listed in the configuration. Only the first call has an effect.
func (m *Manager[S, C]) LoadConfigured() {
	m.once.Do(func() {
		if !m.cfg.Enabled {
			m.log.Debug("Plugin system disabled.")
			return
		}
		paths, err := m.discover()
		if err != nil {
			m.log.Error("Discover plugins.", "dir", m.directory(), "error", err)
			return
		}
		if len(paths) == 0 {
			m.log.Debug("No plugins discovered.")
			return
		}
		for _, path := range paths {
			if _, err := m.Enable(path); err != nil {
				m.log.Error("Enable plugin.", "path", path, "error", err)
			}
		}
	})
}

// Infos returns the plugins currently enabled, in load order.
func (m *Manager[S, C]) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.entries))
	for _, e := range m.entries {
		infos = append(infos, m.describe(e))
	}
	return infos
}

// Info looks up an enabled plugin by name. Names are case-insensitive.
func (m *Manager[S, C]) Info(name string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(name); i >= 0 {
		return m.describe(m.entries[i]), true
	}
	return Info{}, false
}

// Plugin returns an enabled plugin by name. Names are case-insensitive.
func (m *Manager[S, C]) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(name); i >= 0 {
		return m.entries[i].impl, true
	}
	return nil, false
}

// index returns the position of the plugin called name or -1. m.mu must be
// held.
func (m *Manager[S, C]) index(name string) int {
	return slices.IndexFunc(m.entries, func(e entry[S, C]) bool {
		return strings.EqualFold(e.name, name)
	})
}

func (m *Manager[S, C]) describe(e entry[S, C]) Info {
	info := e.info()
	info.Channels, info.Commands = m.events.owned(e.name)
	return info
}

// Enable opens the shared object at path, calls its factory and adds the
// plugin it returns. Relative paths are resolved against the plugin directory.
func (m *Manager[S, C]) Enable(path string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	if err := m.prepareDirectories(); err != nil {
		return Info{}, err
	}
	path = m.resolvePath(path)

	m.mu.RLock()
	i := slices.IndexFunc(m.entries, func(e entry[S, C]) bool { return e.path == path })
	if i >= 0 {
		info := m.entries[i].info()
		m.mu.RUnlock()
		return info, ErrAlreadyLoaded
	}
	m.mu.RUnlock()

	lib, err := goplugin.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open plugin: %w", err)
	}
	factory, symbol, err := findFactory[S, C](lib)
	if err != nil {
		return Info{}, fmt.Errorf("locate plugin factory: %w", err)
	}
	e, err := m.instantiate(path, factory, symbol)
	if err != nil {
		return Info{}, err
	}
	e.lib = lib
	if err := m.insert(e); err != nil {
		// Registrations are keyed by name and belong to the plugin already
		// enabled under it, so only the context is cancelled here.
		e.stop()
		if cerr := e.impl.Close(); cerr != nil {
			m.log.Error("Close conflicting plugin.", "name", e.name, "path", path, "error", cerr)
		}
		return Info{}, err
	}

	log := m.log.With("name", e.name, "path", e.path, "symbol", symbol)
	if e.version != "" {
		log = log.With("version", e.version)
	}
	log.Info("Plugin enabled.")
	return e.info(), nil
}

// instantiate creates the API of a new plugin and calls factory with it. The
// plugin starts out named after its file and is renamed to whatever its Name
// method reports, moving its data directory along.
func (m *Manager[S, C]) instantiate(path string, factory PluginFactory[S, C], symbol string) (e entry[S, C], err error) {
	ctx, stop := context.WithCancel(context.Background())
	api := newAPI(m, m.host, fileBase(path))
	api.setContext(ctx)
	e = entry[S, C]{path: path, api: api, stop: stop}
	defer func() {
		if err != nil {
			m.release(e)
		}
	}()

	dir := m.dataDirectory(api.pluginName())
	if err := mkdir(dir); err != nil {
		return e, fmt.Errorf("create plugin data directory: %w", err)
	}
	api.setDataDirectory(dir)

	e.impl, err = factory(api)
	if err != nil {
		return e, fmt.Errorf("initialise plugin via %s: %w", symbol, err)
	}
	if e.impl == nil {
		return e, fmt.Errorf("initialise plugin via %s: factory returned nil", symbol)
	}

	e.name = api.pluginName()
	if name := e.impl.Name(); name != "" && name != e.name {
		api.setName(name)
		m.events.rename(e.name, name)
		e.name = name
	}
	if target := m.dataDirectory(e.name); target != api.DataDirectory() {
		if err := moveData(api.DataDirectory(), target); err != nil {
			m.log.Error("Move plugin data directory.", "plugin", e.name, "error", err)
		} else {
			api.setDataDirectory(target)
		}
	}
	if v, ok := e.impl.(VersionedPlugin); ok {
		e.version = v.Version()
	}
	e.since = time.Now()
	return e, nil
}

func (m *Manager[S, C]) insert(e entry[S, C]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(e.name) >= 0 {
		return fmt.Errorf("%w: %s", ErrNameConflict, e.name)
	}
	m.entries = append(m.entries, e)
	return nil
}

// take removes the plugin called name from the manager and returns it.
func (m *Manager[S, C]) take(name string) (entry[S, C], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(name)
	if i < 0 {
		return entry[S, C]{}, false
	}
	e := m.entries[i]
	m.entries = slices.Delete(m.entries, i, i+1)
	return e, true
}

// release cancels the context of a plugin and drops everything it registered.
func (m *Manager[S, C]) release(e entry[S, C]) {
	if e.stop != nil {
		e.stop()
	}
	name := e.name
	if name == "" && e.api != nil {
		name = e.api.pluginName()
	}
	if name != "" {
		m.events.clear(name)
	}
}

// Disable closes the plugin called name and removes it. If Close fails the
// plugin stays enabled.
func (m *Manager[S, C]) Disable(name string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	e, ok := m.take(name)
	if !ok {
		return Info{}, ErrNotFound
	}
	if err := e.impl.Close(); err != nil {
		m.mu.Lock()
		m.entries = append(m.entries, e)
		m.mu.Unlock()
		return Info{}, fmt.Errorf("close plugin: %w", err)
	}
	m.release(e)
	m.log.Info("Plugin disabled.", "name", e.name, "path", e.path)
	return e.info(), nil
}

// Reload disables the plugin called name and enables it again from the same
// file. Loading an older version than the one disabled is logged as a warning.
func (m *Manager[S, C]) Reload(name string) (Info, error) {
	before, err := m.Disable(name)
	if err != nil {
		return Info{}, err
	}
	after, err := m.Enable(before.Path)
	if err != nil {
		return Info{}, err
	}

	log := m.log.With("name", after.Name, "path", after.Path)
	if after.Version != "" {
		log = log.With("version", after.Version)
	}
	if after.Version != before.Version {
		log = log.With("previous", before.Version)
	}
	if compareVersions(after.Version, before.Version) < 0 {
		log.Warn("Plugin reloaded with an older version.")
	} else {
		log.Info("Plugin reloaded.")
	}
	return after, nil
}

// DisableAll disables every plugin, the most recently enabled first, and
// returns them in that order. It stops at the first plugin that fails to
// close.
func (m *Manager[S, C]) DisableAll() ([]Info, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}
	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	for _, e := range slices.Backward(m.entries) {
		names = append(names, e.name)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(names))
	for _, name := range names {
		info, err := m.Disable(name)
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Shutdown disables every plugin, the most recently enabled first. Unlike
// DisableAll, a plugin failing to close does not keep it enabled.
func (m *Manager[S, C]) Shutdown() {
	m.mu.Lock()
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()

	for _, e := range slices.Backward(entries) {
		m.release(e)
		if err := e.impl.Close(); err != nil {
			m.log.Error("Disable plugin.", "name", e.name, "path", e.path, "error", err)
			continue
		}
		m.log.Info("Plugin disabled.", "name", e.name, "path", e.path)
	}
}

// panicked is called after a callback of the plugin called name panicked.
// The plugin loses its registrations at once and is disabled in the
// background, as the panic may have happened while one of its locks was held.
func (m *Manager[S, C]) panicked(name string, reason any) {
	if name == "" {
		name = "plugin"
	}
	m.events.clear(name)
	log := m.log.With("subsystem", "plugin.runtime", "plugin", name)
	log.Error("Plugin panic.", "panic", reason, "stack", string(debug.Stack()))
	go func() {
		info, err := m.Disable(name)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			log.Error("Disable plugin after panic.", "error", err)
		default:
			log.Warn("Plugin disabled after panic.", "path", info.Path, "version", info.Version)
		}
	}()
}

// ConversationEnded passes e to the conversation end subscriptions of every
// plugin.
func (m *Manager[S, C]) ConversationEnded(e conversation.EndEvent) {
	m.events.conversationEnded(e)
}

// RegionChanged passes the name of a region that changed on disk to the region
// subscriptions of every plugin.
func (m *Manager[S, C]) RegionChanged(name string) {
	m.events.regionChanged(name)
}
