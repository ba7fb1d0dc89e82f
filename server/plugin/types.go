package plugin

import (
	"errors"
	"time"
)

// Plugin defines a dynamically loaded extension that can interact with the server.
type Plugin interface {
	// Name returns the display name of the plugin. It should be unique for the
	// lifetime of the server process.
	Name() string
	// Close releases all resources held by the plugin. It is called once when
	// the server shuts down or when the plugin is disabled.
	Close() error
}

// VersionedPlugin may be implemented by plugins to expose a version string.
type VersionedPlugin interface {
	Version() string
}

// PluginFactory is the expected constructor signature exposed by Go plugins. The
// returned Plugin is enabled immediately and must be ready to handle callbacks.
type PluginFactory[A any, C any] func(api *API[A, C]) (Plugin, error)

// Info describes a plugin currently loaded by the manager.
type Info struct {
	Name    string
	Version string
	Path    string
	// Enabled is the time the plugin was enabled at.
	Enabled time.Time
	// Channels lists the plugin message channels the plugin listens on.
	Channels []string
	// Commands lists the names of the commands the plugin registered.
	Commands []string
}

var (
	// ErrDisabled is returned when the plugin subsystem is disabled.
	ErrDisabled = errors.New("plugin subsystem disabled")
	// ErrAlreadyLoaded is returned when attempting to enable a plugin that has
	// already been loaded.
	ErrAlreadyLoaded = errors.New("plugin already loaded")
	// ErrNameConflict is returned when another loaded plugin already uses the
	// same case-insensitive name.
	ErrNameConflict = errors.New("plugin name already registered")
	// ErrNotFound is returned when attempting to disable or reload a plugin that
	// is not currently loaded.
	ErrNotFound = errors.New("plugin not found")
	// ErrChannelTaken is returned when a plugin listens on a channel that
	// already has a listener.
	ErrChannelTaken = errors.New("channel already has a listener")
	// ErrNotLinked is returned when a message is sent while the server has no
	// connection to the proxy.
	ErrNotLinked = errors.New("server is not linked to a proxy")
)
