package server

import (
	"log/slog"
	"time"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/conversation"
	"github.com/df-mc/foundation/server/enchant"
	"github.com/df-mc/foundation/server/plugin"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/selection"
	"github.com/df-mc/foundation/server/visual"
)

type pluginHost struct {
	srv *Server
}

func newPluginHost(srv *Server) plugin.Host[*Server, Config] {
	return pluginHost{srv: srv}
}

func (h pluginHost) Instance() *Server { return h.srv }

func (h pluginHost) Config() Config { return h.srv.conf }

func (h pluginHost) Logger() *slog.Logger { return h.srv.log }

func (h pluginHost) StartTime() time.Time { return h.srv.StartTime() }

func (h pluginHost) Name() string { return h.srv.Name() }

func (h pluginHost) Registry() *proxy.Registry { return h.srv.Registry() }

func (h pluginHost) Messenger() proxy.Messenger { return h.srv.Messenger() }

func (h pluginHost) Regions() store.Store { return h.srv.Regions() }

func (h pluginHost) Visuals() (*visual.Scheduler, *visual.Renderer) { return h.srv.Visuals() }

func (h pluginHost) Selections() *selection.Manager { return h.srv.Selections() }

func (h pluginHost) Conversations() *conversation.Manager { return h.srv.Conversations() }

func (h pluginHost) Enchantments() *enchant.Registry { return h.srv.Enchantments() }

func (h pluginHost) ExecuteCommand(source cmd.Source, commandLine string) {
	h.srv.ExecuteCommand(source, commandLine)
}

func (h pluginHost) CloseOnProgramEnd() { h.srv.CloseOnProgramEnd() }

func (h pluginHost) Close() error { return h.srv.Close() }

func (h pluginHost) LoadPlugins() { h.srv.LoadPlugins() }

func (h pluginHost) PluginsEnabled() bool { return h.srv.PluginsEnabled() }

var _ plugin.Host[*Server, Config] = pluginHost{}

// LoadPlugins loads the plugins listed in the configuration, and every plugin
// in the plugin directory if autoload is enabled.
func (srv *Server) LoadPlugins() { srv.plugins.LoadConfigured() }

// PluginsEnabled reports if the plugin system is active.
func (srv *Server) PluginsEnabled() bool { return srv.plugins.Enabled() }

// Plugins describes every loaded plugin.
func (srv *Server) Plugins() []PluginInfo { return srv.plugins.Infos() }

// Plugin returns the loaded plugin with the name passed.
func (srv *Server) Plugin(name string) (Plugin, bool) { return srv.plugins.Plugin(name) }

// EnablePlugin loads and enables the plugin file at path.
func (srv *Server) EnablePlugin(path string) (PluginInfo, error) { return srv.plugins.Enable(path) }

// DisablePlugin disables the plugin with the name passed.
func (srv *Server) DisablePlugin(name string) (PluginInfo, error) { return srv.plugins.Disable(name) }

// ReloadPlugin disables the plugin with the name passed and loads its file again.
func (srv *Server) ReloadPlugin(name string) (PluginInfo, error) { return srv.plugins.Reload(name) }

// DisableAllPlugins disables every loaded plugin.
func (srv *Server) DisableAllPlugins() ([]PluginInfo, error) { return srv.plugins.DisableAll() }

// AllowlistEnabled reports if backends are filtered by the allowlist.
func (srv *Server) AllowlistEnabled() bool { return srv.allowlist.Enabled() }

// AllowlistAdd adds a backend server name to the allowlist.
func (srv *Server) AllowlistAdd(name string) (bool, error) { return srv.allowlist.Add(name) }

// AllowlistRemove removes a backend server name from the allowlist.
func (srv *Server) AllowlistRemove(name string) (bool, error) { return srv.allowlist.Remove(name) }

// AllowlistEntries returns the server names on the allowlist.
func (srv *Server) AllowlistEntries() ([]string, error) {
	if srv.allowlist == nil {
		return nil, ErrAllowlistUnavailable
	}
	return srv.allowlist.Servers(), nil
}
