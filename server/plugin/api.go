package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/conversation"
	"github.com/df-mc/foundation/server/enchant"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/df-mc/foundation/server/region"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/selection"
	"github.com/df-mc/foundation/server/visual"
	"log/slog"
)

// API exposes functionality of the server core to dynamically loaded plugins.
type API[S any, C any] struct {
	manager *Manager[S, C]
	host    Host[S, C]
	name    atomic.Value // stores string
	ctx     atomic.Value // stores context.Context
	dataDir atomic.Value // stores string
}

func newAPI[S any, C any](manager *Manager[S, C], host Host[S, C], name string) *API[S, C] {
	api := &API[S, C]{manager: manager, host: host}
	api.name.Store(name)
	api.ctx.Store(context.Background())
	return api
}

func (api *API[S, C]) setName(name string) {
	if name == "" {
		return
	}
	api.name.Store(name)
}

func (api *API[S, C]) pluginName() string {
	if v := api.name.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "plugin"
}

func (api *API[S, C]) setContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	api.ctx.Store(ctx)
}

// Context returns a cancellable context that is invalidated when the plugin is disabled.
func (api *API[S, C]) Context() context.Context {
	if v := api.ctx.Load(); v != nil {
		if ctx, ok := v.(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

func (api *API[S, C]) setDataDirectory(dir string) {
	if dir == "" {
		api.dataDir.Store("")
		return
	}
	api.dataDir.Store(filepath.Clean(dir))
}

// DataDirectory returns the absolute path to the plugin's data directory.
func (api *API[S, C]) DataDirectory() string {
	if v := api.dataDir.Load(); v != nil {
		if dir, ok := v.(string); ok && dir != "" {
			return dir
		}
	}
	return api.manager.dataDirectory(api.pluginName())
}

func (api *API[S, C]) resolveDataPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("data path is empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("data path must be relative")
	}
	base := api.DataDirectory()
	cleaned := filepath.Clean(name)
	target := filepath.Join(base, cleaned)
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("data path escapes plugin directory")
	}
	return target, nil
}

// EnsureDataSubdir ensures a subdirectory inside the plugin data directory exists and returns its absolute path.
func (api *API[S, C]) EnsureDataSubdir(name string) (string, error) {
	if name == "" {
		dir := api.DataDirectory()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return dir, nil
	}
	path, err := api.resolveDataPath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// OpenDataFile opens or creates a file within the plugin data directory using the provided flags and permissions.
func (api *API[S, C]) OpenDataFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	path, err := api.resolveDataPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if perm == 0 {
		perm = 0o644
	}
	return os.OpenFile(path, flag, perm)
}

// Go launches fn on a new goroutine tied to the plugin's lifecycle context. Panics cause the plugin to be disabled.
func (api *API[S, C]) Go(fn func(context.Context)) {
	if fn == nil {
		return
	}
	ctx := api.Context()
	name := api.pluginName()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				api.manager.panicked(name, r)
			}
		}()
		fn(ctx)
	}()
}

// Server returns the underlying server instance.
func (api *API[S, C]) Server() S {
	return api.host.Instance()
}

// Config returns a snapshot of the server configuration at the time of the call.
func (api *API[S, C]) Config() C {
	return api.host.Config()
}

// StartTime reports when the server started running.
func (api *API[S, C]) StartTime() time.Time {
	return api.host.StartTime()
}

// ServerName returns the name the server is known by behind the proxy.
func (api *API[S, C]) ServerName() string {
	return api.host.Name()
}

// Logger returns a logger scoped to the plugin's name for structured logging.
func (api *API[S, C]) Logger() *slog.Logger {
	logger := api.host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("plugin", api.pluginName())
}

// Events returns helpers for subscribing to message, conversation and region
// events. Everything subscribed through it is removed when the plugin is
// disabled.
func (api *API[S, C]) Events() *PluginEvents[S, C] {
	return &PluginEvents[S, C]{api: api}
}

// Listen registers a listener for channel that understands the actions
// passed. It fails with ErrChannelTaken if another listener owns the channel.
// A panic in handler disables the plugin.
func (api *API[S, C]) Listen(channel string, handler proxy.Handler, actions ...proxy.Action) (*proxy.Listener, error) {
	l, _, err := api.Events().Listen(channel, handler, actions...)
	return l, err
}

// Messenger returns the connection plugin messages are sent over.
func (api *API[S, C]) Messenger() (proxy.Messenger, error) {
	m := api.host.Messenger()
	if m == nil {
		return nil, ErrNotLinked
	}
	return m, nil
}

// Send sends msg to the proxy.
func (api *API[S, C]) Send(msg *proxy.OutgoingMessage) error {
	m, err := api.Messenger()
	if err != nil {
		return err
	}
	return msg.Send(m)
}

// Forward asks the proxy to forward msg to server, or to every other server
// if server is proxy.AllServers.
func (api *API[S, C]) Forward(msg *proxy.OutgoingMessage, server string) error {
	m, err := api.Messenger()
	if err != nil {
		return err
	}
	return msg.Forward(m, server)
}

// Channels returns the channels that currently have a listener.
func (api *API[S, C]) Channels() []string {
	return api.host.Registry().Channels()
}

// Regions returns the region store.
func (api *API[S, C]) Regions() store.Store {
	return api.host.Regions()
}

// VisualizeRegion prepares r for visualisation with the server's scheduler
// and renderer.
func (api *API[S, C]) VisualizeRegion(r *region.Region, conf visual.RegionConfig) *visual.Region {
	if conf.Log == nil {
		conf.Log = api.Logger()
	}
	sched, rend := api.host.Visuals()
	return visual.NewRegion(r, sched, rend, conf)
}

// Selections returns the region selection manager.
func (api *API[S, C]) Selections() *selection.Manager {
	return api.host.Selections()
}

// Converse starts a conversation with p, abandoning any conversation p was
// already having.
func (api *API[S, C]) Converse(p conversation.Messenger, first conversation.Prompt, conf conversation.Config) *conversation.Conversation {
	return api.host.Conversations().Start(p, first, conf)
}

// Conversations returns the conversation manager.
func (api *API[S, C]) Conversations() *conversation.Manager {
	return api.host.Conversations()
}

// RegisterEnchantment registers a custom enchantment and returns its id.
func (api *API[S, C]) RegisterEnchantment(t enchant.Type) (int, error) {
	id, err := api.host.Enchantments().Register(t)
	if err != nil {
		return 0, fmt.Errorf("register enchantment: %w", err)
	}
	api.Logger().Debug("Enchantment registered.", "enchantment", t.Name(), "id", id)
	return id, nil
}

// Enchantments returns the custom enchantment registry.
func (api *API[S, C]) Enchantments() *enchant.Registry {
	return api.host.Enchantments()
}

// RegisterCommand registers a command with the global command registry. The
// command is unregistered when the plugin is disabled.
func (api *API[S, C]) RegisterCommand(command cmd.Command) {
	api.manager.events.addCommand(api.pluginName(), command)
}

// Commands returns all registered commands indexed by alias.
func (api *API[S, C]) Commands() map[string]cmd.Command {
	return cmd.Commands()
}

// ExecuteCommand executes a command line on behalf of the provided source.
func (api *API[S, C]) ExecuteCommand(source cmd.Source, commandLine string) {
	api.host.ExecuteCommand(source, commandLine)
}

// Plugins returns metadata for all currently loaded plugins.
func (api *API[S, C]) Plugins() []Info {
	return api.manager.Infos()
}

// Plugin returns a loaded plugin by name if present.
func (api *API[S, C]) Plugin(name string) (Plugin, bool) {
	return api.manager.Plugin(name)
}

// EnablePlugin loads and enables a plugin by file path.
func (api *API[S, C]) EnablePlugin(path string) (Info, error) {
	return api.manager.Enable(path)
}

// DisablePlugin disables a plugin by its name.
func (api *API[S, C]) DisablePlugin(name string) (Info, error) {
	return api.manager.Disable(name)
}

// ReloadPlugin reloads a plugin by disabling and re-enabling it.
func (api *API[S, C]) ReloadPlugin(name string) (Info, error) {
	return api.manager.Reload(name)
}

// CloseOnProgramEnd registers a shutdown handler to close the server on termination signals.
func (api *API[S, C]) CloseOnProgramEnd() {
	api.host.CloseOnProgramEnd()
}

// PluginDirectory returns the directory scanned for plugin binaries.
func (api *API[S, C]) PluginDirectory() string {
	return api.manager.Directory()
}

// PluginDataRoot returns the root directory used to persist plugin data.
func (api *API[S, C]) PluginDataRoot() string {
	return api.manager.DataRoot()
}

// ResolvePluginPath resolves the provided path against the configured plugin directory.
func (api *API[S, C]) ResolvePluginPath(path string) string {
	return api.manager.ResolvePath(path)
}

// DisableAllPlugins disables every currently loaded plugin and returns metadata for each.
func (api *API[S, C]) DisableAllPlugins() ([]Info, error) {
	return api.manager.DisableAll()
}

// CloseServer requests a graceful server shutdown.
func (api *API[S, C]) CloseServer() error {
	return api.host.Close()
}

// LoadPlugins triggers plugin discovery and loading based on configuration.
func (api *API[S, C]) LoadPlugins() {
	api.host.LoadPlugins()
}

// PluginsEnabled reports whether the plugin subsystem is currently active.
func (api *API[S, C]) PluginsEnabled() bool {
	return api.host.PluginsEnabled()
}

// PluginEvents exposes registration helpers for subscribing to message,
// conversation and region events.
type PluginEvents[S any, C any] struct {
	api *API[S, C]
}

// Listen registers a listener for channel. The returned function unregisters
// it again.
func (pe *PluginEvents[S, C]) Listen(channel string, handler proxy.Handler, actions ...proxy.Action) (*proxy.Listener, func(), error) {
	api := pe.api
	wrapped := proxy.HandlerFunc(func(src proxy.Messenger, msg *proxy.IncomingMessage) (err error) {
		if handler == nil {
			return nil
		}
		api.manager.events.invoke(api.pluginName(), func() {
			err = handler.HandleMessage(src, msg)
		})
		return err
	})
	l := proxy.NewListener(channel, wrapped, actions...)
	unsubscribe, err := api.manager.events.addListener(api.pluginName(), l)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", l.Channel(), err)
	}
	return l, unsubscribe, nil
}

// OnConversationEnd registers a function called whenever a conversation on
// the server ends. The returned function removes the handler when called.
func (pe *PluginEvents[S, C]) OnConversationEnd(handler func(conversation.EndEvent)) func() {
	if pe == nil || handler == nil {
		return func() {}
	}
	return pe.api.manager.events.addConversationEnd(pe.api.pluginName(), handler)
}

// OnRegionChange registers a function called with the name of every region
// that is created, changed or removed on disk. The returned function removes
// the handler when called.
func (pe *PluginEvents[S, C]) OnRegionChange(handler func(name string)) func() {
	if pe == nil || handler == nil {
		return func() {}
	}
	return pe.api.manager.events.addRegionChange(pe.api.pluginName(), handler)
}

// OnSubchannel registers a function called with every payload the proxy sends
// back on proxy.BungeeChannel for the sub-channel sub, such as the answers to
// GetServers or PlayerCount. The returned function removes the handler.
func (pe *PluginEvents[S, C]) OnSubchannel(sub string, handler proxy.SubchannelHandler) func() {
	if pe == nil || handler == nil {
		return func() {}
	}
	return pe.api.manager.events.addSubchannel(pe.api.pluginName(), sub, handler)
}

// Clear removes all listeners, commands and handlers previously registered by
// the plugin.
func (pe *PluginEvents[S, C]) Clear() {
	if pe == nil {
		return
	}
	pe.api.manager.events.clear(pe.api.pluginName())
}
