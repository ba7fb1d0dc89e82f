package plugin

import (
	"log/slog"
	"time"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/conversation"
	"github.com/df-mc/foundation/server/enchant"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/selection"
	"github.com/df-mc/foundation/server/visual"
)

// Host exposes the subset of server functionality required by the plugin
// manager and APIs.
type Host[S any, C any] interface {
	// Instance returns the underlying server value.
	Instance() S
	// Config returns a snapshot of the server configuration.
	Config() C
	// Logger returns the logger used for structured diagnostics.
	Logger() *slog.Logger
	// StartTime reports the time the server started running.
	StartTime() time.Time
	// Name returns the name the server is known by behind the proxy.
	Name() string
	// Registry returns the plugin message listener registry.
	Registry() *proxy.Registry
	// Messenger returns the connection plugin messages are sent over. It is
	// nil while no link is established.
	Messenger() proxy.Messenger
	// Regions returns the region store.
	Regions() store.Store
	// Visuals returns the scheduler and renderer used to visualise regions.
	Visuals() (*visual.Scheduler, *visual.Renderer)
	// Selections returns the region selection manager.
	Selections() *selection.Manager
	// Conversations returns the conversation manager.
	Conversations() *conversation.Manager
	// Enchantments returns the custom enchantment registry.
	Enchantments() *enchant.Registry
	// ExecuteCommand runs a command on behalf of the given source.
	ExecuteCommand(source cmd.Source, commandLine string)
	// CloseOnProgramEnd closes the server when the program receives termination signals.
	CloseOnProgramEnd()
	// Close shuts the underlying server down.
	Close() error
	// LoadPlugins triggers discovery and activation for configured plugins.
	LoadPlugins()
	// PluginsEnabled reports if the plugin system is active.
	PluginsEnabled() bool
}
