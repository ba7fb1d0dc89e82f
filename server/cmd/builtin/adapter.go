package builtin

import (
	"time"

	"github.com/df-mc/foundation/server/conversation"
	"github.com/df-mc/foundation/server/plugin"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/selection"
	"github.com/df-mc/foundation/server/visual"
)

type serverAdapter interface {
	Name() string
	Mode() string
	StartTime() time.Time
	Close() error

	PluginsEnabled() bool
	Plugins() []plugin.Info
	EnablePlugin(path string) (plugin.Info, error)
	DisablePlugin(name string) (plugin.Info, error)
	ReloadPlugin(name string) (plugin.Info, error)

	Registry() *proxy.Registry
	LinkedServers() []string
	Linked() bool

	Regions() store.Store
	Visuals() (*visual.Scheduler, *visual.Renderer)
	Selections() *selection.Manager
	Conversations() *conversation.Manager

	AllowlistAdd(name string) (bool, error)
	AllowlistRemove(name string) (bool, error)
	AllowlistEntries() ([]string, error)
	AllowlistEnabled() bool
}
