package server

import "github.com/df-mc/foundation/server/plugin"

type (
	Plugin          = plugin.Plugin
	VersionedPlugin = plugin.VersionedPlugin
	PluginFactory   = plugin.PluginFactory[*Server, Config]
	PluginInfo      = plugin.Info
	PluginAPI       = plugin.API[*Server, Config]
	PluginEvents    = plugin.PluginEvents[*Server, Config]
)

var (
	ErrPluginsDisabled     = plugin.ErrDisabled
	ErrPluginAlreadyLoaded = plugin.ErrAlreadyLoaded
	ErrPluginNameConflict  = plugin.ErrNameConflict
	ErrPluginNotFound      = plugin.ErrNotFound
	ErrPluginChannelTaken  = plugin.ErrChannelTaken
	ErrNotLinked           = plugin.ErrNotLinked
)
