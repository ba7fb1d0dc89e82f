package builtin

import (
	"slices"
	"strings"
	"time"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/plugin"
)

type pluginListCommand struct {
	operatorOnly
	List cmd.SubCommand `cmd:"list"`
	srv  serverAdapter
}

type pluginInfoCommand struct {
	operatorOnly
	Info cmd.SubCommand `cmd:"info"`
	Name string         `cmd:"name"`
	srv  serverAdapter
}

type pluginEnableCommand struct {
	operatorOnly
	Enable cmd.SubCommand `cmd:"enable"`
	File   string         `cmd:"file"`
	srv    serverAdapter
}

type pluginDisableCommand struct {
	operatorOnly
	Disable cmd.SubCommand `cmd:"disable"`
	Name    string         `cmd:"name"`
	srv     serverAdapter
}

type pluginReloadCommand struct {
	operatorOnly
	Reload cmd.SubCommand `cmd:"reload"`
	Name   string         `cmd:"name"`
	srv    serverAdapter
}

func newPluginCommand(srv serverAdapter) cmd.Command {
	return cmd.New(
		"plugin",
		"Manages dynamic plugins.",
		[]string{"pl"},
		pluginListCommand{srv: srv},
		pluginInfoCommand{srv: srv},
		pluginEnableCommand{srv: srv},
		pluginDisableCommand{srv: srv},
		pluginReloadCommand{srv: srv},
	)
}

func (p pluginListCommand) Run(_ cmd.Source, o *cmd.Output) {
	if !p.srv.PluginsEnabled() {
		o.Print("Plugin subsystem disabled.")
		return
	}
	plugins := slices.Clone(p.srv.Plugins())
	if len(plugins) == 0 {
		o.Print("No plugins loaded.")
		return
	}
	slices.SortStableFunc(plugins, func(a, b plugin.Info) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	for _, info := range plugins {
		if info.Version != "" {
			o.Printf("%s v%s (%s)", info.Name, info.Version, info.Path)
			continue
		}
		o.Printf("%s (%s)", info.Name, info.Path)
	}
}

func (p pluginInfoCommand) Run(_ cmd.Source, o *cmd.Output) {
	name := strings.TrimSpace(p.Name)
	i := slices.IndexFunc(p.srv.Plugins(), func(info plugin.Info) bool {
		return strings.EqualFold(info.Name, name)
	})
	if i == -1 {
		o.Errorf("Plugin %s is not loaded.", name)
		return
	}
	info := p.srv.Plugins()[i]
	o.Printf("%s %s", info.Name, info.Version)
	o.Printf("Path: %s", info.Path)
	if !info.Enabled.IsZero() {
		o.Printf("Enabled: %s ago", time.Since(info.Enabled).Round(time.Second))
	}
	o.Printf("Channels: %s", joinNames(info.Channels))
	o.Printf("Commands: %s", joinNames(info.Commands))
}

func (p pluginEnableCommand) Run(_ cmd.Source, o *cmd.Output) {
	if !p.srv.PluginsEnabled() {
		o.Error("Plugin subsystem disabled.")
		return
	}
	file := strings.TrimSpace(p.File)
	if file == "" {
		o.Error("Plugin file path is required.")
		return
	}
	info, err := p.srv.EnablePlugin(file)
	if err != nil {
		o.Error(err)
		return
	}
	if info.Version != "" {
		o.Printf("Enabled %s v%s from %s.", info.Name, info.Version, info.Path)
		return
	}
	o.Printf("Enabled %s from %s.", info.Name, info.Path)
}

func (p pluginDisableCommand) Run(_ cmd.Source, o *cmd.Output) {
	if !p.srv.PluginsEnabled() {
		o.Error("Plugin subsystem disabled.")
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		o.Error("Plugin name is required.")
		return
	}
	info, err := p.srv.DisablePlugin(name)
	if err != nil {
		o.Error(err)
		return
	}
	o.Printf("Disabled %s.", info.Name)
}

func (p pluginReloadCommand) Run(_ cmd.Source, o *cmd.Output) {
	if !p.srv.PluginsEnabled() {
		o.Error("Plugin subsystem disabled.")
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		o.Error("Plugin name is required.")
		return
	}
	info, err := p.srv.ReloadPlugin(name)
	if err != nil {
		o.Error(err)
		return
	}
	if info.Version != "" {
		o.Printf("Reloaded %s v%s.", info.Name, info.Version)
		return
	}
	o.Printf("Reloaded %s.", info.Name)
}
