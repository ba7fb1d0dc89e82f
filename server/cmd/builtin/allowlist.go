package builtin

import (
	"errors"
	"strings"

	"github.com/df-mc/foundation/server"
	"github.com/df-mc/foundation/server/cmd"
)

type allowlistAddCommand struct {
	operatorOnly
	srv  serverAdapter
	Add  cmd.SubCommand `cmd:"add"`
	Name string         `cmd:"server"`
}

type allowlistRemoveCommand struct {
	operatorOnly
	srv    serverAdapter
	Remove cmd.SubCommand `cmd:"remove"`
	Name   string         `cmd:"server"`
}

type allowlistListCommand struct {
	srv  serverAdapter
	List cmd.SubCommand `cmd:"list"`
}

func newAllowlistCommand(srv serverAdapter) cmd.Command {
	return cmd.New(
		"allowlist",
		"Manages the servers allowed to link to the proxy.",
		[]string{"whitelist"},
		allowlistAddCommand{srv: srv},
		allowlistRemoveCommand{srv: srv},
		allowlistListCommand{srv: srv},
	)
}

func (c allowlistAddCommand) Run(_ cmd.Source, o *cmd.Output) {
	name := strings.TrimSpace(c.Name)
	added, err := c.srv.AllowlistAdd(name)
	if err != nil {
		if errors.Is(err, server.ErrAllowlistInvalidName) {
			o.Errorf("Invalid server name: %q.", name)
			return
		}
		o.Error(err)
		return
	}
	if added {
		o.Printf("Added %s to the allowlist.", name)
		return
	}
	o.Printf("%s is already on the allowlist.", name)
}

func (c allowlistRemoveCommand) Run(_ cmd.Source, o *cmd.Output) {
	name := strings.TrimSpace(c.Name)
	removed, err := c.srv.AllowlistRemove(name)
	if err != nil {
		if errors.Is(err, server.ErrAllowlistInvalidName) {
			o.Errorf("Invalid server name: %q.", name)
			return
		}
		o.Error(err)
		return
	}
	if removed {
		o.Printf("Removed %s from the allowlist.", name)
		return
	}
	o.Printf("%s is not on the allowlist.", name)
}

func (c allowlistListCommand) Run(_ cmd.Source, o *cmd.Output) {
	entries, err := c.srv.AllowlistEntries()
	if err != nil {
		o.Error(err)
		return
	}
	status := "enabled"
	if !c.srv.AllowlistEnabled() {
		status = "disabled"
	}
	o.Printf("Allowlist (%s): %d server(s).", status, len(entries))
	if len(entries) != 0 {
		o.Print(strings.Join(entries, ", "))
	}
}
