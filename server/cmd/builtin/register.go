package builtin

import (
	"github.com/df-mc/foundation/server/cmd"
)

// Register registers the built-in command set on the provided server.
func Register(srv serverAdapter) {
	cmd.Register(newHelpCommand())
	cmd.Register(newAboutCommand(srv))
	cmd.Register(newStatusCommand(srv))
	cmd.Register(newStopCommand(srv))
	cmd.Register(newPluginCommand(srv))
	cmd.Register(newRegionCommand(srv))
	cmd.Register(newProxyCommand(srv))
	cmd.Register(newAllowlistCommand(srv))
}
