package cmd

import (
	"maps"
	"sync"
)

var (
	commandsMu sync.RWMutex
	commands   = map[string]Command{}
)

// Register registers a command with its name and all aliases. Commands
// registered earlier under the same alias are replaced.
func Register(command Command) {
	commandsMu.Lock()
	defer commandsMu.Unlock()
	for _, alias := range command.aliases {
		commands[alias] = command
	}
}

// Unregister removes every alias that points at the command with the name
// passed. It reports whether the command was registered.
func Unregister(name string) bool {
	commandsMu.Lock()
	defer commandsMu.Unlock()
	command, ok := commands[name]
	if !ok {
		return false
	}
	for _, alias := range command.aliases {
		if c, ok := commands[alias]; ok && c.name == command.name {
			delete(commands, alias)
		}
	}
	return true
}

// ByAlias looks up a command by an alias. If none could be found, false is
// returned.
func ByAlias(alias string) (Command, bool) {
	commandsMu.RLock()
	defer commandsMu.RUnlock()
	command, ok := commands[alias]
	return command, ok
}

// Commands returns a map of all registered commands indexed by the alias
// they were registered with.
func Commands() map[string]Command {
	commandsMu.RLock()
	defer commandsMu.RUnlock()
	return maps.Clone(commands)
}
