package cmd

import (
	"strings"
)

// ExecuteLine executes a command line on behalf of the Source passed. The
// leading slash is optional. If the command cannot be found, an error is sent
// back to the Source. The optional before function may be supplied to
// intercept execution; returning false from it will stop execution.
func ExecuteLine(source Source, commandLine string, before func(Command, []string) bool) {
	if source == nil {
		panic("cmd.ExecuteLine: source must not be nil")
	}
	commandLine = strings.TrimSpace(commandLine)
	if commandLine == "" {
		return
	}
	name, rest, _ := strings.Cut(strings.TrimPrefix(commandLine, "/"), " ")
	name = strings.ToLower(name)
	if name == "" {
		return
	}

	command, ok := ByAlias(name)
	if !ok {
		output := &Output{}
		output.Errorf("Unknown command: %s. Please check that the command exists and that you have permission to use it.", name)
		source.SendCommandOutput(output)
		return
	}
	if before != nil && !before(command, splitArgs(rest)) {
		return
	}
	command.Execute(rest, source)
}
