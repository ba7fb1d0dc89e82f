package builtin

import (
	"strings"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/google/uuid"
)

type namedSource interface {
	Name() string
}

// playerSource is implemented by sources that are players on the server.
type playerSource interface {
	UUID() uuid.UUID
}

// sourceName returns a user facing name for the source invoking a command.
func sourceName(src cmd.Source) string {
	if n, ok := src.(namedSource); ok {
		return n.Name()
	}
	return "Server"
}

// operatorOnly is embedded in commands that players may not run.
type operatorOnly struct{}

func (operatorOnly) Allow(src cmd.Source) bool {
	_, isPlayer := src.(playerSource)
	return !isPlayer
}

// joinNames joins names into a readable list.
func joinNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func bytesToMiB(v uint64) float64 {
	return float64(v) / (1024 * 1024)
}
