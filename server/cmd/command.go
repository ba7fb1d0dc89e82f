package cmd

import (
	"fmt"
	"reflect"
	"strings"
)

// Runnable represents a Command that may be run by a Source. The struct that
// implements Runnable may have exported fields that are filled in with the
// arguments of the command line before Run is called. Supported field types
// are string, bool, the signed and unsigned integer types, float32, float64,
// SubCommand, Optional[T] and Varargs.
type Runnable interface {
	// Run runs the Command, writing its output to o.
	Run(src Source, o *Output)
}

// Allower may be implemented by a Runnable to restrict which Sources may run
// it.
type Allower interface {
	// Allow reports if src may run the Runnable.
	Allow(src Source) bool
}

// Source is the entity running a Command.
type Source interface {
	// SendCommandOutput sends the Output of a Command to the Source.
	SendCommandOutput(o *Output)
}

// Command is a named, runnable command with one or more overloads.
type Command struct {
	name        string
	description string
	aliases     []string
	v           []reflect.Value
}

// New creates a Command with the name, description and aliases passed. Each
// Runnable is an overload of the command: when it is executed, the first
// Runnable whose fields accept the arguments passed is run. New panics if a
// Runnable is not a struct or has a field of an unsupported type.
func New(name, description string, aliases []string, r ...Runnable) Command {
	if len(r) == 0 {
		panic("cmd.New: at least one Runnable must be passed")
	}
	v := make([]reflect.Value, len(r))
	for i, runnable := range r {
		rv := reflect.ValueOf(runnable)
		if rv.Kind() == reflect.Pointer {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			panic(fmt.Sprintf("cmd.New: Runnable %T must be a struct", runnable))
		}
		if err := verifyFields(rv.Type()); err != nil {
			panic(fmt.Sprintf("cmd.New: Runnable %T: %v", runnable, err))
		}
		v[i] = rv
	}
	name = strings.ToLower(name)
	aliases = append([]string{name}, aliases...)
	for i := range aliases {
		aliases[i] = strings.ToLower(aliases[i])
	}
	return Command{name: name, description: description, aliases: dedupe(aliases), v: v}
}

func dedupe(values []string) []string {
	out := values[:0]
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Name returns the name of the command.
func (c Command) Name() string {
	return c.name
}

// Description returns the description of the command.
func (c Command) Description() string {
	return c.description
}

// Aliases returns the name and aliases of the command.
func (c Command) Aliases() []string {
	return append([]string(nil), c.aliases...)
}

// Runnables returns the overloads of the command that src is allowed to run,
// indexed by their position in the list passed to New.
func (c Command) Runnables(src Source) map[int]Runnable {
	m := make(map[int]Runnable, len(c.v))
	for i, v := range c.v {
		r := v.Interface().(Runnable)
		if a, ok := r.(Allower); ok && !a.Allow(src) {
			continue
		}
		m[i] = r
	}
	return m
}

// Usage returns one usage line per overload, such as
// `/plugin enable <file: string>`.
func (c Command) Usage() string {
	lines := make([]string, 0, len(c.v))
	for _, v := range c.v {
		parts := []string{"/" + c.name}
		for _, f := range fields(v.Type()) {
			parts = append(parts, f.usage())
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}

// Execute runs the command with the arguments passed on behalf of src. The
// Output is sent to src once the command completes.
func (c Command) Execute(args string, src Source) {
	o := &Output{}
	defer src.SendCommandOutput(o)

	runnables := c.Runnables(src)
	if len(runnables) == 0 {
		o.Errorf("You do not have permission to use /%s.", c.name)
		return
	}
	var (
		best    error
		bestPos = -1
	)
	for i, v := range c.v {
		if _, ok := runnables[i]; !ok {
			continue
		}
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		pos, err := parseArgs(cp, splitArgs(args))
		if err == nil {
			cp.Interface().(Runnable).Run(src, o)
			return
		}
		if pos > bestPos {
			best, bestPos = err, pos
		}
	}
	o.Error(best)
}

// String ...
func (c Command) String() string {
	return c.Usage()
}

// splitArgs splits a command line into arguments. Double quotes group words
// that contain spaces.
func splitArgs(line string) []string {
	var (
		args   []string
		cur    strings.Builder
		quoted bool
		has    bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			has = true
		case r == ' ' && !quoted:
			if has {
				args = append(args, cur.String())
				cur.Reset()
				has = false
			}
		default:
			cur.WriteRune(r)
			has = true
		}
	}
	if has {
		args = append(args, cur.String())
	}
	return args
}
