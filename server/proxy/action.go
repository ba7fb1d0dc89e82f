package proxy

import (
	"slices"
	"strings"
)

// Action names a kind of message and describes, in order, the types of the
// values the message carries.
type Action interface {
	// Name returns the name of the action as written on the wire.
	Name() string
	// Content returns the content types of the action's value slots in the
	// order they are written and read.
	Content() []ContentType
}

// NewAction returns an Action with the name and content types passed.
func NewAction(name string, content ...ContentType) Action {
	return action{name: name, content: slices.Clone(content)}
}

type action struct {
	name    string
	content []ContentType
}

// Name ...
func (a action) Name() string { return a.name }

// Content ...
func (a action) Content() []ContentType { return slices.Clone(a.content) }

// actionTable resolves actions of a listener by name.
type actionTable struct {
	ordered []Action
	byName  map[string]Action
}

func newActionTable(actions []Action) actionTable {
	t := actionTable{byName: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if a == nil {
			continue
		}
		if _, ok := t.byName[a.Name()]; ok {
			panic("proxy: duplicate action " + a.Name())
		}
		for _, c := range a.Content() {
			if !c.Valid() {
				panic("proxy: action " + a.Name() + " has invalid content type " + c.String())
			}
		}
		t.byName[a.Name()] = a
		t.ordered = append(t.ordered, a)
	}
	return t
}

func (t actionTable) lookup(name string) (Action, bool) {
	a, ok := t.byName[name]
	return a, ok
}

func (t actionTable) names() string {
	names := make([]string, len(t.ordered))
	for i, a := range t.ordered {
		names[i] = a.Name()
	}
	return strings.Join(names, ", ")
}
