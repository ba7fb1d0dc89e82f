package enchant

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

var (
	// ErrDuplicate is returned when registering an enchantment whose name is
	// already taken.
	ErrDuplicate = errors.New("enchantment already registered")
	// ErrUnknown is returned when looking up an enchantment that was never
	// registered.
	ErrUnknown = errors.New("unknown enchantment")
)

// firstCustomID is the first id handed out to registered enchantments. Lower
// ids are used by the vanilla enchantments of the client.
const firstCustomID = 100

// Registry assigns ids to enchantment types and looks them up by name or id.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]int
	byID   map[int]Type
	order  []int
	next   int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
		byID:   make(map[int]Type),
		next:   firstCustomID,
	}
}

// key folds the case of name. Casers keep state, so a new one is used for
// every call.
func key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Register adds t to the registry and returns the id assigned to it. Names are
// compared without regard to case.
func (r *Registry) Register(t Type) (int, error) {
	if t == nil || strings.TrimSpace(t.Name()) == "" {
		return 0, errors.New("enchantment must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(t.Name())
	if _, ok := r.byName[k]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicate, t.Name())
	}
	id := r.next
	r.next++
	r.byName[k] = id
	r.byID[id] = t
	r.order = append(r.order, id)
	return id, nil
}

// ByName looks up an enchantment by its name.
func (r *Registry) ByName(name string) (Type, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[key(name)]
	if !ok {
		return nil, 0, false
	}
	return r.byID[id], id, true
}

// ByID looks up an enchantment by the id it was registered with.
func (r *Registry) ByID(id int) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// All returns every registered enchantment in registration order.
func (r *Registry) All() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len ...
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Defaults returns the enchantments every registry starts with.
func Defaults() []Type {
	return []Type{LuckOfTheSea, Lure, Channeling, Loyalty, Riptide, Density, Breach, WindBurst}
}
