package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/df-mc/foundation/server/proxy/link"
	"github.com/pelletier/go-toml"
)

var (
	// ErrAllowlistUnavailable is returned when the allowlist is not configured.
	ErrAllowlistUnavailable = errors.New("allowlist is not configured")
	// ErrAllowlistInvalidName is returned when a name passed to an allowlist
	// operation cannot be a server name.
	ErrAllowlistInvalidName = errors.New("invalid server name")
)

// Allowlist controls which backend servers may link to the proxy. Entries are
// persisted in a TOML file.
type Allowlist struct {
	mu       sync.RWMutex
	servers  map[string]string
	filePath string
	enabled  bool
}

type allowlistFile struct {
	Servers []string `toml:"servers"`
}

// LoadAllowlist loads the allowlist stored at path. If the file does not exist
// yet, it is created with an empty server list.
func LoadAllowlist(path string) (*Allowlist, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("allowlist path must not be empty")
	}
	a := &Allowlist{servers: make(map[string]string), filePath: path}
	if err := a.Reload(); err != nil {
		return nil, err
	}
	return a, nil
}

// Enabled reports if the allowlist is enforced.
func (a *Allowlist) Enabled() bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetEnabled updates whether the allowlist is enforced.
func (a *Allowlist) SetEnabled(enabled bool) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
}

// Allow implements link.Allower. While enabled, only servers on the list may
// link.
func (a *Allowlist) Allow(_ net.Addr, server string) (string, bool) {
	if a == nil {
		return "", true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.enabled {
		return "", true
	}
	if _, ok := a.servers[normalizeName(server)]; !ok {
		return fmt.Sprintf("Server %q is not on the allowlist.", server), false
	}
	return "", true
}

// Add inserts name into the allowlist. The bool returned reports whether the
// name was newly added.
func (a *Allowlist) Add(name string) (bool, error) {
	if a == nil {
		return false, ErrAllowlistUnavailable
	}
	trimmed := strings.TrimSpace(name)
	if !validServerName(trimmed) {
		return false, ErrAllowlistInvalidName
	}
	key := normalizeName(trimmed)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.servers[key]; exists {
		return false, nil
	}
	a.servers[key] = trimmed
	if err := a.writeLocked(); err != nil {
		delete(a.servers, key)
		return false, err
	}
	return true, nil
}

// Remove deletes name from the allowlist. The bool returned reports whether
// the name was present.
func (a *Allowlist) Remove(name string) (bool, error) {
	if a == nil {
		return false, ErrAllowlistUnavailable
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false, ErrAllowlistInvalidName
	}
	key := normalizeName(trimmed)

	a.mu.Lock()
	defer a.mu.Unlock()
	original, exists := a.servers[key]
	if !exists {
		return false, nil
	}
	delete(a.servers, key)
	if err := a.writeLocked(); err != nil {
		a.servers[key] = original
		return false, err
	}
	return true, nil
}

// Servers returns the allowed server names, sorted case-insensitively.
func (a *Allowlist) Servers() []string {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sortedLocked()
}

// Reload replaces the entries with the contents of the file.
func (a *Allowlist) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	contents, err := os.ReadFile(a.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.servers = make(map[string]string)
			return a.writeLocked()
		}
		return fmt.Errorf("read allowlist: %w", err)
	}
	var data allowlistFile
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("decode allowlist: %w", err)
		}
	}
	a.servers = make(map[string]string, len(data.Servers))
	for _, name := range data.Servers {
		if trimmed := strings.TrimSpace(name); validServerName(trimmed) {
			a.servers[normalizeName(trimmed)] = trimmed
		}
	}
	return nil
}

func (a *Allowlist) writeLocked() error {
	if dir := filepath.Dir(a.filePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create allowlist directory: %w", err)
		}
	}
	encoded, err := toml.Marshal(allowlistFile{Servers: a.sortedLocked()})
	if err != nil {
		return fmt.Errorf("encode allowlist: %w", err)
	}
	if err := os.WriteFile(a.filePath, encoded, 0644); err != nil {
		return fmt.Errorf("write allowlist: %w", err)
	}
	return nil
}

func (a *Allowlist) sortedLocked() []string {
	names := make([]string, 0, len(a.servers))
	for _, name := range a.servers {
		names = append(names, name)
	}
	slices.SortFunc(names, func(x, y string) int {
		if c := strings.Compare(strings.ToLower(x), strings.ToLower(y)); c != 0 {
			return c
		}
		return strings.Compare(x, y)
	})
	return names
}

// validServerName reports whether name could be sent by a backend as its name:
// 1 to 32 letters, digits, '-', '_' or '.'.
func validServerName(name string) bool {
	if name == "" || len(name) > 32 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ link.Allower = (*Allowlist)(nil)
