// Package store persists regions by name.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/df-mc/foundation/server/region"
	"gopkg.in/yaml.v2"
)

var (
	// ErrNotFound is returned when no region with a name is stored.
	ErrNotFound = errors.New("region not found")
	// ErrInvalidName is returned when a region name cannot be used as a key.
	ErrInvalidName = errors.New("invalid region name")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("region store closed")
)

// Store holds regions by name. Implementations are safe for concurrent use.
type Store interface {
	// Names returns the names of all stored regions, sorted.
	Names() []string
	// Get returns the region stored under name, or ErrNotFound.
	Get(name string) (*region.Region, error)
	// Put stores r under its name, replacing any region stored before.
	Put(r *region.Region) error
	// Delete removes the region stored under name, or returns ErrNotFound.
	Delete(name string) error
	// Close releases the resources held by the store.
	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendDisk    = "disk"
	BackendLevelDB = "leveldb"
)

// Config selects and configures a Store backend.
type Config struct {
	// Backend is either BackendDisk or BackendLevelDB. Empty means disk.
	Backend string
	// Dir is the folder the regions, or the database, are stored in.
	Dir string
	// Log is used to report entries that fail to load. If nil, slog.Default()
	// is used.
	Log *slog.Logger
}

// Open opens the backend selected by conf.
func Open(conf Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(conf.Backend)) {
	case "", BackendDisk:
		return OpenDisk(conf.Dir, conf.Log)
	case BackendLevelDB:
		return OpenLevelDB(conf.Dir, conf.Log)
	default:
		return nil, fmt.Errorf("unknown region store backend %q", conf.Backend)
	}
}

// ValidName reports whether name may be used as a region name. Names are made
// of letters, digits, '-', '_' and '.', and may not start with a '.'.
func ValidName(name string) bool {
	if name == "" || len(name) > 64 || name[0] == '.' {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func checkName(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func encode(r *region.Region) ([]byte, error) {
	return yaml.Marshal(r.Record())
}

func decode(name string, raw []byte) (*region.Region, error) {
	var rec region.Record
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode region %s: %w", name, err)
	}
	if rec.Name == "" {
		rec.Name = name
	}
	if rec.Name != name {
		return nil, fmt.Errorf("decode region %s: record is named %s", name, rec.Name)
	}
	return rec.Region()
}
