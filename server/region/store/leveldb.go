package store

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/df-mc/foundation/server/region"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/df-mc/goleveldb/leveldb/util"
)

const keyPrefix = "region/"

// LevelDB stores regions as YAML values in a LevelDB database under keys of
// the form "region/<name>". Values are decoded when first requested.
type LevelDB struct {
	db  *leveldb.DB
	log *slog.Logger

	mu    sync.Mutex
	cache map[string]*region.Region
	names map[string]struct{}
}

// OpenLevelDB opens or creates the database at dir.
func OpenLevelDB(dir string, log *slog.Logger) (*LevelDB, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("region database path must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{Compression: opt.FlateCompression})
	if err != nil {
		return nil, fmt.Errorf("open region database: %w", err)
	}
	l := &LevelDB{
		db:    db,
		log:   log.With("subsystem", "region.store"),
		cache: make(map[string]*region.Region),
		names: make(map[string]struct{}),
	}
	it := db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	for it.Next() {
		l.names[strings.TrimPrefix(string(it.Key()), keyPrefix)] = struct{}{}
	}
	it.Release()
	if err := it.Error(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("list regions: %w", err)
	}
	l.log.Debug("Region database opened.", "path", dir, "regions", len(l.names))
	return l, nil
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

// Names ...
func (l *LevelDB) Names() []string {
	l.mu.Lock()
	names := make([]string, 0, len(l.names))
	for name := range l.names {
		names = append(names, name)
	}
	l.mu.Unlock()
	slices.Sort(names)
	return names
}

// Get returns a copy of the region stored under name.
func (l *LevelDB) Get(name string) (*region.Region, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.cache[name]; ok {
		return r.Clone(name), nil
	}
	raw, err := l.db.Get(key(name), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case errors.Is(err, leveldb.ErrClosed):
		return nil, ErrClosed
	case err != nil:
		return nil, fmt.Errorf("read region %s: %w", name, err)
	}
	r, err := decode(name, raw)
	if err != nil {
		return nil, err
	}
	l.cache[name] = r
	return r.Clone(name), nil
}

// Put ...
func (l *LevelDB) Put(r *region.Region) error {
	if err := checkName(r.Name()); err != nil {
		return err
	}
	raw, err := encode(r)
	if err != nil {
		return fmt.Errorf("encode region %s: %w", r.Name(), err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.db.Put(key(r.Name()), raw, &opt.WriteOptions{Sync: true}); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("write region %s: %w", r.Name(), err)
	}
	l.cache[r.Name()] = r.Clone(r.Name())
	l.names[r.Name()] = struct{}{}
	return nil
}

// Delete ...
func (l *LevelDB) Delete(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.names[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := l.db.Delete(key(name), nil); err != nil {
		return fmt.Errorf("delete region %s: %w", name, err)
	}
	delete(l.cache, name)
	delete(l.names, name)
	return nil
}

// Close closes the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
