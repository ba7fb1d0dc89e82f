package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/df-mc/foundation/server/region"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
)

const fileExt = ".yml"

// entry is a stored region. Its raw bytes are kept as read and decoded the
// first time the region is requested.
type entry struct {
	raw    []byte
	digest uint64
	region *region.Region
}

// Disk stores every region in its own YAML file in a folder.
type Disk struct {
	dir string
	log *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// OpenDisk opens the region folder at dir, creating it if needed. Files are
// read but not decoded until their region is requested.
func OpenDisk(dir string, log *slog.Logger) (*Disk, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("region folder must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create region folder: %w", err)
	}
	d := &Disk{dir: dir, log: log.With("subsystem", "region.store"), entries: make(map[string]*entry)}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read region folder: %w", err)
	}
	for _, f := range files {
		name, ok := nameOf(f.Name())
		if !ok || f.IsDir() {
			continue
		}
		if err := d.reload(name); err != nil {
			d.log.Warn("Skipping unreadable region file.", "file", f.Name(), "error", err)
		}
	}
	return d, nil
}

func nameOf(file string) (string, bool) {
	name, ok := strings.CutSuffix(file, fileExt)
	return name, ok && ValidName(name)
}

func (d *Disk) path(name string) string {
	return filepath.Join(d.dir, name+fileExt)
}

// Names ...
func (d *Disk) Names() []string {
	d.mu.Lock()
	names := lo.Keys(d.entries)
	d.mu.Unlock()
	slices.Sort(names)
	return names
}

// Get returns a copy of the region stored under name, decoding it on first
// use.
func (d *Disk) Get(name string) (*region.Region, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	e, ok := d.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if e.region == nil {
		r, err := decode(name, e.raw)
		if err != nil {
			return nil, err
		}
		e.region = r
	}
	return e.region.Clone(name), nil
}

// Put writes r to its file. The file is replaced atomically. Later changes to
// r are not stored until Put is called again.
func (d *Disk) Put(r *region.Region) error {
	if err := checkName(r.Name()); err != nil {
		return err
	}
	raw, err := encode(r)
	if err != nil {
		return fmt.Errorf("encode region %s: %w", r.Name(), err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := writeFileAtomic(d.path(r.Name()), raw); err != nil {
		return fmt.Errorf("write region %s: %w", r.Name(), err)
	}
	d.entries[r.Name()] = &entry{raw: raw, digest: xxhash.Sum64(raw), region: r.Clone(r.Name())}
	return nil
}

// Delete removes the file of a region.
func (d *Disk) Delete(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, ok := d.entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := os.Remove(d.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete region %s: %w", name, err)
	}
	delete(d.entries, name)
	return nil
}

// Close ...
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// reload reads the file of a region again. A file whose content did not change
// keeps its decoded region. A missing file removes the entry. The file is read
// with d.mu held so that a concurrent Put is never overwritten by older content.
func (d *Disk) reload(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, err := os.ReadFile(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		delete(d.entries, name)
		return nil
	}
	if err != nil {
		return err
	}
	digest := xxhash.Sum64(raw)
	if e, ok := d.entries[name]; ok && e.digest == digest {
		return nil
	}
	d.entries[name] = &entry{raw: raw, digest: digest}
	return nil
}

// Watch follows changes made to the region folder by other processes until
// ctx is cancelled. changed, if not nil, is called with the name of every
// region whose file was created, modified or removed.
func (d *Disk) Watch(ctx context.Context, changed func(name string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch region folder: %w", err)
	}
	defer w.Close()
	if err := w.Add(d.dir); err != nil {
		return fmt.Errorf("watch region folder: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("Region folder watcher error.", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, valid := nameOf(filepath.Base(ev.Name))
			if !valid || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			before := d.digest(name)
			if err := d.reload(name); err != nil {
				d.log.Warn("Reload region file.", "region", name, "error", err)
				continue
			}
			if after := d.digest(name); after != before && changed != nil {
				changed(name)
			}
		}
	}
}

// digest returns the digest of the stored raw entry, or 0 if there is none.
func (d *Disk) digest(name string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[name]; ok {
		return e.digest
	}
	return 0
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
