package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/df-mc/foundation/server/region"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openBoth(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{}
	for _, backend := range []string{BackendDisk, BackendLevelDB} {
		s, err := Open(Config{Backend: backend, Dir: filepath.Join(t.TempDir(), backend), Log: discardLogger()})
		if err != nil {
			t.Fatalf("open %s: %v", backend, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		stores[backend] = s
	}
	return stores
}

func TestStoreOperations(t *testing.T) {
	for backend, s := range openBoth(t) {
		spawn := region.MustNew("spawn", region.Loc("world", 0, 60, 0), region.Loc("world", 20, 80, 20))
		if err := s.Put(spawn); err != nil {
			t.Fatalf("%s: put: %v", backend, err)
		}
		if err := s.Put(region.MustNew("arena", region.Loc("world", 1, 1, 1), region.Loc("world", 2, 2, 2))); err != nil {
			t.Fatalf("%s: put: %v", backend, err)
		}
		if names := s.Names(); !slices.Equal(names, []string{"arena", "spawn"}) {
			t.Fatalf("%s: unexpected names %v", backend, names)
		}
		got, err := s.Get("spawn")
		if err != nil {
			t.Fatalf("%s: get: %v", backend, err)
		}
		if got.Volume() != spawn.Volume() {
			t.Fatalf("%s: stored region differs: %v", backend, got)
		}
		if err := s.Delete("spawn"); err != nil {
			t.Fatalf("%s: delete: %v", backend, err)
		}
		if _, err := s.Get("spawn"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound after delete, got %v", backend, err)
		}
		if err := s.Delete("spawn"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound deleting twice, got %v", backend, err)
		}
		bad, _ := region.New("../escape", nil, nil)
		if err := s.Put(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("%s: expected ErrInvalidName, got %v", backend, err)
		}
	}
}

func TestDiskLazyDecode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: broken\nprimary: world x 1 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ok.yml"), []byte("name: ok\nprimary: world 1 2 3\nsecondary: world 4 5 6\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := OpenDisk(dir, discardLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	// A broken file only fails when it is requested.
	if names := d.Names(); !slices.Equal(names, []string{"broken", "ok"}) {
		t.Fatalf("unexpected names %v", names)
	}
	if _, err := d.Get("broken"); !errors.Is(err, region.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
	if _, err := d.Get("ok"); err != nil {
		t.Fatalf("get: %v", err)
	}
	cached := d.entries["ok"].region
	if cached == nil {
		t.Fatalf("decoded region was not cached")
	}

	// Reloading unchanged content keeps the decoded region.
	if err := d.reload("ok"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if d.entries["ok"].region != cached {
		t.Fatalf("unchanged reload dropped the cached region")
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	for backend, s := range openBoth(t) {
		r := region.MustNew("spawn", region.Loc("world", 0, 0, 0), region.Loc("world", 1, 1, 1))
		if err := s.Put(r); err != nil {
			t.Fatalf("%s: put: %v", backend, err)
		}
		// Neither the region passed to Put nor one returned by Get is shared
		// with the store.
		far := region.Loc("world", 9, 9, 9)
		if err := r.SetSecondary(&far); err != nil {
			t.Fatalf("%s: set secondary: %v", backend, err)
		}
		got, err := s.Get("spawn")
		if err != nil {
			t.Fatalf("%s: get: %v", backend, err)
		}
		if got.Volume() != 8 {
			t.Fatalf("%s: unsaved change reached the store, volume %d", backend, got.Volume())
		}
		below := region.Loc("world", -9, -9, -9)
		if err := got.SetPrimary(&below); err != nil {
			t.Fatalf("%s: set primary: %v", backend, err)
		}
		if again, _ := s.Get("spawn"); again.Volume() != 8 {
			t.Fatalf("%s: change to a returned region reached the store, volume %d", backend, again.Volume())
		}
	}
}

func TestDiskPersists(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDisk(dir, discardLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := d.Put(region.MustNew("mine", region.Loc("world", -5, 10, -5), region.Loc("world", 5, 20, 5))); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = d.Close()
	if _, err := d.Get("mine"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "mine.yml" {
		t.Fatalf("expected only mine.yml in folder, got %v", entries)
	}
	reopened, err := OpenDisk(dir, discardLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	r, err := reopened.Get("mine")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v := r.Volume(); v != 11*11*11 {
		t.Fatalf("unexpected volume %d", v)
	}
}

func TestDiskWatch(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDisk(dir, discardLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan string, 8)
	watching := make(chan error, 1)
	go func() { watching <- d.Watch(ctx, func(name string) { changed <- name }) }()

	// The watcher may not be registered yet, so keep writing until it notices.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case name := <-changed:
			if name != "external" {
				t.Fatalf("unexpected change %s", name)
			}
			if _, err := d.Get("external"); err != nil {
				t.Fatalf("get watched region: %v", err)
			}
			cancel()
			if err := <-watching; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-tick.C:
			data := []byte("name: external\nprimary: world 0 0 0\nsecondary: world " + string(rune('1'+i%9)) + " 1 1\n")
			if err := os.WriteFile(filepath.Join(dir, "external.yml"), data, 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatalf("watcher did not report the external change")
		}
	}
}

func TestValidName(t *testing.T) {
	for name, want := range map[string]bool{
		"spawn":      true,
		"Arena_2.v1": true,
		"":           false,
		".hidden":    false,
		"a/b":        false,
		"with space": false,
	} {
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}
