package server

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestAllowlistPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "allowlist.toml")
	al, err := LoadAllowlist(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("allowlist file not created: %v", err)
	}
	for _, name := range []string{"Survival", "lobby", "creative-1"} {
		if added, err := al.Add(name); err != nil || !added {
			t.Fatalf("Add(%q) = %v, %v", name, added, err)
		}
	}
	if added, err := al.Add("LOBBY"); err != nil || added {
		t.Fatalf("Add(LOBBY) = %v, %v, want existing entry", added, err)
	}
	if removed, err := al.Remove("survival"); err != nil || !removed {
		t.Fatalf("Remove(survival) = %v, %v", removed, err)
	}
	if removed, err := al.Remove("survival"); err != nil || removed {
		t.Fatalf("second Remove(survival) = %v, %v", removed, err)
	}

	reloaded, err := LoadAllowlist(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, want := reloaded.Servers(), []string{"creative-1", "lobby"}; !slices.Equal(got, want) {
		t.Fatalf("Servers() = %v, want %v", got, want)
	}
}

func TestAllowlistInvalidNames(t *testing.T) {
	al, err := LoadAllowlist(filepath.Join(t.TempDir(), "allowlist.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, name := range []string{"", "  ", "two words", "slash/name", strings.Repeat("a", 33)} {
		if _, err := al.Add(name); !errors.Is(err, ErrAllowlistInvalidName) {
			t.Fatalf("Add(%q) error = %v", name, err)
		}
	}
	if _, err := al.Remove(" "); !errors.Is(err, ErrAllowlistInvalidName) {
		t.Fatalf("Remove(blank) error = %v", err)
	}
}

func TestAllowlistAllow(t *testing.T) {
	al, err := LoadAllowlist(filepath.Join(t.TempDir(), "allowlist.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
	if _, ok := al.Allow(addr, "rogue"); !ok {
		t.Fatalf("disabled allowlist refused a server")
	}
	al.SetEnabled(true)
	if _, err := al.Add("Lobby"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, ok := al.Allow(addr, "lobby"); !ok {
		t.Fatalf("listed server refused")
	}
	if reason, ok := al.Allow(addr, "rogue"); ok || !strings.Contains(reason, "rogue") {
		t.Fatalf("Allow(rogue) = %q, %v", reason, ok)
	}
}

func TestAllowlistNil(t *testing.T) {
	var al *Allowlist
	if al.Enabled() {
		t.Fatalf("nil allowlist enabled")
	}
	if _, ok := al.Allow(nil, "any"); !ok {
		t.Fatalf("nil allowlist refused a server")
	}
	if _, err := al.Add("lobby"); !errors.Is(err, ErrAllowlistUnavailable) {
		t.Fatalf("Add on nil allowlist error = %v", err)
	}
}

func TestAllowlistReloadSkipsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.toml")
	if err := os.WriteFile(path, []byte("servers = [\"lobby\", \"bad name\", \"\"]\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	al, err := LoadAllowlist(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := al.Servers(); !slices.Equal(got, []string{"lobby"}) {
		t.Fatalf("Servers() = %v", got)
	}
}
