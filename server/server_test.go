package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/df-mc/foundation/server/enchant"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/google/uuid"
)

const testChannel = "foundation:test"

var greet = proxy.NewAction("Greet", proxy.String)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, name, mode, addr string) Config {
	t.Helper()
	return Config{
		Log:               discardLogger(),
		Name:              name,
		Mode:              mode,
		LinkAddress:       addr,
		ReconnectInterval: 20 * time.Millisecond,
		Regions:           store.Config{Dir: filepath.Join(t.TempDir(), "regions")},
	}
}

// startServer creates a server from conf and runs it until the test ends.
func startServer(t *testing.T, conf Config) *Server {
	t.Helper()
	srv, err := conf.New()
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := srv.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("run: %v", err)
		}
	})
	return srv
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	unknownBackend := testConfig(t, "a", "", "")
	unknownBackend.Regions.Backend = "redis"
	cases := map[string]Config{
		"unknown mode":    testConfig(t, "a", "bridge", ""),
		"backend no addr": testConfig(t, "a", ModeBackend, ""),
		"proxy no addr":   testConfig(t, "a", ModeProxy, ""),
		"unknown backend": unknownBackend,
	}
	for name, conf := range cases {
		if srv, err := conf.New(); err == nil {
			_ = srv.Close()
			t.Fatalf("%s: New succeeded", name)
		}
	}
}

func TestStandaloneDefaults(t *testing.T) {
	srv, err := testConfig(t, "", "", "").New()
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	if srv.Mode() != ModeStandalone || srv.Name() != "Foundation Server" {
		t.Fatalf("unexpected defaults: mode %q name %q", srv.Mode(), srv.Name())
	}
	if srv.Messenger() != nil || srv.Linked() {
		t.Fatalf("standalone server reports a link")
	}
	if srv.LinkedServers() != nil {
		t.Fatalf("standalone server lists backends")
	}
	if got, want := len(srv.Enchantments().All()), len(enchant.Defaults()); got != want {
		t.Fatalf("registered %d enchantments, want %d", got, want)
	}
	if _, err := srv.AllowlistEntries(); !errors.Is(err, ErrAllowlistUnavailable) {
		t.Fatalf("AllowlistEntries() error = %v", err)
	}
	if srv.PluginsEnabled() {
		t.Fatalf("plugins enabled without configuration")
	}
}

func TestRunTwice(t *testing.T) {
	srv := startServer(t, testConfig(t, "lobby", ModeStandalone, ""))
	waitFor(t, "run", func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.cancel != nil
	})
	if err := srv.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Run() error = %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	srv, err := testConfig(t, "lobby", "", "").New()
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := srv.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("Run after Close error = %v", err)
	}
}

func TestBackendLinksToProxy(t *testing.T) {
	prx := startServer(t, testConfig(t, "proxy", ModeProxy, "127.0.0.1:0"))
	waitFor(t, "proxy listener", func() bool { return prx.hub.Addr() != nil })

	got := make(chan string, 1)
	l := proxy.NewListener(testChannel, proxy.HandlerFunc(func(_ proxy.Messenger, msg *proxy.IncomingMessage) error {
		text, err := msg.ReadString()
		if err != nil {
			return err
		}
		got <- msg.ServerName() + ":" + text
		return nil
	}), greet)
	if !prx.Registry().Register(l) {
		t.Fatalf("register listener")
	}

	backend := startServer(t, testConfig(t, "survival", ModeBackend, prx.hub.Addr().String()))
	waitFor(t, "backend link", func() bool {
		return backend.Linked() && slices.Equal(prx.LinkedServers(), []string{"survival"})
	})

	msg, err := proxy.NewListener(testChannel, nil, greet).NewMessage(uuid.New(), backend.Name(), greet)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if err := msg.WriteString("hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := msg.Send(backend.Messenger()); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case s := <-got:
		if s != "survival:hello" {
			t.Fatalf("received %q", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("message did not reach the proxy")
	}
}

func TestBackendReconnects(t *testing.T) {
	prx, err := testConfig(t, "proxy", ModeProxy, "127.0.0.1:0").New()
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- prx.Run(ctx) }()
	waitFor(t, "proxy listener", func() bool { return prx.hub.Addr() != nil })
	addr := prx.hub.Addr().String()

	backend := startServer(t, testConfig(t, "survival", ModeBackend, addr))
	waitFor(t, "first link", backend.Linked)

	cancel()
	_ = prx.Close()
	<-done
	waitFor(t, "link loss", func() bool { return !backend.Linked() })

	again := testConfig(t, "proxy", ModeProxy, addr)
	prx2 := startServer(t, again)
	waitFor(t, "second link", func() bool {
		return backend.Linked() && slices.Equal(prx2.LinkedServers(), []string{"survival"})
	})
}

func TestAllowlistRefusesBackend(t *testing.T) {
	al, err := LoadAllowlist(filepath.Join(t.TempDir(), "allowlist.toml"))
	if err != nil {
		t.Fatalf("load allowlist: %v", err)
	}
	al.SetEnabled(true)
	if _, err := al.Add("lobby"); err != nil {
		t.Fatalf("add: %v", err)
	}
	conf := testConfig(t, "proxy", ModeProxy, "127.0.0.1:0")
	conf.Allower = al
	prx := startServer(t, conf)
	waitFor(t, "proxy listener", func() bool { return prx.hub.Addr() != nil })
	if !prx.AllowlistEnabled() {
		t.Fatalf("allowlist not picked up from the Allower")
	}

	lobby := startServer(t, testConfig(t, "lobby", ModeBackend, prx.hub.Addr().String()))
	startServer(t, testConfig(t, "rogue", ModeBackend, prx.hub.Addr().String()))
	waitFor(t, "lobby link", lobby.Linked)
	time.Sleep(100 * time.Millisecond)
	if servers := prx.LinkedServers(); !slices.Equal(servers, []string{"lobby"}) {
		t.Fatalf("LinkedServers() = %v", servers)
	}
}

func TestQueryData(t *testing.T) {
	srv, err := testConfig(t, "lobby", "", "").New()
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()
	srv.Registry().Register(proxy.NewListener(testChannel, nil, greet))

	d := srv.queryData()
	if d.HostName != "lobby" || d.Mode != ModeStandalone || d.Channels != 1 || d.Regions != 0 {
		t.Fatalf("unexpected query data %+v", d)
	}
}
