package builtin

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/df-mc/foundation/server"
	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/conversation"
	"github.com/df-mc/foundation/server/plugin"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/df-mc/foundation/server/region"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/selection"
	"github.com/df-mc/foundation/server/visual"
	"github.com/google/uuid"
)

type fakeServer struct {
	name, mode string
	linked     bool
	servers    []string
	closed     int

	pluginsEnabled bool
	plugins        []plugin.Info

	allowlist []string
	allowOn   bool

	reg     *proxy.Registry
	regions store.Store
	sel     *selection.Manager
	convs   *conversation.Manager
}

func newFakeServer(t *testing.T, mode string) *fakeServer {
	t.Helper()
	regions, err := store.OpenDisk(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open region store: %v", err)
	}
	convs := conversation.NewManager(nil, nil)
	t.Cleanup(func() {
		convs.Close()
		_ = regions.Close()
	})
	return &fakeServer{
		name:           "survival",
		mode:           mode,
		pluginsEnabled: true,
		allowOn:        true,
		reg:            proxy.NewRegistry(nil),
		regions:        regions,
		sel:            selection.New(selection.Config{}),
		convs:          convs,
	}
}

func (f *fakeServer) Name() string                                   { return f.name }
func (f *fakeServer) Mode() string                                   { return f.mode }
func (f *fakeServer) StartTime() time.Time                           { return time.Now().Add(-time.Minute) }
func (f *fakeServer) Close() error                                   { f.closed++; return nil }
func (f *fakeServer) PluginsEnabled() bool                           { return f.pluginsEnabled }
func (f *fakeServer) Plugins() []plugin.Info                         { return f.plugins }
func (f *fakeServer) Registry() *proxy.Registry                      { return f.reg }
func (f *fakeServer) LinkedServers() []string                        { return f.servers }
func (f *fakeServer) Linked() bool                                   { return f.linked }
func (f *fakeServer) Regions() store.Store                           { return f.regions }
func (f *fakeServer) Visuals() (*visual.Scheduler, *visual.Renderer) { return nil, nil }
func (f *fakeServer) Selections() *selection.Manager                 { return f.sel }
func (f *fakeServer) Conversations() *conversation.Manager           { return f.convs }
func (f *fakeServer) AllowlistEnabled() bool                         { return f.allowOn }

func (f *fakeServer) EnablePlugin(path string) (plugin.Info, error) {
	if !strings.HasSuffix(path, ".so") {
		return plugin.Info{}, errors.New("not a plugin")
	}
	info := plugin.Info{Name: strings.TrimSuffix(path, ".so"), Version: "1.0.0", Path: path}
	f.plugins = append(f.plugins, info)
	return info, nil
}

func (f *fakeServer) DisablePlugin(name string) (plugin.Info, error) {
	i := slices.IndexFunc(f.plugins, func(info plugin.Info) bool { return strings.EqualFold(info.Name, name) })
	if i == -1 {
		return plugin.Info{}, plugin.ErrNotFound
	}
	info := f.plugins[i]
	f.plugins = slices.Delete(f.plugins, i, i+1)
	return info, nil
}

func (f *fakeServer) ReloadPlugin(name string) (plugin.Info, error) {
	i := slices.IndexFunc(f.plugins, func(info plugin.Info) bool { return strings.EqualFold(info.Name, name) })
	if i == -1 {
		return plugin.Info{}, plugin.ErrNotFound
	}
	return f.plugins[i], nil
}

func (f *fakeServer) AllowlistAdd(name string) (bool, error) {
	if strings.ContainsAny(name, " /") || name == "" {
		return false, server.ErrAllowlistInvalidName
	}
	if slices.Contains(f.allowlist, name) {
		return false, nil
	}
	f.allowlist = append(f.allowlist, name)
	return true, nil
}

func (f *fakeServer) AllowlistRemove(name string) (bool, error) {
	i := slices.Index(f.allowlist, name)
	if i == -1 {
		return false, nil
	}
	f.allowlist = slices.Delete(f.allowlist, i, i+1)
	return true, nil
}

func (f *fakeServer) AllowlistEntries() ([]string, error) {
	return slices.Clone(f.allowlist), nil
}

type recordingSource struct {
	name   string
	output []*cmd.Output
}

func (s *recordingSource) Name() string { return s.name }

func (s *recordingSource) SendCommandOutput(o *cmd.Output) {
	s.output = append(s.output, o)
}

func (s *recordingSource) last(t *testing.T) *cmd.Output {
	t.Helper()
	if len(s.output) == 0 {
		t.Fatalf("no output was sent")
	}
	return s.output[len(s.output)-1]
}

// text joins the messages of the last output.
func (s *recordingSource) text(t *testing.T) string {
	t.Helper()
	return strings.Join(s.last(t).Messages(), "\n")
}

type fakePlayer struct {
	recordingSource
	id uuid.UUID
}

func (p *fakePlayer) UUID() uuid.UUID { return p.id }

func TestRegionCommand(t *testing.T) {
	srv := newFakeServer(t, "standalone")
	c := newRegionCommand(srv)
	src := &recordingSource{name: "Console"}

	c.Execute("list", src)
	if got := src.text(t); got != "No regions saved." {
		t.Fatalf("empty list = %q", got)
	}

	spawn := region.MustNew("spawn", region.Loc("world", 0, 60, 0), region.Loc("world", 20, 80, 20))
	if err := srv.regions.Put(spawn); err != nil {
		t.Fatalf("put: %v", err)
	}
	c.Execute("list", src)
	if got := src.text(t); got != "Regions (1): spawn" {
		t.Fatalf("list = %q", got)
	}

	c.Execute("info spawn", src)
	got := src.text(t)
	for _, want := range []string{"World: world", "From (0, 60, 0) to (20, 80, 20)", "Volume: 9261 blocks"} {
		if !strings.Contains(got, want) {
			t.Fatalf("info output %q does not contain %q", got, want)
		}
	}

	c.Execute("info missing", src)
	if o := src.last(t); o.ErrorCount() != 1 || !strings.Contains(o.Errors()[0].Error(), "does not exist") {
		t.Fatalf("info of a missing region = %v", o.Errors())
	}

	c.Execute("delete spawn", src)
	if got := src.text(t); got != "Region spawn deleted by Console." {
		t.Fatalf("delete = %q", got)
	}
	if _, err := srv.regions.Get("spawn"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("region still stored after delete: %v", err)
	}
}

func TestRegionDeleteOperatorOnly(t *testing.T) {
	srv := newFakeServer(t, "standalone")
	if err := srv.regions.Put(region.MustNew("spawn", region.Loc("world", 0, 0, 0), region.Loc("world", 1, 1, 1))); err != nil {
		t.Fatalf("put: %v", err)
	}
	p := &fakePlayer{recordingSource: recordingSource{name: "Steve"}, id: uuid.New()}
	newRegionCommand(srv).Execute("delete spawn", p)
	if o := p.last(t); o.ErrorCount() != 1 {
		t.Fatalf("player deleted a region: %v", o.Messages())
	}
	if _, err := srv.regions.Get("spawn"); err != nil {
		t.Fatalf("region removed by a player: %v", err)
	}
}

func TestPluginCommand(t *testing.T) {
	srv := newFakeServer(t, "standalone")
	c := newPluginCommand(srv)
	src := &recordingSource{name: "Console"}

	c.Execute("list", src)
	if got := src.text(t); got != "No plugins loaded." {
		t.Fatalf("empty list = %q", got)
	}

	c.Execute("enable demo.so", src)
	if got := src.text(t); got != "Enabled demo v1.0.0 from demo.so." {
		t.Fatalf("enable = %q", got)
	}
	c.Execute("enable broken.txt", src)
	if o := src.last(t); o.ErrorCount() != 1 {
		t.Fatalf("enable of a bad file produced no error: %v", o.Messages())
	}

	srv.plugins[0].Channels = []string{"foundation:demo"}
	c.Execute("info DEMO", src)
	if got := src.text(t); !strings.Contains(got, "Channels: foundation:demo") || !strings.Contains(got, "Commands: none") {
		t.Fatalf("info = %q", got)
	}

	c.Execute("reload demo", src)
	if got := src.text(t); got != "Reloaded demo v1.0.0." {
		t.Fatalf("reload = %q", got)
	}
	c.Execute("disable demo", src)
	if got := src.text(t); got != "Disabled demo." {
		t.Fatalf("disable = %q", got)
	}
	c.Execute("disable demo", src)
	if o := src.last(t); o.ErrorCount() != 1 || !strings.Contains(o.Errors()[0].Error(), plugin.ErrNotFound.Error()) {
		t.Fatalf("second disable = %v", o.Errors())
	}

	srv.pluginsEnabled = false
	c.Execute("list", src)
	if got := src.text(t); got != "Plugin subsystem disabled." {
		t.Fatalf("list with plugins disabled = %q", got)
	}
}

func TestProxyCommand(t *testing.T) {
	srv := newFakeServer(t, "proxy")
	c := newProxyCommand(srv)
	src := &recordingSource{name: "Console"}

	c.Execute("channels", src)
	if got := src.text(t); got != "No channels have a listener." {
		t.Fatalf("channels = %q", got)
	}
	srv.reg.Register(proxy.NewListener("foundation:demo", proxy.HandlerFunc(func(proxy.Messenger, *proxy.IncomingMessage) error {
		return nil
	}), proxy.NewAction("Greet", proxy.String)))
	c.Execute("channels", src)
	if got := src.text(t); !strings.Contains(got, "foundation:demo: 0 sent, 0 received") {
		t.Fatalf("channels = %q", got)
	}

	srv.servers = []string{"lobby", "survival"}
	c.Execute("servers", src)
	if got := src.text(t); got != "Linked servers (2): lobby, survival" {
		t.Fatalf("servers in proxy mode = %q", got)
	}

	srv.mode = "backend"
	c.Execute("servers", src)
	if got := src.text(t); got != "survival is not linked to a proxy." {
		t.Fatalf("servers in backend mode = %q", got)
	}
	srv.linked = true
	c.Execute("servers", src)
	if got := src.text(t); got != "survival is linked to the proxy." {
		t.Fatalf("servers when linked = %q", got)
	}
}

func TestAllowlistCommand(t *testing.T) {
	srv := newFakeServer(t, "proxy")
	c := newAllowlistCommand(srv)
	src := &recordingSource{name: "Console"}

	cases := []struct {
		line, want string
	}{
		{"add lobby", "Added lobby to the allowlist."},
		{"add lobby", "lobby is already on the allowlist."},
		{"add survival", "Added survival to the allowlist."},
		{"list", "Allowlist (enabled): 2 server(s).\nlobby, survival"},
		{"remove lobby", "Removed lobby from the allowlist."},
		{"remove lobby", "lobby is not on the allowlist."},
	}
	for _, tc := range cases {
		c.Execute(tc.line, src)
		if got := src.text(t); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.line, got, tc.want)
		}
	}

	c.Execute(`add "bad name"`, src)
	if o := src.last(t); o.ErrorCount() != 1 || !strings.Contains(o.Errors()[0].Error(), "Invalid server name") {
		t.Fatalf("invalid name = %v", o.Errors())
	}

	p := &fakePlayer{recordingSource: recordingSource{name: "Steve"}, id: uuid.New()}
	c.Execute("add hub", p)
	if slices.Contains(srv.allowlist, "hub") {
		t.Fatalf("player was allowed to edit the allowlist")
	}
	c.Execute("list", p)
	if got := p.text(t); !strings.HasPrefix(got, "Allowlist (enabled): 1 server(s).") {
		t.Fatalf("player list = %q", got)
	}
}

func TestStatusCommand(t *testing.T) {
	srv := newFakeServer(t, "backend")
	srv.linked = true
	src := &recordingSource{name: "Console"}
	newStatusCommand(srv).Execute("", src)

	got := src.text(t)
	for _, want := range []string{
		"Uptime: 1m0s",
		"Server: survival | Mode: backend | Link: up",
		"Channels: 0 | Regions: 0 | Visual jobs: 0",
		"Selections: 0 | Conversations: 0 | Plugins: 0",
		"Goroutines: ",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("status output %q does not contain %q", got, want)
		}
	}
}

func TestStopCommand(t *testing.T) {
	srv := newFakeServer(t, "standalone")
	c := newStopCommand(srv)

	p := &fakePlayer{recordingSource: recordingSource{name: "Steve"}, id: uuid.New()}
	c.Execute("", p)
	if srv.closed != 0 {
		t.Fatalf("player stopped the server")
	}

	src := &recordingSource{name: "Console"}
	c.Execute("", src)
	if srv.closed != 1 {
		t.Fatalf("Close called %d times, want 1", srv.closed)
	}
	if got := src.text(t); got != "Stopping server (requested by Console)..." {
		t.Fatalf("stop = %q", got)
	}
}

func TestHelpCommand(t *testing.T) {
	srv := newFakeServer(t, "standalone")
	cmd.Register(newRegionCommand(srv))
	defer cmd.Unregister("region")

	src := &recordingSource{name: "Console"}
	c := newHelpCommand()
	c.Execute("", src)
	if got := src.text(t); !strings.Contains(got, "/region - Lists, inspects and deletes saved regions.") {
		t.Fatalf("help = %q", got)
	}
	c.Execute("rg", src)
	if got := src.text(t); !strings.Contains(got, "/region info <name: string>") {
		t.Fatalf("help rg = %q", got)
	}
	c.Execute("nothing", src)
	if o := src.last(t); o.ErrorCount() != 1 {
		t.Fatalf("help for an unknown command = %v", o.Messages())
	}
}
