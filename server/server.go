package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/conversation"
	"github.com/df-mc/foundation/server/enchant"
	"github.com/df-mc/foundation/server/plugin"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/df-mc/foundation/server/proxy/link"
	"github.com/df-mc/foundation/server/query"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/selection"
	"github.com/df-mc/foundation/server/visual"
)

// ErrRunning is returned by Run when the server is already running or closed.
var ErrRunning = errors.New("server already running")

// Server owns every Foundation subsystem: the plugin message registry, the
// link to the proxy or the backends, the region store, the visualiser, the
// selection and conversation managers, the enchantment registry and the
// plugin manager.
type Server struct {
	conf Config
	log  *slog.Logger

	started atomic.Pointer[time.Time]

	reg  *proxy.Registry
	hub  *link.Hub
	conn atomic.Pointer[link.Conn]

	regions       store.Store
	sched         *visual.Scheduler
	rend          *visual.Renderer
	selections    *selection.Manager
	conversations *conversation.Manager
	enchantments  *enchant.Registry
	allowlist     *Allowlist
	plugins       *plugin.Manager[*Server, Config]

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func newServer(conf Config) (*Server, error) {
	srv := &Server{
		conf: conf,
		log:  conf.Log,
		reg:  proxy.NewRegistry(conf.Log),
		rend: visual.NewRenderer(),
	}
	now := time.Now()
	srv.started.Store(&now)

	var err error
	if srv.regions, err = store.Open(conf.Regions); err != nil {
		return nil, fmt.Errorf("open region store: %w", err)
	}
	if srv.sched, err = visual.NewScheduler(conf.Log); err != nil {
		_ = srv.regions.Close()
		return nil, err
	}
	outline := conf.Outline
	outline.Log = conf.Log
	srv.selections = selection.New(selection.Config{
		Scheduler: srv.sched,
		Renderer:  srv.rend,
		Blocks:    conf.Blocks,
		Outline:   outline,
		Log:       conf.Log,
	})
	srv.conversations = conversation.NewManager(conf.Log, func(e conversation.EndEvent) {
		srv.plugins.ConversationEnded(e)
	})

	srv.enchantments = enchant.NewRegistry()
	for _, t := range enchant.Defaults() {
		if _, err := srv.enchantments.Register(t); err != nil {
			srv.log.Warn("Default enchantment not registered.", "enchantment", t.Name(), "error", err)
		}
	}

	if al, ok := conf.Allower.(*Allowlist); ok {
		srv.allowlist = al
	}
	if conf.Mode == ModeProxy {
		srv.hub = link.NewHub(link.HubConfig{Log: conf.Log, Registry: srv.reg, Allower: conf.Allower})
	}
	srv.plugins = plugin.NewManager[*Server, Config](newPluginHost(srv), conf.Plugins)
	return srv, nil
}

// Run establishes the link, loads the configured plugins and starts the
// optional region watcher and query responder. It blocks until ctx is
// cancelled or the server is closed.
func (srv *Server) Run(ctx context.Context) error {
	srv.mu.Lock()
	if srv.cancel != nil || srv.closed {
		srv.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	srv.cancel = cancel
	srv.mu.Unlock()
	defer cancel()

	now := time.Now()
	srv.started.Store(&now)
	srv.log.Info("Starting Foundation server.", "name", srv.conf.Name, "mode", srv.conf.Mode)

	// Plugins register their listeners before the first message arrives.
	srv.LoadPlugins()

	if srv.conf.WatchRegions {
		srv.watchRegions(ctx)
	}
	if srv.conf.QueryAddress != "" {
		if err := srv.serveQuery(ctx); err != nil {
			return err
		}
	}
	switch srv.conf.Mode {
	case ModeProxy:
		if err := srv.hub.Listen(ctx, srv.conf.LinkAddress); err != nil {
			return fmt.Errorf("listen for backends: %w", err)
		}
	case ModeBackend:
		srv.goRun(func() { srv.maintainLink(ctx) })
	}
	srv.log.Info("Server running.", "startup", time.Since(now).Round(time.Millisecond))
	<-ctx.Done()
	return nil
}

func (srv *Server) goRun(f func()) {
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		f()
	}()
}

// maintainLink keeps a backend linked to the proxy, dialing again whenever the
// link fails.
func (srv *Server) maintainLink(ctx context.Context) {
	log := srv.log.With("subsystem", "link", "proxy", srv.conf.LinkAddress)
	for {
		conn, err := link.Dial(ctx, srv.conf.LinkAddress, srv.conf.Name, srv.log)
		if err == nil {
			srv.conn.Store(conn)
			log.Info("Linked to proxy.")
			err = conn.Serve(ctx, srv.reg)
			srv.conn.CompareAndSwap(conn, nil)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, link.ErrRejected) {
			log.Error("Proxy refused the link.", "error", err)
		} else {
			log.Warn("Proxy link lost.", "error", err, "retry", srv.conf.ReconnectInterval)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(srv.conf.ReconnectInterval):
		}
	}
}

func (srv *Server) watchRegions(ctx context.Context) {
	d, ok := srv.regions.(*store.Disk)
	if !ok {
		srv.log.Debug("Region watching needs the disk backend.")
		return
	}
	srv.goRun(func() {
		if err := d.Watch(ctx, srv.plugins.RegionChanged); err != nil {
			srv.log.Error("Watch regions.", "error", err)
		}
	})
}

func (srv *Server) serveQuery(ctx context.Context) error {
	r, err := query.Listen(srv.conf.QueryAddress, srv.queryData, srv.log)
	if err != nil {
		return err
	}
	srv.log.Info("Answering queries.", "addr", r.Addr().String())
	srv.goRun(func() {
		if err := r.Serve(ctx); err != nil {
			srv.log.Error("Serve queries.", "error", err)
		}
	})
	return nil
}

func (srv *Server) queryData() query.Data {
	infos := srv.Plugins()
	plugins := make([]string, 0, len(infos))
	for _, info := range infos {
		plugins = append(plugins, info.Name)
	}
	return query.Data{
		HostName:         srv.conf.Name,
		Mode:             srv.conf.Mode,
		Servers:          srv.LinkedServers(),
		Plugins:          plugins,
		Channels:         len(srv.reg.Channels()),
		Regions:          len(srv.regions.Names()),
		AllowlistEnabled: srv.AllowlistEnabled(),
	}
}

// Close shuts the server down: plugins are disabled first so that they may
// still send messages, then the link and the remaining subsystems are closed.
// Close is safe to call multiple times.
func (srv *Server) Close() error {
	srv.closeOnce.Do(func() {
		srv.mu.Lock()
		srv.closed = true
		cancel := srv.cancel
		srv.mu.Unlock()

		srv.log.Info("Server closing...")
		srv.plugins.Shutdown()
		if cancel != nil {
			cancel()
		}
		if srv.hub != nil {
			_ = srv.hub.Close()
			srv.hub.Wait()
		}
		if c := srv.conn.Swap(nil); c != nil {
			_ = c.Close()
		}
		srv.wg.Wait()

		srv.conversations.Close()
		var errs []error
		if err := srv.sched.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := srv.regions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close region store: %w", err))
		}
		srv.closeErr = errors.Join(errs...)
		srv.log.Info("Server closed.", "uptime", time.Since(srv.StartTime()).Round(time.Second))
	})
	return srv.closeErr
}

// CloseOnProgramEnd closes the server right before the program ends, so that
// plugins are disabled and regions are flushed when the process is stopped
// with ctrl+c or a termination signal.
func (srv *Server) CloseOnProgramEnd() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		if err := srv.Close(); err != nil {
			srv.log.Error("Close server.", "error", err)
		}
	}()
}

// Name returns the name of the server.
func (srv *Server) Name() string { return srv.conf.Name }

// Mode returns the link mode the server runs in.
func (srv *Server) Mode() string { return srv.conf.Mode }

// StartTime returns the time the server started running.
func (srv *Server) StartTime() time.Time { return *srv.started.Load() }

// Registry returns the plugin message listener registry.
func (srv *Server) Registry() *proxy.Registry { return srv.reg }

// Messenger returns the connection plugin messages are sent over: the hub in
// proxy mode and the link to the proxy in backend mode. It returns nil while no
// link is established.
func (srv *Server) Messenger() proxy.Messenger {
	switch srv.conf.Mode {
	case ModeProxy:
		if srv.hub.Addr() != nil {
			return srv.hub
		}
	case ModeBackend:
		if c := srv.conn.Load(); c != nil {
			return c
		}
	}
	return nil
}

// Linked reports whether plugin messages can currently be sent.
func (srv *Server) Linked() bool { return srv.Messenger() != nil }

// LinkedServers returns the names of the backends linked to the proxy. It is
// empty unless the server runs in proxy mode.
func (srv *Server) LinkedServers() []string {
	if srv.hub == nil {
		return nil
	}
	return srv.hub.Servers()
}

// Regions returns the region store.
func (srv *Server) Regions() store.Store { return srv.regions }

// Visuals returns the scheduler and renderer regions are visualised with.
func (srv *Server) Visuals() (*visual.Scheduler, *visual.Renderer) { return srv.sched, srv.rend }

// Selections returns the region selection manager.
func (srv *Server) Selections() *selection.Manager { return srv.selections }

// Conversations returns the conversation manager.
func (srv *Server) Conversations() *conversation.Manager { return srv.conversations }

// Enchantments returns the enchantment registry.
func (srv *Server) Enchantments() *enchant.Registry { return srv.enchantments }

// Allowlist returns the allowlist backends are filtered with, or nil.
func (srv *Server) Allowlist() *Allowlist { return srv.allowlist }

// ExecuteCommand runs commandLine on behalf of source.
func (srv *Server) ExecuteCommand(source cmd.Source, commandLine string) {
	cmd.ExecuteLine(source, commandLine, nil)
}
