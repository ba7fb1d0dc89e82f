package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/df-mc/foundation/server/proxy"
)

// Allower decides whether a backend server may join the hub.
type Allower interface {
	// Allow is called once the backend has sent its name. If false is
	// returned, the connection is refused with the reason passed.
	Allow(addr net.Addr, server string) (string, bool)
}

type allowAll struct{}

func (allowAll) Allow(net.Addr, string) (string, bool) { return "", true }

// HubConfig holds the settings a Hub is created with.
type HubConfig struct {
	// Log is the logger of the hub. If nil, slog.Default() is used.
	Log *slog.Logger
	// Registry receives every plugin message addressed to the proxy itself.
	// If nil, an empty registry is used.
	Registry *proxy.Registry
	// Allower filters the backends that may connect. If nil, all are allowed.
	Allower Allower
}

// Hub is the proxy end of the link. Backends connect to it and it relays
// forwarded messages between them.
type Hub struct {
	log   *slog.Logger
	reg   *proxy.Registry
	allow Allower

	mu      sync.RWMutex
	servers map[string]*Conn
	pending map[*Conn]struct{}
	ln      net.Listener
	closed  bool

	wg sync.WaitGroup
}

// NewHub creates a Hub that does not listen yet.
func NewHub(conf HubConfig) *Hub {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Registry == nil {
		conf.Registry = proxy.NewRegistry(conf.Log)
	}
	if conf.Allower == nil {
		conf.Allower = allowAll{}
	}
	return &Hub{
		log:     conf.Log.With("subsystem", "proxy.link"),
		reg:     conf.Registry,
		allow:   conf.Allower,
		servers: make(map[string]*Conn),
		pending: make(map[*Conn]struct{}),
	}
}

// Listen starts listening on addr and accepts backends in the background until
// ctx is cancelled or the hub is closed.
func (h *Hub) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ln.Close()
		return net.ErrClosed
	}
	h.ln = ln
	h.mu.Unlock()

	h.log.Info("Proxy link listening.", "addr", ln.Addr().String())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.serve(ctx, ln)
	}()
	return nil
}

// Addr returns the address the hub listens on, or nil if it is not listening.
func (h *Hub) Addr() net.Addr {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

func (h *Hub) serve(ctx context.Context, ln net.Listener) {
	stop := context.AfterFunc(ctx, func() { _ = h.Close() })
	defer stop()
	for {
		raw, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				h.log.Error("Accept backend.", "error", err)
			}
			return
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.handle(raw)
		}()
	}
}

func (h *Hub) handle(raw net.Conn) {
	c := newConn(raw, "", h.log)
	if !h.track(c) {
		_ = c.Close()
		return
	}
	name, err := h.hello(c)
	h.untrack(c)
	if err != nil {
		h.log.Debug("Backend handshake failed.", "addr", raw.RemoteAddr().String(), "error", err)
		_ = c.Close()
		return
	}
	c.name = name
	if reason, ok := h.allow.Allow(raw.RemoteAddr(), name); !ok {
		h.log.Info("Backend refused.", "server", name, "addr", raw.RemoteAddr().String(), "reason", reason)
		c.disconnect(reason)
		return
	}
	if !h.add(c) {
		c.disconnect("Proxy is shutting down.")
		return
	}
	h.log.Info("Backend connected.", "server", name, "addr", raw.RemoteAddr().String())
	defer func() {
		h.remove(c)
		_ = c.Close()
		h.log.Info("Backend disconnected.", "server", name)
	}()

	for {
		channel, data, err := c.ReadPluginMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				h.log.Debug("Read from backend.", "server", name, "error", err)
			}
			return
		}
		h.route(c, channel, data)
	}
}

func (h *Hub) hello(c *Conn) (string, error) {
	_ = c.raw.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer func() { _ = c.raw.SetReadDeadline(time.Time{}) }()

	var p pk.Packet
	if err := c.mc.ReadPacket(&p); err != nil {
		return "", err
	}
	if p.ID != packetHello {
		return "", fmt.Errorf("%w: %#x before hello", ErrUnexpectedPacket, p.ID)
	}
	var name pk.String
	if err := p.Scan(&name); err != nil {
		return "", fmt.Errorf("decode hello: %w", err)
	}
	if name == "" {
		return "", errors.New("empty server name")
	}
	return string(name), nil
}

// track remembers a connection that has not sent its hello yet, so that Close
// can interrupt the handshake. It returns false if the hub is closed.
func (h *Hub) track(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.pending[c] = struct{}{}
	return true
}

func (h *Hub) untrack(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, c)
}

func (h *Hub) add(c *Conn) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	old := h.servers[c.name]
	h.servers[c.name] = c
	h.mu.Unlock()

	if old != nil {
		h.log.Info("Backend replaced by newer connection.", "server", c.name)
		old.disconnect("Replaced by a newer connection.")
	}
	return true
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.servers[c.name] == c {
		delete(h.servers, c.name)
	}
}

// Server returns the connection of a backend by its name.
func (h *Hub) Server(name string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.servers[name]
	return c, ok
}

// Servers returns the names of all connected backends, sorted.
func (h *Hub) Servers() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.servers))
	for name := range h.servers {
		names = append(names, name)
	}
	h.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Send sends a plugin message to a backend, or to every backend if server is
// proxy.AllServers.
func (h *Hub) Send(server, channel string, data []byte) error {
	if server != proxy.AllServers {
		c, ok := h.Server(server)
		if !ok {
			return fmt.Errorf("server %s is not connected", server)
		}
		return c.SendPluginMessage(channel, data)
	}
	var errs []error
	for _, c := range h.conns(nil) {
		if err := c.SendPluginMessage(channel, data); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// conns returns all backend connections except the one passed.
func (h *Hub) conns(except *Conn) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.servers))
	for _, c := range h.servers {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) route(from *Conn, channel string, data []byte) {
	if channel != proxy.BungeeChannel {
		h.dispatch(from, channel, data)
		return
	}
	sub, err := proxy.Subchannel(data)
	if err != nil {
		h.log.Debug("Unreadable proxy request.", "server", from.name, "error", err)
		return
	}
	switch sub {
	case proxy.SubForward:
		if err := h.forward(from, data); err != nil {
			h.log.Debug("Forward request dropped.", "server", from.name, "error", err)
		}
	case proxy.SubGetServer:
		h.reply(from, sub, func() ([]byte, error) { return proxy.GetServerResponse(from.name) })
	case proxy.SubGetServers:
		h.reply(from, sub, func() ([]byte, error) { return proxy.GetServersResponse(h.Servers()) })
	default:
		h.dispatch(from, channel, data)
	}
}

func (h *Hub) forward(from *Conn, data []byte) error {
	_, target, channel, payload, err := proxy.ParseForwardRequest(data)
	if err != nil {
		return fmt.Errorf("malformed forward request: %w", err)
	}
	delivery, err := proxy.ForwardDelivery(channel, payload)
	if err != nil {
		return fmt.Errorf("forward payload refused: %w", err)
	}
	if target == proxy.AllServers {
		for _, c := range h.conns(from) {
			if err := c.SendPluginMessage(proxy.BungeeChannel, delivery); err != nil {
				h.log.Debug("Forward to backend.", "server", c.name, "error", err)
			}
		}
		return nil
	}
	c, ok := h.Server(target)
	if !ok {
		return fmt.Errorf("forward target %s is not connected", target)
	}
	return c.SendPluginMessage(proxy.BungeeChannel, delivery)
}

// SendPluginMessage makes the hub a proxy.Messenger for code running on the
// proxy itself. Forward requests are relayed to their target like those of a
// backend, other messages are sent to every backend.
func (h *Hub) SendPluginMessage(channel string, data []byte) error {
	if channel == proxy.BungeeChannel {
		if sub, err := proxy.Subchannel(data); err == nil && sub == proxy.SubForward {
			return h.forward(nil, data)
		}
	}
	return h.Send(proxy.AllServers, channel, data)
}

func (h *Hub) reply(to *Conn, sub string, build func() ([]byte, error)) {
	data, err := build()
	if err != nil {
		h.log.Warn("Build proxy response.", "sub", sub, "error", err)
		return
	}
	if err := to.SendPluginMessage(proxy.BungeeChannel, data); err != nil {
		h.log.Debug("Send proxy response.", "server", to.name, "sub", sub, "error", err)
	}
}

func (h *Hub) dispatch(from *Conn, channel string, data []byte) {
	if !h.reg.Dispatch(channel, from, data) {
		h.log.Debug("Unhandled plugin message.", "server", from.name, "channel", channel, "size", len(data))
	}
}

// Close stops listening and closes every backend connection, including those
// still in the handshake. It does not wait for the connection goroutines to
// return; call Wait for that.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	ln := h.ln
	conns := make([]*Conn, 0, len(h.servers)+len(h.pending))
	for _, c := range h.servers {
		conns = append(conns, c)
	}
	for c := range h.pending {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}

// Wait blocks until every goroutine started by the hub has returned.
func (h *Hub) Wait() {
	h.wg.Wait()
}
