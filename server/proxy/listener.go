package proxy

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// BungeeChannel is the channel the BungeeCord proxy reads its own
// sub-channel requests from. It is also the default channel of listeners.
const BungeeChannel = "BungeeCord"

// Handler handles messages received by a Listener.
type Handler interface {
	// HandleMessage is called for every message received on the listener's
	// channel. src is the connection the message arrived through and may be
	// used to reply.
	HandleMessage(src Messenger, msg *IncomingMessage) error
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(src Messenger, msg *IncomingMessage) error

// HandleMessage ...
func (f HandlerFunc) HandleMessage(src Messenger, msg *IncomingMessage) error {
	return f(src, msg)
}

// Listener listens on a single plugin message channel and understands a fixed
// set of actions.
type Listener struct {
	channel string
	actions actionTable
	handler Handler
	reg     atomic.Pointer[Registry]
}

// NewListener creates a Listener for the channel passed. If channel is empty,
// BungeeChannel is used. NewListener panics if two actions share a name.
func NewListener(channel string, handler Handler, actions ...Action) *Listener {
	if channel == "" {
		channel = BungeeChannel
	}
	if handler == nil {
		handler = HandlerFunc(func(Messenger, *IncomingMessage) error { return nil })
	}
	return &Listener{channel: channel, actions: newActionTable(actions), handler: handler}
}

// Channel returns the channel the listener listens on.
func (l *Listener) Channel() string {
	return l.channel
}

// Actions returns the actions of the listener in declaration order.
func (l *Listener) Actions() []Action {
	return slices.Clone(l.actions.ordered)
}

// Action looks up an action of the listener by its name.
func (l *Listener) Action(name string) (Action, bool) {
	return l.actions.lookup(name)
}

// NewMessage creates an OutgoingMessage for one of the listener's actions.
func (l *Listener) NewMessage(sender uuid.UUID, server string, a Action) (*OutgoingMessage, error) {
	return NewOutgoing(l, sender, server, a)
}

func (l *Listener) metrics() *Metrics {
	if r := l.reg.Load(); r != nil {
		return r.metrics
	}
	return nil
}

// Registry holds the listeners of a server by channel and dispatches incoming
// plugin messages to them.
type Registry struct {
	log     *slog.Logger
	metrics *Metrics

	mu        sync.RWMutex
	listeners map[string]*Listener
	subs      map[string][]subHandler
	nextSub   uint64
}

// SubchannelHandler handles a raw payload the proxy sent on BungeeChannel,
// such as the reply to a GetServers or PlayerCount request. data is the full
// payload, sub-channel name included, so it can be passed to the matching
// Parse function.
type SubchannelHandler func(src Messenger, data []byte)

type subHandler struct {
	id uint64
	h  SubchannelHandler
}

// NewRegistry creates an empty Registry. If log is nil, slog.Default() is used.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:       log.With("subsystem", "proxy"),
		metrics:   NewMetrics(),
		listeners: make(map[string]*Listener),
		subs:      make(map[string][]subHandler),
	}
}

// Register adds l to the registry. Only the first listener registered for a
// channel is kept: Register returns false and does nothing if the channel
// already has a listener.
func (r *Registry) Register(l *Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[l.channel]; ok {
		r.log.Debug("Channel already has a listener.", "channel", l.channel)
		return false
	}
	r.listeners[l.channel] = l
	l.reg.Store(r)
	return true
}

// Unregister removes the listener of a channel. It returns false if the channel
// had no listener.
func (r *Registry) Unregister(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listeners[channel]
	if ok {
		delete(r.listeners, channel)
		l.reg.Store(nil)
	}
	return ok
}

// Listener returns the listener of a channel.
func (r *Registry) Listener(channel string) (*Listener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listeners[channel]
	return l, ok
}

// Channels returns the channels that have a listener, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	channels := make([]string, 0, len(r.listeners))
	for channel := range r.listeners {
		channels = append(channels, channel)
	}
	r.mu.RUnlock()
	slices.Sort(channels)
	return channels
}

// OnSubchannel registers h for payloads received on BungeeChannel whose
// sub-channel is sub. Handlers are called in registration order, before any
// listener registered on BungeeChannel itself. The function returned removes
// the handler again.
func (r *Registry) OnSubchannel(sub string, h SubchannelHandler) (cancel func()) {
	r.mu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs[sub] = append(r.subs[sub], subHandler{id: id, h: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.subs[sub] = slices.DeleteFunc(r.subs[sub], func(s subHandler) bool { return s.id == id })
			if len(r.subs[sub]) == 0 {
				delete(r.subs, sub)
			}
		})
	}
}

func (r *Registry) subchannel(sub string) []subHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.subs[sub])
}

// Metrics returns the message counters of the registry.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// Dispatch handles a plugin message received on channel. It reports whether a
// listener or sub-channel handler accepted the message. Messages on
// BungeeChannel that carry a forwarded payload for another registered channel
// are unwrapped first. Other BungeeChannel payloads go to the handlers added
// with OnSubchannel, if the sub-channel has any.
// Decoding and handler failures are logged and never returned to the host.
func (r *Registry) Dispatch(channel string, src Messenger, data []byte) bool {
	if channel == BungeeChannel {
		if inner, payload, err := ParseForward(data); err == nil && inner != BungeeChannel {
			if l, ok := r.Listener(inner); ok {
				return r.deliver(l, src, payload)
			}
		}
		if sub, err := Subchannel(data); err == nil {
			if handlers := r.subchannel(sub); len(handlers) > 0 {
				return r.deliverRaw(handlers, sub, src, data)
			}
		}
	}
	l, ok := r.Listener(channel)
	if !ok {
		return false
	}
	return r.deliver(l, src, data)
}

func (r *Registry) deliver(l *Listener, src Messenger, data []byte) (handled bool) {
	msg, err := ParseIncoming(l, data)
	if err != nil {
		r.metrics.IncRejected(l.channel, "")
		r.log.Warn("Decode incoming message.", "channel", l.channel, "size", len(data), "error", err)
		return false
	}
	name := msg.Action().Name()
	defer func() {
		if v := recover(); v != nil {
			r.metrics.IncRejected(l.channel, name)
			r.log.Error("Message handler panic.", "channel", l.channel, "action", name, "panic", v, "stack", string(debug.Stack()))
			handled = false
		}
	}()
	if err := l.handler.HandleMessage(src, msg); err != nil {
		r.metrics.IncRejected(l.channel, name)
		r.log.Error("Handle incoming message.", "channel", l.channel, "action", name, "server", msg.ServerName(), "error", err)
		return false
	}
	r.metrics.IncReceived(l.channel, name)
	r.log.Debug("Message received.", "channel", l.channel, "action", name, "server", msg.ServerName(), "sender", msg.SenderUID())
	return true
}

func (r *Registry) deliverRaw(handlers []subHandler, sub string, src Messenger, data []byte) bool {
	handled := 0
	for _, s := range handlers {
		if r.callRaw(s.h, sub, src, data) {
			handled++
		}
	}
	if handled == 0 {
		return false
	}
	r.metrics.IncReceived(BungeeChannel, sub)
	r.log.Debug("Sub-channel payload received.", "subchannel", sub, "handlers", handled)
	return true
}

func (r *Registry) callRaw(h SubchannelHandler, sub string, src Messenger, data []byte) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			r.metrics.IncRejected(BungeeChannel, sub)
			r.log.Error("Sub-channel handler panic.", "subchannel", sub, "panic", v, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	h(src, slices.Clone(data))
	return true
}

// String ...
func (l *Listener) String() string {
	return fmt.Sprintf("Listener{channel=%s, actions=[%s]}", l.channel, l.actions.names())
}
