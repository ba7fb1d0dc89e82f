package plugin

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/conversation"
	"github.com/df-mc/foundation/server/proxy"
)

type eventRegistration[T any] struct {
	plugin  string
	handler T
	id      uint64
}

type eventList[T any] struct {
	regs []eventRegistration[T]
	next uint64
}

func (l *eventList[T]) add(plugin string, handler T) uint64 {
	id := l.next
	l.next++
	l.regs = append(l.regs, eventRegistration[T]{plugin: plugin, handler: handler, id: id})
	return id
}

func (l *eventList[T]) removeByID(id uint64) (eventRegistration[T], bool) {
	i := slices.IndexFunc(l.regs, func(reg eventRegistration[T]) bool { return reg.id == id })
	if i == -1 {
		return eventRegistration[T]{}, false
	}
	reg := l.regs[i]
	l.regs = slices.Delete(l.regs, i, i+1)
	return reg, true
}

// removePlugin removes and returns every registration of plugin.
func (l *eventList[T]) removePlugin(plugin string) []eventRegistration[T] {
	var removed []eventRegistration[T]
	l.regs = slices.DeleteFunc(l.regs, func(reg eventRegistration[T]) bool {
		if reg.plugin == plugin {
			removed = append(removed, reg)
			return true
		}
		return false
	})
	return removed
}

func (l *eventList[T]) rename(oldName, newName string) {
	for i := range l.regs {
		if l.regs[i].plugin == oldName {
			l.regs[i].plugin = newName
		}
	}
}

func (l *eventList[T]) owned(plugin string) []T {
	var out []T
	for _, reg := range l.regs {
		if reg.plugin == plugin {
			out = append(out, reg.handler)
		}
	}
	return out
}

func (l *eventList[T]) snapshot() []eventRegistration[T] {
	if len(l.regs) == 0 {
		return nil
	}
	return slices.Clone(l.regs)
}

// eventHub tracks everything a plugin registered with the server so it can be
// torn down when the plugin is disabled.
type eventHub[S any, C any] struct {
	mu      sync.Mutex
	log     *slog.Logger
	manager *Manager[S, C]

	listeners    eventList[*proxy.Listener]
	commands     eventList[string]
	conversation eventList[func(conversation.EndEvent)]
	regions      eventList[func(string)]
	subchannels  eventList[func()]

	conversationChain atomic.Value // []eventRegistration[func(conversation.EndEvent)]
	regionChain       atomic.Value // []eventRegistration[func(string)]
}

func newEventHub[S any, C any](manager *Manager[S, C], log *slog.Logger) *eventHub[S, C] {
	if log == nil {
		log = slog.Default()
	}
	hub := &eventHub[S, C]{manager: manager, log: log.With("subsystem", "plugin.events")}
	hub.conversationChain.Store([]eventRegistration[func(conversation.EndEvent)]{})
	hub.regionChain.Store([]eventRegistration[func(string)]{})
	return hub
}

func (pe *eventHub[S, C]) registry() *proxy.Registry {
	return pe.manager.host.Registry()
}

// addListener registers l with the host's registry on behalf of plugin.
func (pe *eventHub[S, C]) addListener(plugin string, l *proxy.Listener) (func(), error) {
	reg := pe.registry()
	if reg == nil || !reg.Register(l) {
		return nil, ErrChannelTaken
	}
	pe.mu.Lock()
	id := pe.listeners.add(plugin, l)
	pe.mu.Unlock()
	pe.log.Debug("Plugin listener registered.", "plugin", plugin, "channel", l.Channel())

	var once sync.Once
	return func() {
		once.Do(func() {
			pe.mu.Lock()
			_, ok := pe.listeners.removeByID(id)
			pe.mu.Unlock()
			if ok {
				pe.unregisterListener(l)
			}
		})
	}, nil
}

func (pe *eventHub[S, C]) unregisterListener(l *proxy.Listener) {
	reg := pe.registry()
	if reg == nil {
		return
	}
	if cur, ok := reg.Listener(l.Channel()); ok && cur == l {
		reg.Unregister(l.Channel())
	}
}

func (pe *eventHub[S, C]) addCommand(plugin string, c cmd.Command) {
	cmd.Register(c)
	pe.mu.Lock()
	pe.commands.add(plugin, c.Name())
	pe.mu.Unlock()
}

func (pe *eventHub[S, C]) addConversationEnd(plugin string, handler func(conversation.EndEvent)) func() {
	if handler == nil {
		return func() {}
	}
	pe.mu.Lock()
	id := pe.conversation.add(plugin, handler)
	pe.conversationChain.Store(pe.conversation.snapshot())
	pe.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			pe.mu.Lock()
			pe.conversation.removeByID(id)
			pe.conversationChain.Store(pe.conversation.snapshot())
			pe.mu.Unlock()
		})
	}
}

func (pe *eventHub[S, C]) addRegionChange(plugin string, handler func(string)) func() {
	if handler == nil {
		return func() {}
	}
	pe.mu.Lock()
	id := pe.regions.add(plugin, handler)
	pe.regionChain.Store(pe.regions.snapshot())
	pe.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			pe.mu.Lock()
			pe.regions.removeByID(id)
			pe.regionChain.Store(pe.regions.snapshot())
			pe.mu.Unlock()
		})
	}
}

// addSubchannel registers handler with the host's registry for the Bungee
// sub-channel sub on behalf of plugin.
func (pe *eventHub[S, C]) addSubchannel(plugin, sub string, handler proxy.SubchannelHandler) func() {
	reg := pe.registry()
	if reg == nil || handler == nil {
		return func() {}
	}
	remove := reg.OnSubchannel(sub, func(src proxy.Messenger, data []byte) {
		pe.invoke(plugin, func() { handler(src, data) })
	})
	pe.mu.Lock()
	id := pe.subchannels.add(plugin, remove)
	pe.mu.Unlock()
	pe.log.Debug("Plugin sub-channel handler registered.", "plugin", plugin, "subchannel", sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			pe.mu.Lock()
			pe.subchannels.removeByID(id)
			pe.mu.Unlock()
			remove()
		})
	}
}

// owned returns the channels and command names registered by plugin.
func (pe *eventHub[S, C]) owned(plugin string) (channels, commands []string) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	for _, l := range pe.listeners.owned(plugin) {
		channels = append(channels, l.Channel())
	}
	commands = pe.commands.owned(plugin)
	slices.Sort(channels)
	slices.Sort(commands)
	return channels, commands
}

func (pe *eventHub[S, C]) clear(plugin string) {
	pe.mu.Lock()
	listeners := pe.listeners.removePlugin(plugin)
	commands := pe.commands.removePlugin(plugin)
	pe.conversation.removePlugin(plugin)
	pe.regions.removePlugin(plugin)
	subs := pe.subchannels.removePlugin(plugin)
	pe.conversationChain.Store(pe.conversation.snapshot())
	pe.regionChain.Store(pe.regions.snapshot())
	pe.mu.Unlock()

	for _, reg := range listeners {
		pe.unregisterListener(reg.handler)
	}
	for _, reg := range commands {
		cmd.Unregister(reg.handler)
	}
	for _, reg := range subs {
		reg.handler()
	}
	if n := len(listeners) + len(commands); n > 0 {
		pe.log.Debug("Plugin registrations removed.", "plugin", plugin, "listeners", len(listeners), "commands", len(commands))
	}
}

func (pe *eventHub[S, C]) rename(oldName, newName string) {
	if newName == "" || oldName == newName {
		return
	}
	pe.mu.Lock()
	pe.listeners.rename(oldName, newName)
	pe.commands.rename(oldName, newName)
	pe.conversation.rename(oldName, newName)
	pe.regions.rename(oldName, newName)
	pe.subchannels.rename(oldName, newName)
	pe.conversationChain.Store(pe.conversation.snapshot())
	pe.regionChain.Store(pe.regions.snapshot())
	pe.mu.Unlock()
}

func (pe *eventHub[S, C]) loadConversationChain() []eventRegistration[func(conversation.EndEvent)] {
	if v := pe.conversationChain.Load(); v != nil {
		return v.([]eventRegistration[func(conversation.EndEvent)])
	}
	return nil
}

func (pe *eventHub[S, C]) loadRegionChain() []eventRegistration[func(string)] {
	if v := pe.regionChain.Load(); v != nil {
		return v.([]eventRegistration[func(string)])
	}
	return nil
}

func (pe *eventHub[S, C]) conversationEnded(e conversation.EndEvent) {
	for _, reg := range pe.loadConversationChain() {
		handler := reg.handler
		pe.invoke(reg.plugin, func() { handler(e) })
	}
}

func (pe *eventHub[S, C]) regionChanged(name string) {
	for _, reg := range pe.loadRegionChain() {
		handler := reg.handler
		pe.invoke(reg.plugin, func() { handler(name) })
	}
}

func (pe *eventHub[S, C]) invoke(plugin string, call func()) {
	if call == nil {
		return
	}
	if plugin == "" {
		call()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			pe.manager.panicked(plugin, r)
		}
	}()
	call()
}
