package conversation

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// EndEvent describes a conversation that ended.
type EndEvent struct {
	Player uuid.UUID
	Reason EndReason
	Ctx    *Context
}

// Manager holds at most one conversation per player.
type Manager struct {
	log   *slog.Logger
	onEnd func(EndEvent)

	mu    sync.Mutex
	convs map[uuid.UUID]*Conversation
}

// NewManager creates a Manager. onEnd, if not nil, is called for every
// conversation that ends.
func NewManager(log *slog.Logger, onEnd func(EndEvent)) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{log: log, onEnd: onEnd, convs: make(map[uuid.UUID]*Conversation)}
}

// Start starts a conversation with p. A conversation p is already in is
// abandoned first. The first prompt is asked without the manager locked, so
// prompts may call back into the Manager.
func (m *Manager) Start(p Messenger, first Prompt, conf Config) *Conversation {
	m.Abandon(p.UUID())

	id := p.UUID()
	onEnd := conf.OnEnd
	// entry is guarded by m.mu. The conversation may end before Start below
	// returns, in which case it is never stored.
	entry := &struct {
		c     *Conversation
		ended bool
	}{}
	conf.Log = m.log
	conf.OnEnd = func(ctx *Context, reason EndReason) {
		m.mu.Lock()
		entry.ended = true
		if entry.c != nil && m.convs[id] == entry.c {
			delete(m.convs, id)
		}
		m.mu.Unlock()
		if onEnd != nil {
			onEnd(ctx, reason)
		}
		if m.onEnd != nil {
			m.onEnd(EndEvent{Player: id, Reason: reason, Ctx: ctx})
		}
	}
	c := Start(p, first, conf)

	m.mu.Lock()
	entry.c = c
	var replaced *Conversation
	if !entry.ended {
		replaced = m.convs[id]
		m.convs[id] = c
	}
	m.mu.Unlock()
	if replaced != nil && replaced != c {
		replaced.End(Abandoned)
	}
	return c
}

// Input passes chat input of a player to their conversation. It returns false
// if the player is not in a conversation, in which case the input should be
// handled as normal chat.
func (m *Manager) Input(player uuid.UUID, text string) bool {
	c, ok := m.Conversation(player)
	if !ok {
		return false
	}
	return c.Input(text)
}

// Conversation returns the conversation a player is in.
func (m *Manager) Conversation(player uuid.UUID) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[player]
	return c, ok
}

// Abandon ends the conversation of a player with Abandoned.
func (m *Manager) Abandon(player uuid.UUID) {
	if c, ok := m.Conversation(player); ok {
		c.End(Abandoned)
	}
}

// Cancel ends the conversation of a player with Cancelled.
func (m *Manager) Cancel(player uuid.UUID) bool {
	c, ok := m.Conversation(player)
	if ok {
		c.End(Cancelled)
	}
	return ok
}

// Close abandons every conversation.
func (m *Manager) Close() {
	m.mu.Lock()
	convs := make([]*Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		convs = append(convs, c)
	}
	m.mu.Unlock()
	for _, c := range convs {
		c.End(Abandoned)
	}
}

// Len returns the amount of active conversations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs)
}
