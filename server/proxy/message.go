package proxy

import (
	"fmt"

	"github.com/google/uuid"
)

// MaxMessageSize is the largest payload, in bytes, that may be sent over a
// plugin message channel.
const MaxMessageSize = 32766

// message holds the state shared by incoming and outgoing messages: the
// header values and the position of the head within the action's content.
type message struct {
	listener *Listener
	sender   uuid.UUID
	server   string
	action   Action
	content  []ContentType
	head     int
}

func newMessage(l *Listener, sender uuid.UUID, server string, a Action) message {
	return message{listener: l, sender: sender, server: server, action: a, content: a.Content()}
}

// Channel returns the channel of the listener the message belongs to.
func (m *message) Channel() string {
	return m.listener.Channel()
}

// SenderUID returns the UUID of the player or server that sent the message.
func (m *message) SenderUID() uuid.UUID {
	return m.sender
}

// ServerName returns the name of the server the message originates from.
func (m *message) ServerName() string {
	return m.server
}

// Action returns the action of the message.
func (m *message) Action() Action {
	return m.action
}

// Remaining returns the amount of value slots not yet written or read.
func (m *message) Remaining() int {
	return len(m.content) - m.head
}

// moveHead checks that the next slot of the action has type t and advances
// past it.
func (m *message) moveHead(t ContentType) error {
	if m.head >= len(m.content) {
		return fmt.Errorf("%w: %s holds %d values (channel %s)", ErrHeadOutOfBounds, m.action.Name(), len(m.content), m.Channel())
	}
	if want := m.content[m.head]; want != t {
		return fmt.Errorf("%w: %s slot %d is %v, got %v", ErrContentMismatch, m.action.Name(), m.head, want, t)
	}
	m.head++
	return nil
}
