package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Messenger is a connection able to send a plugin message over a named
// channel. Player connections of the host server and link connections both
// implement it.
type Messenger interface {
	SendPluginMessage(channel string, data []byte) error
}

// OutgoingMessage is a message being composed for sending. Values must be
// written in the order declared by the message's Action.
type OutgoingMessage struct {
	message
	body dataWriter
}

// NewOutgoing creates an OutgoingMessage for the listener passed. The action
// must be one of the listener's actions.
func NewOutgoing(l *Listener, sender uuid.UUID, server string, a Action) (*OutgoingMessage, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: action", ErrNilValue)
	}
	known, ok := l.actions.lookup(a.Name())
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownAction, a.Name(), l.actions.names())
	}
	return &OutgoingMessage{message: newMessage(l, sender, server, known)}, nil
}

// WriteString writes each of the strings passed to consecutive String slots.
func (m *OutgoingMessage) WriteString(values ...string) error {
	for _, v := range values {
		if len(encodeModifiedUTF8(v)) > maxUTFLength {
			return fmt.Errorf("%w: slot %d", ErrStringTooLong, m.head)
		}
		if err := m.moveHead(String); err != nil {
			return err
		}
		_ = m.body.writeUTF(v)
	}
	return nil
}

// WriteBool writes a Bool slot.
func (m *OutgoingMessage) WriteBool(v bool) error {
	if err := m.moveHead(Bool); err != nil {
		return err
	}
	m.body.writeBool(v)
	return nil
}

// WriteByte writes a Byte slot.
func (m *OutgoingMessage) WriteByte(v byte) error {
	if err := m.moveHead(Byte); err != nil {
		return err
	}
	m.body.writeByte(v)
	return nil
}

// WriteShort writes a Short slot.
func (m *OutgoingMessage) WriteShort(v int16) error {
	if err := m.moveHead(Short); err != nil {
		return err
	}
	m.body.writeShort(v)
	return nil
}

// WriteInt writes an Int slot.
func (m *OutgoingMessage) WriteInt(v int32) error {
	if err := m.moveHead(Int); err != nil {
		return err
	}
	m.body.writeInt(v)
	return nil
}

// WriteLong writes a Long slot.
func (m *OutgoingMessage) WriteLong(v int64) error {
	if err := m.moveHead(Long); err != nil {
		return err
	}
	m.body.writeLong(v)
	return nil
}

// WriteFloat writes a Float slot.
func (m *OutgoingMessage) WriteFloat(v float32) error {
	if err := m.moveHead(Float); err != nil {
		return err
	}
	m.body.writeFloat(v)
	return nil
}

// WriteDouble writes a Double slot.
func (m *OutgoingMessage) WriteDouble(v float64) error {
	if err := m.moveHead(Double); err != nil {
		return err
	}
	m.body.writeDouble(v)
	return nil
}

// WriteUUID writes a UUID slot in its textual form.
func (m *OutgoingMessage) WriteUUID(id uuid.UUID) error {
	if err := m.moveHead(UUID); err != nil {
		return err
	}
	_ = m.body.writeUTF(id.String())
	return nil
}

// WriteBytes writes a Bytes slot, prefixed with its length.
func (m *OutgoingMessage) WriteBytes(b []byte) error {
	if b == nil {
		return fmt.Errorf("%w: bytes slot %d", ErrNilValue, m.head)
	}
	if err := m.moveHead(Bytes); err != nil {
		return err
	}
	m.body.writeInt(int32(len(b)))
	m.body.write(b)
	return nil
}

// WriteMap writes a Map slot as a JSON object.
func (m *OutgoingMessage) WriteMap(v map[string]any) error {
	if v == nil {
		return fmt.Errorf("%w: map slot %d", ErrNilValue, m.head)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode map slot %d: %w", m.head, err)
	}
	if len(encodeModifiedUTF8(string(encoded))) > maxUTFLength {
		return fmt.Errorf("%w: map slot %d", ErrStringTooLong, m.head)
	}
	if err := m.moveHead(Map); err != nil {
		return err
	}
	_ = m.body.writeUTF(string(encoded))
	return nil
}

// Bytes encodes the message header followed by every value written. It fails
// if not all slots were written or if the result exceeds MaxMessageSize.
func (m *OutgoingMessage) Bytes() ([]byte, error) {
	if m.head != len(m.content) {
		return nil, fmt.Errorf("%w: %s has %d of %d values", ErrIncomplete, m.action.Name(), m.head, len(m.content))
	}
	var w dataWriter
	if err := w.writeUTF(m.sender.String()); err != nil {
		return nil, err
	}
	if err := w.writeUTF(m.server); err != nil {
		return nil, fmt.Errorf("server name: %w", err)
	}
	if err := w.writeUTF(m.action.Name()); err != nil {
		return nil, fmt.Errorf("action name: %w", err)
	}
	w.write(m.body.bytes())
	if w.len() > MaxMessageSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, max %d", ErrOversized, m.action.Name(), w.len(), MaxMessageSize)
	}
	return w.bytes(), nil
}

// Send encodes the message and sends it over the listener's channel.
func (m *OutgoingMessage) Send(to Messenger) error {
	data, err := m.Bytes()
	if err != nil {
		m.listener.metrics().record(m.Channel(), m.action.Name(), err)
		return err
	}
	if err := to.SendPluginMessage(m.Channel(), data); err != nil {
		return fmt.Errorf("send %s: %w", m.action.Name(), err)
	}
	m.listener.metrics().IncSent(m.Channel(), m.action.Name())
	return nil
}

// Forward encodes the message and asks the proxy to forward it to the server
// passed, or to every server when server is empty or "ALL".
func (m *OutgoingMessage) Forward(to Messenger, server string) error {
	data, err := m.Bytes()
	if err != nil {
		m.listener.metrics().record(m.Channel(), m.action.Name(), err)
		return err
	}
	envelope, err := ForwardRequest(server, m.Channel(), data)
	if err != nil {
		m.listener.metrics().record(m.Channel(), m.action.Name(), err)
		return err
	}
	if err := to.SendPluginMessage(BungeeChannel, envelope); err != nil {
		return fmt.Errorf("forward %s: %w", m.action.Name(), err)
	}
	m.listener.metrics().IncSent(m.Channel(), m.action.Name())
	return nil
}
