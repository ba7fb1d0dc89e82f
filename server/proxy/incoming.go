package proxy

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// IncomingMessage is a message received from another server. Values must be
// read in the order declared by the message's Action.
type IncomingMessage struct {
	message
	data []byte
	r    *dataReader
}

// ParseIncoming reads the header of data and resolves its action using the
// listener passed. The values of the message are read with the Read methods.
func ParseIncoming(l *Listener, data []byte) (*IncomingMessage, error) {
	r := newDataReader(data)
	senderText, err := r.readUTF()
	if err != nil {
		return nil, fmt.Errorf("read sender: %w", err)
	}
	sender, err := uuid.Parse(senderText)
	if err != nil {
		return nil, fmt.Errorf("%w: sender %q: %v", ErrMalformed, senderText, err)
	}
	server, err := r.readUTF()
	if err != nil {
		return nil, fmt.Errorf("read server name: %w", err)
	}
	name, err := r.readUTF()
	if err != nil {
		return nil, fmt.Errorf("read action: %w", err)
	}
	a, ok := l.actions.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownAction, name, l.actions.names())
	}
	return &IncomingMessage{message: newMessage(l, sender, server, a), data: data, r: r}, nil
}

// Data returns the raw bytes the message was parsed from.
func (m *IncomingMessage) Data() []byte {
	return slices.Clone(m.data)
}

// ReadString reads a String slot.
func (m *IncomingMessage) ReadString() (string, error) {
	if err := m.moveHead(String); err != nil {
		return "", err
	}
	return m.r.readUTF()
}

// ReadBool reads a Bool slot.
func (m *IncomingMessage) ReadBool() (bool, error) {
	if err := m.moveHead(Bool); err != nil {
		return false, err
	}
	return m.r.readBool()
}

// ReadByte reads a Byte slot.
func (m *IncomingMessage) ReadByte() (byte, error) {
	if err := m.moveHead(Byte); err != nil {
		return 0, err
	}
	return m.r.readByte()
}

// ReadShort reads a Short slot.
func (m *IncomingMessage) ReadShort() (int16, error) {
	if err := m.moveHead(Short); err != nil {
		return 0, err
	}
	return m.r.readShort()
}

// ReadInt reads an Int slot.
func (m *IncomingMessage) ReadInt() (int32, error) {
	if err := m.moveHead(Int); err != nil {
		return 0, err
	}
	return m.r.readInt()
}

// ReadLong reads a Long slot.
func (m *IncomingMessage) ReadLong() (int64, error) {
	if err := m.moveHead(Long); err != nil {
		return 0, err
	}
	return m.r.readLong()
}

// ReadFloat reads a Float slot.
func (m *IncomingMessage) ReadFloat() (float32, error) {
	if err := m.moveHead(Float); err != nil {
		return 0, err
	}
	return m.r.readFloat()
}

// ReadDouble reads a Double slot.
func (m *IncomingMessage) ReadDouble() (float64, error) {
	if err := m.moveHead(Double); err != nil {
		return 0, err
	}
	return m.r.readDouble()
}

// ReadUUID reads a UUID slot.
func (m *IncomingMessage) ReadUUID() (uuid.UUID, error) {
	if err := m.moveHead(UUID); err != nil {
		return uuid.Nil, err
	}
	text, err := m.r.readUTF()
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(text)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: uuid %q: %v", ErrMalformed, text, err)
	}
	return id, nil
}

// ReadBytes reads a Bytes slot.
func (m *IncomingMessage) ReadBytes() ([]byte, error) {
	if err := m.moveHead(Bytes); err != nil {
		return nil, err
	}
	n, err := m.r.readInt()
	if err != nil {
		return nil, err
	}
	b, err := m.r.next(int(n))
	if err != nil {
		return nil, err
	}
	return slices.Clone(b), nil
}

// ReadMap reads a Map slot.
func (m *IncomingMessage) ReadMap() (map[string]any, error) {
	if err := m.moveHead(Map); err != nil {
		return nil, err
	}
	text, err := m.r.readUTF()
	if err != nil {
		return nil, err
	}
	v := make(map[string]any)
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("%w: map: %v", ErrMalformed, err)
	}
	return v, nil
}
