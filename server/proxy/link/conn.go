// Package link carries plugin messages between a proxy and its backend servers
// over TCP, framed with the Minecraft Java packet codec.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/df-mc/foundation/server/proxy"
)

const (
	packetHello      int32 = 0x00
	packetPayload    int32 = 0x01
	packetDisconnect int32 = 0x02
)

// handshakeTimeout bounds how long the hub waits for the hello packet of a
// freshly accepted connection.
const handshakeTimeout = 5 * time.Second

var (
	// ErrRejected is returned when the hub refuses a backend connection.
	ErrRejected = errors.New("link rejected")
	// ErrUnexpectedPacket is returned when a packet with an unknown id is read.
	ErrUnexpectedPacket = errors.New("unexpected packet")
)

// Conn is one end of a link. It implements proxy.Messenger so that outgoing
// messages may be sent over it directly.
type Conn struct {
	name string
	raw  net.Conn
	mc   *mcnet.Conn
	log  *slog.Logger

	wmu       sync.Mutex
	closeOnce sync.Once
}

func newConn(raw net.Conn, name string, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{name: name, raw: raw, mc: mcnet.WrapConn(raw), log: log}
}

// Dial connects to the hub at addr and introduces this server as name.
func Dial(ctx context.Context, addr, name string, log *slog.Logger) (*Conn, error) {
	if name == "" {
		return nil, fmt.Errorf("dial link: server name is empty")
	}
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial link: %w", err)
	}
	c := newConn(raw, name, log)
	if err := c.write(pk.Marshal(packetHello, pk.String(name))); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}
	return c, nil
}

// Name returns the name of the backend server the connection belongs to.
func (c *Conn) Name() string {
	return c.name
}

// RemoteAddr returns the address of the other end of the link.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// SendPluginMessage sends data on channel to the other end of the link.
func (c *Conn) SendPluginMessage(channel string, data []byte) error {
	if len(data) > proxy.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes on %s", proxy.ErrOversized, len(data), channel)
	}
	return c.write(pk.Marshal(packetPayload, pk.Identifier(channel), pk.PluginMessageData(data)))
}

func (c *Conn) write(p pk.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.mc.WritePacket(p)
}

// ReadPluginMessage blocks until the next plugin message arrives.
func (c *Conn) ReadPluginMessage() (channel string, data []byte, err error) {
	var p pk.Packet
	if err := c.mc.ReadPacket(&p); err != nil {
		return "", nil, err
	}
	switch p.ID {
	case packetPayload:
		var (
			ch      pk.Identifier
			payload pk.PluginMessageData
		)
		if err := p.Scan(&ch, &payload); err != nil {
			return "", nil, fmt.Errorf("decode payload: %w", err)
		}
		return string(ch), []byte(payload), nil
	case packetDisconnect:
		var reason pk.String
		if err := p.Scan(&reason); err != nil {
			return "", nil, fmt.Errorf("%w: unreadable reason", ErrRejected)
		}
		return "", nil, fmt.Errorf("%w: %s", ErrRejected, string(reason))
	default:
		return "", nil, fmt.Errorf("%w: %#x", ErrUnexpectedPacket, p.ID)
	}
}

// Serve reads plugin messages until the connection fails or ctx is cancelled
// and dispatches each of them to reg. Replies sent by handlers go back over c.
func (c *Conn) Serve(ctx context.Context, reg *proxy.Registry) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	for {
		channel, data, err := c.ReadPluginMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if !reg.Dispatch(channel, c, data) {
			c.log.Debug("Unhandled plugin message.", "channel", channel, "size", len(data))
		}
	}
}

// Close closes the connection. It is safe to call Close multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.raw.Close()
	})
	return err
}

func (c *Conn) disconnect(reason string) {
	_ = c.raw.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.write(pk.Marshal(packetDisconnect, pk.String(reason)))
	_ = c.Close()
}
