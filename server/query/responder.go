package query

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	queryTypeHandshake   = 0x09
	queryTypeInformation = 0x00

	tokenLifetime = 30 * time.Second
)

var (
	querySplitNum  = [...]byte{'S', 'P', 'L', 'I', 'T', 'N', 'U', 'M', 0x00}
	queryPlayerKey = [...]byte{0x00, 0x01, 'p', 'l', 'a', 'y', 'e', 'r', '_', 0x00, 0x00}
	queryVersion   = [...]byte{0xfe, 0xfd}
)

// Provider returns the current status of the server. It is called once for
// every validated information request.
type Provider func() Data

// Responder answers query requests on a UDP socket.
type Responder struct {
	conn     net.PacketConn
	log      *slog.Logger
	provider Provider
	host     string
	port     int

	mu     sync.Mutex
	tokens map[string]token

	closeOnce sync.Once
}

type token struct {
	value  int32
	expiry time.Time
}

// Listen opens a UDP socket on addr. Requests are not answered until Serve is
// called.
func Listen(addr string, provider Provider, log *slog.Logger) (*Responder, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen query: %w", err)
	}
	return newResponder(conn, provider, log), nil
}

func newResponder(conn net.PacketConn, provider Provider, log *slog.Logger) *Responder {
	if log == nil {
		log = slog.Default()
	}
	if provider == nil {
		provider = func() Data { return Data{} }
	}
	r := &Responder{
		conn:     conn,
		log:      log.With("subsystem", "query"),
		provider: provider,
		host:     "0.0.0.0",
		tokens:   make(map[string]token),
	}
	if local, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		if local.IP != nil && !local.IP.IsUnspecified() {
			r.host = local.IP.String()
		}
		r.port = local.Port
	}
	return r
}

// Addr returns the address the responder is bound to.
func (r *Responder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Serve answers requests until ctx is cancelled or the responder is closed.
func (r *Responder) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	buf := make([]byte, 2048)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read query: %w", err)
		}
		r.handle(buf[:n], addr)
	}
}

// Close stops the responder. It is safe to call Close multiple times.
func (r *Responder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.conn.Close()
	})
	return err
}

// handle processes one datagram. It reports false for anything that is not a
// query request.
func (r *Responder) handle(b []byte, addr net.Addr) bool {
	if len(b) < 7 || b[0] != queryVersion[0] || b[1] != queryVersion[1] {
		return false
	}
	sequence := int32(binary.BigEndian.Uint32(b[3:7]))
	switch b[2] {
	case queryTypeHandshake:
		r.writeHandshake(addr, sequence, r.newToken(addr.String()))
		return true
	case queryTypeInformation:
		if len(b) <= 7 {
			return true
		}
		value, ok := parseTokenValue(b[7:])
		if !ok || !r.validToken(addr.String(), value) {
			r.log.Debug("Query request with invalid token.", "raddr", addr.String())
			return true
		}
		r.writeInfo(addr, sequence)
		return true
	default:
		return false
	}
}

func (r *Responder) newToken(addr string) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for k, t := range r.tokens {
		if now.After(t.expiry) {
			delete(r.tokens, k)
		}
	}
	value := rand.Int32()
	r.tokens[addr] = token{value: value, expiry: now.Add(tokenLifetime)}
	return value
}

func (r *Responder) validToken(addr string, value int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[addr]
	if !ok || time.Now().After(t.expiry) || t.value != value {
		delete(r.tokens, addr)
		return false
	}
	return true
}

func (r *Responder) writeHandshake(addr net.Addr, sequence, value int32) {
	buf := bytes.NewBuffer(make([]byte, 0, 1+4+12))
	buf.WriteByte(queryTypeHandshake)
	_ = binary.Write(buf, binary.BigEndian, sequence)

	s := strconv.FormatInt(int64(value), 10)
	if len(s) > 12 {
		s = s[:12]
	}
	buf.WriteString(s)
	buf.Write(make([]byte, 12-len(s)))
	if _, err := r.conn.WriteTo(buf.Bytes(), addr); err != nil {
		r.log.Debug("Query handshake write failed.", "err", err, "raddr", addr.String())
	}
}

func (r *Responder) writeInfo(addr net.Addr, sequence int32) {
	data := r.provider()
	data.HostIP, data.HostPort = r.host, r.port
	data.applyDefaults()

	buf := bytes.NewBuffer(make([]byte, 0, 256))
	buf.WriteByte(queryTypeInformation)
	_ = binary.Write(buf, binary.BigEndian, sequence)
	buf.Write(querySplitNum[:])
	buf.WriteByte(0x80)
	buf.WriteByte(0x00)
	for _, kv := range data.keyValues() {
		buf.WriteString(kv.key)
		buf.WriteByte(0x00)
		buf.WriteString(kv.value)
		buf.WriteByte(0x00)
	}
	buf.WriteByte(0x00)
	buf.Write(queryPlayerKey[:])
	for _, name := range data.Servers {
		buf.WriteString(name)
		buf.WriteByte(0x00)
	}
	buf.WriteByte(0x00)

	if _, err := r.conn.WriteTo(buf.Bytes(), addr); err != nil {
		r.log.Debug("Query info write failed.", "err", err, "raddr", addr.String())
	}
}

// parseTokenValue reads the challenge token of an information request. Some
// clients send it as ASCII digits, others as a big endian int32.
func parseTokenValue(payload []byte) (int32, bool) {
	trimmed := payload
	if i := bytes.Index(trimmed, []byte{0xff, 0xff, 0xff, 0x01}); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = bytes.TrimRight(trimmed, "\x00")
	if len(trimmed) > 0 {
		if value, err := strconv.ParseInt(string(trimmed), 10, 32); err == nil {
			return int32(value), true
		}
	}
	if len(payload) >= 4 {
		return int32(binary.BigEndian.Uint32(payload[:4])), true
	}
	return 0, false
}
