package query

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	gophertunnelquery "github.com/sandertv/gophertunnel/query"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type packetRecorder struct {
	writes [][]byte
}

func (p *packetRecorder) ReadFrom([]byte) (int, net.Addr, error) {
	return 0, nil, errors.New("not implemented")
}

func (p *packetRecorder) WriteTo(b []byte, _ net.Addr) (int, error) {
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *packetRecorder) Close() error                     { return nil }
func (p *packetRecorder) LocalAddr() net.Addr              { return &net.UDPAddr{Port: 19132} }
func (p *packetRecorder) SetDeadline(time.Time) error      { return nil }
func (p *packetRecorder) SetReadDeadline(time.Time) error  { return nil }
func (p *packetRecorder) SetWriteDeadline(time.Time) error { return nil }

func TestResponderAnswersGophertunnelClient(t *testing.T) {
	expected := Data{
		HostName:         "Lobby",
		Mode:             "proxy",
		Engine:           "Foundation (test)",
		Version:          "1.21.100",
		Servers:          []string{"survival", "creative"},
		MaxServers:       8,
		Plugins:          []string{"Parties", "Chat"},
		Channels:         3,
		Regions:          12,
		AllowlistEnabled: true,
	}
	r, err := Listen("127.0.0.1:0", func() Data { return expected }, discardLogger())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	addr := r.Addr().(*net.UDPAddr)
	information, err := gophertunnelquery.Do(addr.String())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	checks := map[string]string{
		"hostname":      "Lobby",
		"gametype":      "FOUNDATION",
		"version":       "1.21.100",
		"server_engine": "Foundation (test)",
		"plugins":       "Foundation (test): Parties; Chat",
		"numplayers":    "2",
		"maxplayers":    "8",
		"whitelist":     "on",
		"hostip":        "127.0.0.1",
		"hostport":      strconv.Itoa(addr.Port),
		"mode":          "proxy",
		"channels":      "3",
		"regions":       "12",
		"players":       "creative, survival",
	}
	for key, want := range checks {
		if got, ok := information[key]; !ok || got != want {
			t.Fatalf("information[%q] = %q (present %v), want %q", key, got, ok, want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}

func informationRequest(sequence uint32, tokenPayload []byte) []byte {
	b := append([]byte(nil), queryVersion[:]...)
	b = append(b, queryTypeInformation)
	b = binary.BigEndian.AppendUint32(b, sequence)
	return append(b, tokenPayload...)
}

func TestResponderTokens(t *testing.T) {
	rec := &packetRecorder{}
	r := newResponder(rec, nil, discardLogger())
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 43210}

	r.tokens[addr.String()] = token{value: 7654321, expiry: time.Now().Add(time.Minute)}
	ascii := append([]byte("7654321\x00"), 0xff, 0xff, 0xff, 0x01)
	if !r.handle(informationRequest(42, ascii), addr) {
		t.Fatalf("information request not handled")
	}
	if len(rec.writes) != 1 || rec.writes[0][0] != queryTypeInformation {
		t.Fatalf("expected one information response, got %d writes", len(rec.writes))
	}

	// A wrong token is consumed without a response.
	r.tokens[addr.String()] = token{value: 1, expiry: time.Now().Add(time.Minute)}
	r.handle(informationRequest(43, binary.BigEndian.AppendUint32(nil, 2)), addr)
	if len(rec.writes) != 1 {
		t.Fatalf("response written for an invalid token")
	}
	if _, ok := r.tokens[addr.String()]; ok {
		t.Fatalf("invalid token was not discarded")
	}

	r.tokens[addr.String()] = token{value: 5, expiry: time.Now().Add(-time.Second)}
	r.handle(informationRequest(44, []byte("5")), addr)
	if len(rec.writes) != 1 {
		t.Fatalf("response written for an expired token")
	}
}

func TestResponderIgnoresOtherTraffic(t *testing.T) {
	rec := &packetRecorder{}
	r := newResponder(rec, nil, discardLogger())
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	for _, b := range [][]byte{{0x01, 0x02}, {0xfe, 0xfd, 0x05, 0, 0, 0, 1}, {0x00, 0xfd, 0x09, 0, 0, 0, 1}} {
		if r.handle(b, addr) {
			t.Fatalf("handle(%x) = true", b)
		}
	}
	if len(rec.writes) != 0 {
		t.Fatalf("unexpected writes: %d", len(rec.writes))
	}
}

func TestHandshakeToken(t *testing.T) {
	rec := &packetRecorder{}
	r := newResponder(rec, nil, discardLogger())
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 2}

	b := append([]byte(nil), queryVersion[:]...)
	b = append(b, queryTypeHandshake, 0, 0, 0, 9)
	if !r.handle(b, addr) {
		t.Fatalf("handshake not handled")
	}
	if len(rec.writes) != 1 || len(rec.writes[0]) != 1+4+12 {
		t.Fatalf("unexpected handshake response %x", rec.writes)
	}
	value, ok := parseTokenValue(rec.writes[0][5:])
	if !ok || !r.validToken(addr.String(), value) {
		t.Fatalf("issued token %d not accepted", value)
	}
}

func TestDataDefaults(t *testing.T) {
	d := Data{Servers: []string{"b", "a"}, HostPort: 70000}
	d.applyDefaults()
	if d.HostName == "" || d.Engine == "" || d.Version == "" {
		t.Fatalf("defaults not applied: %+v", d)
	}
	if d.MaxServers != 2 || d.Servers[0] != "a" {
		t.Fatalf("servers not normalised: %+v", d)
	}
	if d.HostPort != 70000-65536 {
		t.Fatalf("HostPort = %d", d.HostPort)
	}
	if got := d.pluginsValue(); got != d.Engine {
		t.Fatalf("pluginsValue() = %q", got)
	}
}
