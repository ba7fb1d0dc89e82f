package proxy

import (
	"fmt"
	"math"
	"strings"
)

// Sub-channels of BungeeChannel understood by the BungeeCord proxy.
const (
	SubConnect         = "Connect"
	SubConnectOther    = "ConnectOther"
	SubGetServer       = "GetServer"
	SubGetServers      = "GetServers"
	SubPlayerCount     = "PlayerCount"
	SubPlayerList      = "PlayerList"
	SubMessage         = "Message"
	SubKickPlayer      = "KickPlayer"
	SubForward         = "Forward"
	SubForwardToPlayer = "ForwardToPlayer"
)

// AllServers is the target name used to address every server behind the proxy.
const AllServers = "ALL"

func utfPayload(values ...string) ([]byte, error) {
	var w dataWriter
	for _, v := range values {
		if err := w.writeUTF(v); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// Connect asks the proxy to move the player whose connection the request is
// sent over to another server.
func Connect(server string) ([]byte, error) {
	return utfPayload(SubConnect, server)
}

// ConnectOther asks the proxy to move a named player to another server.
func ConnectOther(player, server string) ([]byte, error) {
	return utfPayload(SubConnectOther, player, server)
}

// GetServer asks the proxy for the name of the server the request is sent
// from.
func GetServer() ([]byte, error) {
	return utfPayload(SubGetServer)
}

// GetServers asks the proxy for the names of all servers.
func GetServers() ([]byte, error) {
	return utfPayload(SubGetServers)
}

// PlayerCount asks the proxy for the player count of a server, or of the whole
// network if server is AllServers.
func PlayerCount(server string) ([]byte, error) {
	return utfPayload(SubPlayerCount, server)
}

// PlayerList asks the proxy for the player names of a server, or of the whole
// network if server is AllServers.
func PlayerList(server string) ([]byte, error) {
	return utfPayload(SubPlayerList, server)
}

// Message asks the proxy to send a chat message to a player anywhere on the
// network.
func Message(player, text string) ([]byte, error) {
	return utfPayload(SubMessage, player, text)
}

// KickPlayer asks the proxy to disconnect a player with a reason.
func KickPlayer(player, reason string) ([]byte, error) {
	return utfPayload(SubKickPlayer, player, reason)
}

// ForwardRequest wraps data in a request for the proxy to forward it on
// channel to a server. An empty server forwards to AllServers.
func ForwardRequest(server, channel string, data []byte) ([]byte, error) {
	if server == "" {
		server = AllServers
	}
	return envelope(data, SubForward, server, channel)
}

// ForwardToPlayer wraps data in a request for the proxy to forward it on
// channel to the server a named player is on.
func ForwardToPlayer(player, channel string, data []byte) ([]byte, error) {
	return envelope(data, SubForwardToPlayer, player, channel)
}

// ForwardDelivery produces the payload a proxy delivers on BungeeChannel to a
// server that a forwarded message is addressed to.
func ForwardDelivery(channel string, data []byte) ([]byte, error) {
	return envelope(data, channel)
}

func envelope(data []byte, header ...string) ([]byte, error) {
	if len(data) > math.MaxInt16 {
		return nil, fmt.Errorf("%w: forwarded payload is %d bytes, max %d", ErrOversized, len(data), math.MaxInt16)
	}
	var w dataWriter
	for _, h := range header {
		if err := w.writeUTF(h); err != nil {
			return nil, err
		}
	}
	w.writeShort(int16(len(data)))
	w.write(data)
	if w.len() > MaxMessageSize {
		return nil, fmt.Errorf("%w: envelope is %d bytes, max %d", ErrOversized, w.len(), MaxMessageSize)
	}
	return w.bytes(), nil
}

// Subchannel returns the sub-channel name a BungeeChannel payload starts with.
func Subchannel(data []byte) (string, error) {
	return newDataReader(data).readUTF()
}

// ParseForward reads a forwarded message as delivered by the proxy: the
// channel it was forwarded on followed by the length-prefixed payload.
func ParseForward(data []byte) (channel string, payload []byte, err error) {
	r := newDataReader(data)
	if channel, err = r.readUTF(); err != nil {
		return "", nil, err
	}
	payload, err = readShortPrefixed(r)
	if err != nil {
		return "", nil, err
	}
	if r.remaining() != 0 {
		return "", nil, fmt.Errorf("%w: %d trailing bytes after forwarded payload", ErrMalformed, r.remaining())
	}
	return channel, payload, nil
}

// ParseForwardRequest reads a Forward or ForwardToPlayer request as sent by a
// server to the proxy. target is a server name, AllServers or a player name.
func ParseForwardRequest(data []byte) (sub, target, channel string, payload []byte, err error) {
	r := newDataReader(data)
	if sub, err = r.readUTF(); err != nil {
		return
	}
	if sub != SubForward && sub != SubForwardToPlayer {
		err = fmt.Errorf("%w: sub-channel %q is not a forward request", ErrMalformed, sub)
		return
	}
	if target, err = r.readUTF(); err != nil {
		return
	}
	if channel, err = r.readUTF(); err != nil {
		return
	}
	payload, err = readShortPrefixed(r)
	return
}

func readShortPrefixed(r *dataReader) ([]byte, error) {
	n, err := r.readShort()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative payload length %d", ErrMalformed, n)
	}
	b, err := r.next(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// GetServerResponse produces the proxy's answer to GetServer.
func GetServerResponse(server string) ([]byte, error) {
	return utfPayload(SubGetServer, server)
}

// GetServersResponse produces the proxy's answer to GetServers.
func GetServersResponse(servers []string) ([]byte, error) {
	return utfPayload(SubGetServers, strings.Join(servers, ", "))
}

// PlayerCountResponse produces the proxy's answer to PlayerCount.
func PlayerCountResponse(server string, count int32) ([]byte, error) {
	var w dataWriter
	if err := w.writeUTF(SubPlayerCount); err != nil {
		return nil, err
	}
	if err := w.writeUTF(server); err != nil {
		return nil, err
	}
	w.writeInt(count)
	return w.bytes(), nil
}

// PlayerListResponse produces the proxy's answer to PlayerList.
func PlayerListResponse(server string, players []string) ([]byte, error) {
	return utfPayload(SubPlayerList, server, strings.Join(players, ", "))
}

func expectSub(r *dataReader, want string) error {
	sub, err := r.readUTF()
	if err != nil {
		return err
	}
	if sub != want {
		return fmt.Errorf("%w: expected sub-channel %s, got %s", ErrMalformed, want, sub)
	}
	return nil
}

// ParseGetServer reads the answer to GetServer.
func ParseGetServer(data []byte) (string, error) {
	r := newDataReader(data)
	if err := expectSub(r, SubGetServer); err != nil {
		return "", err
	}
	return r.readUTF()
}

// ParseGetServers reads the answer to GetServers.
func ParseGetServers(data []byte) ([]string, error) {
	r := newDataReader(data)
	if err := expectSub(r, SubGetServers); err != nil {
		return nil, err
	}
	list, err := r.readUTF()
	if err != nil {
		return nil, err
	}
	return splitList(list), nil
}

// ParsePlayerCount reads the answer to PlayerCount.
func ParsePlayerCount(data []byte) (server string, count int32, err error) {
	r := newDataReader(data)
	if err = expectSub(r, SubPlayerCount); err != nil {
		return
	}
	if server, err = r.readUTF(); err != nil {
		return
	}
	count, err = r.readInt()
	return
}

// ParsePlayerList reads the answer to PlayerList.
func ParsePlayerList(data []byte) (server string, players []string, err error) {
	r := newDataReader(data)
	if err = expectSub(r, SubPlayerList); err != nil {
		return
	}
	if server, err = r.readUTF(); err != nil {
		return
	}
	list, err := r.readUTF()
	if err != nil {
		return "", nil, err
	}
	return server, splitList(list), nil
}

// ParseStringRequest reads a request made of a sub-channel followed by string
// arguments, such as Connect or PlayerCount.
func ParseStringRequest(data []byte, args int) (sub string, values []string, err error) {
	r := newDataReader(data)
	if sub, err = r.readUTF(); err != nil {
		return
	}
	values = make([]string, args)
	for i := range values {
		if values[i], err = r.readUTF(); err != nil {
			return "", nil, err
		}
	}
	return sub, values, nil
}

func splitList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
