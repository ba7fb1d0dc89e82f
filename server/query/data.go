package query

import (
	"runtime/debug"
	"slices"
	"strconv"
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/protocol"
)

// Data is the status a Responder reports. Linked backend servers take the place
// of players, so that existing query clients list them.
type Data struct {
	// HostName is the name of the server.
	HostName string
	// Mode is the link mode the server runs in.
	Mode string
	// Engine identifies the software. When empty, engineLabel is used.
	Engine string
	// Version is the protocol version advertised. Defaults to
	// protocol.CurrentVersion.
	Version string
	// Servers lists the backend servers currently linked.
	Servers []string
	// MaxServers is reported as the capacity. Zero reports len(Servers).
	MaxServers int
	// Plugins holds the names of the enabled plugins.
	Plugins []string
	// Channels is the number of plugin message channels with a listener.
	Channels int
	// Regions is the number of stored regions.
	Regions int
	// AllowlistEnabled reports whether backends are filtered by the allowlist.
	AllowlistEnabled bool

	// HostIP and HostPort are filled in by the Responder.
	HostIP   string
	HostPort int
}

type keyValue struct {
	key   string
	value string
}

var engineLabel = buildEngineLabel()

func buildEngineLabel() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return "Foundation"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	return "Foundation (" + version + ")"
}

func (d *Data) applyDefaults() {
	if d.HostName == "" {
		d.HostName = "Foundation Server"
	}
	if d.HostIP == "" {
		d.HostIP = "0.0.0.0"
	}
	if d.Engine == "" {
		d.Engine = engineLabel
	}
	if d.Version == "" {
		d.Version = protocol.CurrentVersion
	}
	if d.MaxServers < len(d.Servers) {
		d.MaxServers = len(d.Servers)
	}
	d.HostPort = int(uint16(d.HostPort))
	d.Servers = slices.Clone(d.Servers)
	slices.Sort(d.Servers)
}

// pluginsValue renders the plugins the way query clients parse them: the
// engine, a colon and the plugins separated by semicolons.
func (d Data) pluginsValue() string {
	if len(d.Plugins) == 0 {
		return d.Engine
	}
	return d.Engine + ": " + strings.Join(d.Plugins, "; ")
}

func (d Data) keyValues() []keyValue {
	allowlist := "off"
	if d.AllowlistEnabled {
		allowlist = "on"
	}
	values := []keyValue{
		{"hostname", d.HostName},
		{"gametype", "FOUNDATION"},
		{"game_id", "MINECRAFT"},
		{"version", d.Version},
		{"server_engine", d.Engine},
		{"plugins", d.pluginsValue()},
		{"numplayers", strconv.Itoa(len(d.Servers))},
		{"maxplayers", strconv.Itoa(d.MaxServers)},
		{"whitelist", allowlist},
		{"hostip", d.HostIP},
		{"hostport", strconv.Itoa(d.HostPort)},
	}
	if d.Mode != "" {
		values = append(values, keyValue{"mode", d.Mode})
	}
	values = append(values,
		keyValue{"channels", strconv.Itoa(d.Channels)},
		keyValue{"regions", strconv.Itoa(d.Regions)},
	)
	if len(d.Servers) > 0 {
		values = append(values, keyValue{"players", strings.Join(d.Servers, ", ")})
	}
	return values
}
