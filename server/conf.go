package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/df-mc/foundation/server/plugin"
	"github.com/df-mc/foundation/server/proxy/link"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/visual"
	"github.com/pelletier/go-toml"
)

// Link modes a Server can run in.
const (
	// ModeStandalone runs without a link. Plugin messages can only be
	// received, never sent.
	ModeStandalone = "standalone"
	// ModeBackend dials the proxy and keeps the link alive.
	ModeBackend = "backend"
	// ModeProxy listens for backends and relays messages between them.
	ModeProxy = "proxy"
)

// Config contains the options for creating a Foundation server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Name is the name of the server. Backends introduce themselves to the
	// proxy with it.
	Name string
	// Mode is one of ModeStandalone, ModeBackend or ModeProxy. Empty means
	// ModeStandalone.
	Mode string
	// LinkAddress is the address the proxy listens on, or the address of the
	// proxy a backend dials.
	LinkAddress string
	// ReconnectInterval is the time a backend waits before dialing the proxy
	// again after the link failed. Defaults to five seconds.
	ReconnectInterval time.Duration
	// Allower filters the backends that may link to a proxy. If the Allower is
	// an *Allowlist, the allowlist commands manage it.
	Allower link.Allower
	// QueryAddress is the UDP address status queries are answered on. Empty
	// disables the query responder.
	QueryAddress string
	// Regions configures the region store.
	Regions store.Config
	// WatchRegions reports region files changed on disk to plugins. It only
	// has an effect with the disk backend.
	WatchRegions bool
	// Outline holds the defaults used when a region is visualised.
	Outline visual.RegionConfig
	// Blocks holds the settings of the blocks marking selection corners.
	Blocks visual.BlocksConfig
	// Plugins controls the plugin loader.
	Plugins plugin.Config
}

// New creates a Server using the fields of conf. The link is not established
// until Server.Run is called.
func (conf Config) New() (*Server, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Name == "" {
		conf.Name = "Foundation Server"
	}
	conf.Mode = strings.ToLower(strings.TrimSpace(conf.Mode))
	switch conf.Mode {
	case "":
		conf.Mode = ModeStandalone
	case ModeStandalone, ModeBackend, ModeProxy:
	default:
		return nil, fmt.Errorf("config: unknown mode %q", conf.Mode)
	}
	if conf.Mode != ModeStandalone && conf.LinkAddress == "" {
		return nil, fmt.Errorf("config: %s mode requires a link address", conf.Mode)
	}
	if conf.ReconnectInterval <= 0 {
		conf.ReconnectInterval = 5 * time.Second
	}
	if conf.Outline.Range <= 0 {
		conf.Outline.Range = visual.DefaultRange
	}
	if conf.Regions.Log == nil {
		conf.Regions.Log = conf.Log
	}
	return newServer(conf)
}

// UserConfig is the user configuration of a Foundation server. It is stored as
// TOML and may be overridden by FOUNDATION_ environment variables. It is
// converted to a Config by calling UserConfig.Config().
type UserConfig struct {
	Server struct {
		// Name is the name the server is known by behind the proxy.
		Name string `env:"FOUNDATION_SERVER_NAME"`
		// Mode is "standalone", "backend" or "proxy".
		Mode string `env:"FOUNDATION_SERVER_MODE"`
	}
	Link struct {
		// Address is listened on in proxy mode and dialed in backend mode.
		Address string `env:"FOUNDATION_LINK_ADDRESS"`
		// ReconnectSeconds is the delay before a backend dials again.
		ReconnectSeconds int `env:"FOUNDATION_LINK_RECONNECT_SECONDS"`
	}
	Allowlist struct {
		// Enabled controls if only listed backends may link to the proxy.
		Enabled bool `env:"FOUNDATION_ALLOWLIST_ENABLED"`
		// File is the TOML file the allowed server names are stored in.
		File string `env:"FOUNDATION_ALLOWLIST_FILE"`
	}
	Query struct {
		// Address is the UDP address status queries are answered on. Leave
		// empty to disable queries.
		Address string `env:"FOUNDATION_QUERY_ADDRESS"`
	}
	Regions struct {
		// Backend is "disk" for one YAML file per region or "leveldb".
		Backend string `env:"FOUNDATION_REGIONS_BACKEND"`
		// Folder holds the region files or database.
		Folder string `env:"FOUNDATION_REGIONS_FOLDER"`
		// Watch reports region files edited on disk to plugins.
		Watch bool `env:"FOUNDATION_REGIONS_WATCH"`
	}
	Visual struct {
		// Particle is the particle region outlines are drawn with.
		Particle string `env:"FOUNDATION_VISUAL_PARTICLE"`
		// IntervalMillis is the time between two redraws of an outline.
		IntervalMillis int `env:"FOUNDATION_VISUAL_INTERVAL_MILLIS"`
		// Range is the distance in blocks within which outlines are shown.
		Range float64 `env:"FOUNDATION_VISUAL_RANGE"`
		// MaskRuntimeID, FallingRuntimeID and AirRuntimeID are the block
		// runtime ids used to mark selected corners.
		MaskRuntimeID    uint32 `env:"FOUNDATION_VISUAL_MASK_RUNTIME_ID"`
		FallingRuntimeID uint32 `env:"FOUNDATION_VISUAL_FALLING_RUNTIME_ID"`
		AirRuntimeID     uint32 `env:"FOUNDATION_VISUAL_AIR_RUNTIME_ID"`
	}
	Plugins struct {
		// Enabled controls whether the plugin loader runs.
		Enabled bool `env:"FOUNDATION_PLUGINS_ENABLED"`
		// Directory is searched for .so plugin files.
		Directory string `env:"FOUNDATION_PLUGINS_DIRECTORY"`
		// DataDirectory holds one data folder per plugin.
		DataDirectory string `env:"FOUNDATION_PLUGINS_DATA_DIRECTORY"`
		// Autoload loads every plugin found in Directory.
		Autoload bool `env:"FOUNDATION_PLUGINS_AUTOLOAD"`
		// Files lists additional plugin files to load.
		Files []string `env:"FOUNDATION_PLUGINS_FILES"`
		// Disabled lists plugin file names that autoload skips.
		Disabled []string `env:"FOUNDATION_PLUGINS_DISABLED"`
	}
}

// Config converts a UserConfig to a Config, so that it may be used for creating
// a Server. An error is returned if the allowlist could not be loaded.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	conf := Config{
		Log:               log,
		Name:              uc.Server.Name,
		Mode:              uc.Server.Mode,
		LinkAddress:       uc.Link.Address,
		ReconnectInterval: time.Duration(uc.Link.ReconnectSeconds) * time.Second,
		QueryAddress:      uc.Query.Address,
		Regions: store.Config{
			Backend: uc.Regions.Backend,
			Dir:     uc.Regions.Folder,
			Log:     log,
		},
		WatchRegions: uc.Regions.Watch,
		Outline: visual.RegionConfig{
			Particle: uc.Visual.Particle,
			Interval: time.Duration(uc.Visual.IntervalMillis) * time.Millisecond,
			Range:    uc.Visual.Range,
		},
		Blocks: visual.BlocksConfig{
			MaskRuntimeID:    uc.Visual.MaskRuntimeID,
			FallingRuntimeID: uc.Visual.FallingRuntimeID,
			AirRuntimeID:     uc.Visual.AirRuntimeID,
		},
		Plugins: plugin.Config{
			Enabled:       uc.Plugins.Enabled,
			Directory:     uc.Plugins.Directory,
			DataDirectory: uc.Plugins.DataDirectory,
			Autoload:      uc.Plugins.Autoload,
			Files:         uc.Plugins.Files,
			Disabled:      uc.Plugins.Disabled,
		},
	}
	if strings.EqualFold(strings.TrimSpace(uc.Server.Mode), ModeProxy) {
		file := strings.TrimSpace(uc.Allowlist.File)
		if file == "" {
			file = "allowlist.toml"
		}
		al, err := LoadAllowlist(file)
		if err != nil {
			return conf, fmt.Errorf("load allowlist: %w", err)
		}
		al.SetEnabled(uc.Allowlist.Enabled)
		conf.Allower = al
	}
	return conf, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Server.Name = "Foundation Server"
	c.Server.Mode = ModeStandalone
	c.Link.Address = "127.0.0.1:25577"
	c.Link.ReconnectSeconds = 5
	c.Allowlist.File = "allowlist.toml"
	c.Regions.Backend = store.BackendDisk
	c.Regions.Folder = "regions"
	c.Regions.Watch = true
	c.Visual.Particle = visual.DefaultParticle
	c.Visual.IntervalMillis = int(visual.DefaultInterval / time.Millisecond)
	c.Visual.Range = visual.DefaultRange
	c.Plugins.Enabled = true
	c.Plugins.Directory = "plugins"
	c.Plugins.Autoload = true
	return c
}

// LoadUserConfig reads the configuration stored at path and applies the
// environment overrides. If the file does not exist, it is created with the
// default values.
func LoadUserConfig(path string) (UserConfig, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		encoded, err := toml.Marshal(c)
		if err != nil {
			return c, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.WriteFile(path, encoded, 0644); err != nil {
			return c, fmt.Errorf("create default config: %w", err)
		}
	case err != nil:
		return c, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}
