package builtin

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/proxy"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
)

type aboutCommand struct {
	srv serverAdapter
}

func newAboutCommand(srv serverAdapter) cmd.Command {
	return cmd.New("about", "Displays Foundation build information.", []string{"version"}, aboutCommand{srv: srv})
}

func (a aboutCommand) Run(_ cmd.Source, o *cmd.Output) {
	o.Print("Foundation")

	info, ok := debug.ReadBuildInfo()
	goVersion := runtime.Version()
	if ok && info != nil && info.GoVersion != "" {
		goVersion = info.GoVersion
	}

	o.Printf("Bedrock protocol: %s", protocol.CurrentVersion)
	o.Printf("Plugin message limit: %d bytes", proxy.MaxMessageSize)
	o.Printf("Go runtime: %s", goVersion)

	if info != nil {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				o.Printf("Commit: %s", setting.Value)
				break
			}
		}
	}

	if started := a.srv.StartTime(); !started.IsZero() {
		o.Printf("Uptime: %s", time.Since(started).Round(time.Second))
	}
}
