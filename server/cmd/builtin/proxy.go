package builtin

import (
	"github.com/df-mc/foundation/server/cmd"
)

type proxyChannelsCommand struct {
	Channels cmd.SubCommand `cmd:"channels"`
	srv      serverAdapter
}

type proxyServersCommand struct {
	Servers cmd.SubCommand `cmd:"servers"`
	srv     serverAdapter
}

func newProxyCommand(srv serverAdapter) cmd.Command {
	return cmd.New(
		"proxy",
		"Shows plugin message channels and linked servers.",
		nil,
		proxyChannelsCommand{srv: srv},
		proxyServersCommand{srv: srv},
	)
}

func (p proxyChannelsCommand) Run(_ cmd.Source, o *cmd.Output) {
	reg := p.srv.Registry()
	channels := reg.Channels()
	if len(channels) == 0 {
		o.Print("No channels have a listener.")
		return
	}
	o.Printf("Channels (%d):", len(channels))
	for _, channel := range channels {
		c := reg.Metrics().Channel(channel)
		o.Printf("%s: %d sent, %d received, %d rejected, %d oversized", channel, c.Sent, c.Received, c.Rejected, c.Oversized)
	}
}

func (p proxyServersCommand) Run(_ cmd.Source, o *cmd.Output) {
	switch p.srv.Mode() {
	case "proxy":
		servers := p.srv.LinkedServers()
		o.Printf("Linked servers (%d): %s", len(servers), joinNames(servers))
	default:
		if p.srv.Linked() {
			o.Printf("%s is linked to the proxy.", p.srv.Name())
			return
		}
		o.Printf("%s is not linked to a proxy.", p.srv.Name())
	}
}
