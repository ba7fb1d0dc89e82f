package builtin

import (
	"github.com/df-mc/foundation/server/cmd"
)

type stopCommand struct {
	operatorOnly
	srv serverAdapter
}

func newStopCommand(srv serverAdapter) cmd.Command {
	return cmd.New("stop", "Stops the server.", nil, stopCommand{srv: srv})
}

func (s stopCommand) Run(src cmd.Source, o *cmd.Output) {
	o.Printf("Stopping server (requested by %s)...", sourceName(src))
	if err := s.srv.Close(); err != nil {
		o.Error(err)
	}
}
