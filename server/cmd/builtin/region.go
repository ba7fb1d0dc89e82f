package builtin

import (
	"errors"
	"strings"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/df-mc/foundation/server/region/store"
)

type regionListCommand struct {
	List cmd.SubCommand `cmd:"list"`
	srv  serverAdapter
}

type regionInfoCommand struct {
	Info cmd.SubCommand `cmd:"info"`
	Name string         `cmd:"name"`
	srv  serverAdapter
}

type regionDeleteCommand struct {
	operatorOnly
	Delete cmd.SubCommand `cmd:"delete"`
	Name   string         `cmd:"name"`
	srv    serverAdapter
}

func newRegionCommand(srv serverAdapter) cmd.Command {
	return cmd.New(
		"region",
		"Lists, inspects and deletes saved regions.",
		[]string{"rg"},
		regionListCommand{srv: srv},
		regionInfoCommand{srv: srv},
		regionDeleteCommand{srv: srv},
	)
}

func (r regionListCommand) Run(_ cmd.Source, o *cmd.Output) {
	names := r.srv.Regions().Names()
	if len(names) == 0 {
		o.Print("No regions saved.")
		return
	}
	o.Printf("Regions (%d): %s", len(names), strings.Join(names, ", "))
}

func (r regionInfoCommand) Run(_ cmd.Source, o *cmd.Output) {
	reg, err := r.srv.Regions().Get(r.Name)
	if errors.Is(err, store.ErrNotFound) {
		o.Errorf("Region %s does not exist.", r.Name)
		return
	} else if err != nil {
		o.Error(err)
		return
	}
	o.Printf("Region %s", reg.Name())
	min, max, ok := reg.Corners()
	if !ok {
		o.Print("Selection incomplete.")
		return
	}
	o.Printf("World: %s", reg.World())
	o.Printf("From %s to %s", min, max)
	o.Printf("Volume: %d blocks", reg.Volume())
	if c, err := reg.Center(); err == nil {
		o.Printf("Center: %s", c)
	}
}

func (r regionDeleteCommand) Run(src cmd.Source, o *cmd.Output) {
	err := r.srv.Regions().Delete(r.Name)
	if errors.Is(err, store.ErrNotFound) {
		o.Errorf("Region %s does not exist.", r.Name)
		return
	} else if err != nil {
		o.Error(err)
		return
	}
	o.Printf("Region %s deleted by %s.", r.Name, sourceName(src))
}
