// Command foundation runs a Foundation server in standalone, backend or proxy
// mode, as configured in config.toml.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/df-mc/foundation/server"
	"github.com/df-mc/foundation/server/cmd/builtin"
	"github.com/df-mc/foundation/server/console"
)

func main() {
	path := flag.String("config", "config.toml", "path to the configuration file")
	debug := flag.Bool("debug", false, "log debug messages")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	uc, err := server.LoadUserConfig(*path)
	if err != nil {
		log.Error("Load config.", "error", err)
		os.Exit(1)
	}
	conf, err := uc.Config(log)
	if err != nil {
		log.Error("Convert config.", "error", err)
		os.Exit(1)
	}
	srv, err := conf.New()
	if err != nil {
		log.Error("Create server.", "error", err)
		os.Exit(1)
	}
	srv.CloseOnProgramEnd()
	builtin.Register(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go console.New(srv, log).Run(ctx)

	if err := srv.Run(ctx); err != nil {
		log.Error("Run server.", "error", err)
		_ = srv.Close()
		os.Exit(1)
	}
	// Run returns once Close was called, by the stop command or a signal.
	_ = srv.Close()
}
