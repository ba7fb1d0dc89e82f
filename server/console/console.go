// Package console reads operator commands from a terminal or any other
// io.Reader and executes them on the server.
package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/fatih/color"
)

// Executor runs a command line on behalf of a source. *server.Server
// implements it.
type Executor interface {
	ExecuteCommand(source cmd.Source, commandLine string)
}

// Console is a command source backed by an io.Reader, os.Stdin by default.
// Command output is written to an io.Writer, errors in red.
type Console struct {
	exec   Executor
	log    *slog.Logger
	reader io.Reader
	out    io.Writer
}

// New returns a Console that executes commands with exec.
func New(exec Executor, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		exec:   exec,
		log:    log.With("subsystem", "console"),
		reader: os.Stdin,
		out:    color.Output,
	}
}

// WithReader sets the reader commands are read from.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// WithOutput sets the writer command output is written to.
func (c *Console) WithOutput(w io.Writer) *Console {
	if w != nil {
		c.out = w
	}
	return c
}

// Run executes one command per line until ctx is cancelled or the reader
// reaches EOF.
func (c *Console) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.reader)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.log.Error("Console input failed.", "error", err)
		}
	}()

	src := &source{out: c.out}
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			c.log.Debug("Console command.", "line", line)
			c.exec.ExecuteCommand(src, line)
		}
	}
}

var (
	errorColour   = color.New(color.FgRed)
	messageColour = color.New(color.Reset)
)

type source struct {
	out io.Writer
}

// Name ...
func (*source) Name() string { return "Console" }

// SendCommandOutput ...
func (s *source) SendCommandOutput(o *cmd.Output) {
	for _, msg := range o.Messages() {
		_, _ = messageColour.Fprintln(s.out, msg)
	}
	for _, err := range o.Errors() {
		_, _ = errorColour.Fprintln(s.out, err.Error())
	}
}
