// Package console implements the interactive BDM console: a line oriented
// command interpreter over one Session.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/memmap"
)

// ErrNotConnected is returned by target commands before init succeeded.
var ErrNotConnected = errors.New("not connected")

// usageError reports a command invoked with the wrong arguments.
type usageError struct {
	usage string
}

func (e *usageError) Error() string {
	return "Usage: " + e.usage
}

// Console reads commands from in and writes results to out.
type Console struct {
	session *bdm.Session
	in      *bufio.Reader
	out     io.Writer

	pins   bdm.PinSet
	layout memmap.Map
	dir    string
	prompt bool
}

// Option configures a Console.
type Option func(*Console)

// WithPins sets the wiring shown by the test command.
func WithPins(p bdm.PinSet) Option {
	return func(c *Console) {
		c.pins = p
	}
}

// WithMap sets the memory layout used by map and quickdump.
func WithMap(m memmap.Map) Option {
	return func(c *Console) {
		c.layout = m
	}
}

// WithOutputDir sets where dumpfile and quickdump create files.
func WithOutputDir(dir string) Option {
	return func(c *Console) {
		c.dir = dir
	}
}

// WithPrompt enables the "BDM> " prompt, for interactive input.
func WithPrompt(on bool) Option {
	return func(c *Console) {
		c.prompt = on
	}
}

// New creates a console over session.
func New(session *bdm.Session, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		session: session,
		in:      bufio.NewReader(in),
		out:     out,
		pins:    bdm.DefaultPinSet,
		layout:  memmap.MCF54415,
		dir:     ".",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) println(args ...interface{}) {
	fmt.Fprintln(c.out, args...)
}

// Run reads and executes commands until quit, end of input or ctx is done.
// The session is disconnected on the way out.
func (c *Console) Run(ctx context.Context) error {
	c.printf("%s BDM Console\n", c.layout.Part)
	c.println("Type 'help' for available commands")
	c.println(strings.Repeat("=", 40))

	defer func() {
		if err := c.session.Disconnect(); err != nil {
			glog.Warningf("console: disconnect: %v", err)
		}
		c.println("BDM interface closed.")
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.prompt {
			c.printf("BDM> ")
		}
		input, err := c.in.ReadString('\n')
		if err != nil && input == "" {
			if err == io.EOF {
				return nil
			}
			return err
		}

		quit, xerr := c.Exec(ctx, input)
		if xerr != nil {
			c.report(xerr)
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) report(err error) {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		c.println(err)
	case errors.Is(err, ErrNotConnected):
		c.println("Error: Not connected! Use 'init' first.")
	case isTargetError(err):
		c.printf("BDM Error: %v\n", err)
	default:
		c.printf("Error: %v\n", err)
	}
}

func isTargetError(err error) bool {
	for _, target := range []error{bdm.ErrCommandTimeout, bdm.ErrResponse, bdm.ErrPort, bdm.ErrState, bdm.ErrSync, bdm.ErrDebugModeEntry} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Exec runs one command line. quit is true for quit and exit.
func (c *Console) Exec(ctx context.Context, input string) (quit bool, err error) {
	line, err := ParseLine(input)
	if err != nil || line == nil {
		return false, err
	}
	if line.Command == "quit" || line.Command == "exit" {
		return true, nil
	}

	cmd, ok := commands[line.Command]
	if !ok {
		c.printf("Unknown command: %s\n", line.Command)
		c.println("Type 'help' for available commands")
		return false, nil
	}
	if len(line.Args) < cmd.minArgs || len(line.Args) > cmd.maxArgs {
		return false, &usageError{usage: cmd.usage}
	}
	if cmd.needsTarget && c.session.State() != bdm.StateDebugMode {
		return false, ErrNotConnected
	}
	glog.V(1).Infof("console: %s %v", line.Command, line.Args)
	return false, cmd.run(c, ctx, line.Args)
}

// confirm asks a yes/no question on the console input.
func (c *Console) confirm(question string) bool {
	c.printf("%s (y/N): ", question)
	answer, _ := c.in.ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
