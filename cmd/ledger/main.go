// Command ledger is a terminal client for the income ledger API.
//
// Every command first navigates to the page it belongs to, so the same login
// guard that protects the web pages decides whether the command may run.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"ledger/internal/app"
	"ledger/internal/cli"
	"ledger/internal/router"
	"ledger/internal/transport"
)

var errNotLoggedIn = errors.New("not logged in, run 'ledger login'")

type command struct {
	name  string
	usage string
	// route is the page the command belongs to. Empty means the command runs
	// without navigating.
	route string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{}

func register(cmds ...command) {
	for _, c := range cmds {
		commands[c.name] = c
	}
}

func init() {
	register(authCommands()...)
	register(incomeCommands()...)
	register(transferCommands()...)
}

// env is what a command can reach.
type env struct {
	rt     *cli.Runtime
	app    *app.App
	stdin  *bufio.Reader
	rawIn  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "ledger: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(stderr, "ledger: %v\n", err)
		return 1
	}
	logger := cli.SetupLogger(cfg, stderr)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	rt, err := cli.Bootstrap(ctx, cfg, logger, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ledger: %v\n", err)
		return 1
	}
	defer rt.Close()

	e := &env{
		rt:     rt,
		app:    rt.App,
		stdin:  bufio.NewReader(stdin),
		rawIn:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	if cmd.route != "" {
		if _, err := e.enter(ctx, cmd.route); err != nil {
			return report(stderr, err)
		}
	}
	if err := cmd.run(ctx, e, args[1:]); err != nil {
		return report(stderr, err)
	}
	return 0
}

// report prints err unless the transport already showed it as a notice.
func report(stderr io.Writer, err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 2
	}
	var te *transport.Error
	if !errors.As(err, &te) || te.Kind == transport.KindCanceled {
		fmt.Fprintf(stderr, "ledger: %v\n", err)
	}
	return 1
}

// enter navigates to target and fails when the guard sent us to login.
func (e *env) enter(ctx context.Context, target string) (router.Location, error) {
	loc, err := e.app.Navigate(ctx, target)
	if err != nil {
		return loc, err
	}
	if loc.Path == router.PathLogin && !strings.HasPrefix(target, router.PathLogin) {
		return loc, errNotLoggedIn
	}
	return loc, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ledger <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].usage)
	}
}

// newFlags returns a flag set that reports errors instead of exiting.
func newFlags(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("ledger "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// subcommand splits "records list ..." style arguments.
func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}
