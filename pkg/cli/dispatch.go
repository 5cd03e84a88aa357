package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/klantle/watchdogs-sub000/pkg/compiler"
	"github.com/klantle/watchdogs-sub000/pkg/hashutil"
)

// ErrUnknownCommand is returned by Execute for names it does not handle
var ErrUnknownCommand = errors.New("unknown command")

// commandNames are the subcommands accepted by Execute, used for suggestions
var commandNames = []string{
	"compile", "compiles", "run", "stop", "restart", "debug", "restore",
	"install", "replicate", "list", "hash", "compress", "status", "logs",
	"watch", "config", "help",
}

func isCommand(name string) bool {
	for _, c := range commandNames {
		if c == name {
			return true
		}
	}
	return false
}

// Execute runs one subcommand; args[0] is its name
func (a *App) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	rest := args[1:]

	var err error
	switch args[0] {
	case "compile":
		err = a.handleCompile(ctx, rest, false)
	case "compiles":
		err = a.handleCompile(ctx, rest, true)
	case "run":
		err = a.handleRun(ctx, rest)
	case "stop":
		err = a.StopCmd()
	case "restart":
		err = a.RestartCmd(ctx)
	case "debug":
		err = a.DebugCmd(ctx)
	case "restore":
		err = a.RestoreCmd()
	case "install":
		err = a.InstallCmd(ctx, rest)
	case "replicate":
		err = a.ReplicateCmd(ctx, rest)
	case "list":
		err = a.handleList(rest)
	case "hash":
		err = a.handleHash(rest)
	case "compress":
		err = a.handleCompress(rest)
	case "status":
		err = a.handleStatus(rest)
	case "logs":
		err = a.handleLogs(rest)
	case "watch":
		err = a.WatchCmd()
	case "config":
		err = a.handleConfig(rest)
	case "help":
		PrintUsage(a.stdout)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}

	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func (a *App) newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *App) handleCompile(ctx context.Context, args []string, andRun bool) error {
	name := "compile"
	if andRun {
		name = "compiles"
	}
	fs := a.newFlagSet(name)
	var flags compiler.Flags
	fs.BoolVar(&flags.Debug, "debug", false, "Emit debug information (-d2)")
	fs.BoolVar(&flags.Assembler, "assembler", false, "Write the assembler listing (-a)")
	fs.BoolVar(&flags.Compat, "compat", false, "Compatibility mode (-Z+)")
	fs.BoolVar(&flags.Prolix, "prolix", false, "Verbose compiler output (-v2)")
	fs.BoolVar(&flags.Compact, "compact", false, "Compact encoding (-C+)")
	fs.BoolVar(&flags.Detailed, "detailed", false, "Show the artifact detail block")

	if err := fs.Parse(args); err != nil {
		return err
	}
	input := fs.Arg(0)

	if andRun {
		return a.CompilesCmd(ctx, input, flags)
	}
	res, err := a.CompileCmd(ctx, input, flags)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("compile of %s failed", res.Input)
	}
	return nil
}

func (a *App) handleRun(ctx context.Context, args []string) error {
	fs := a.newFlagSet("run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.RunCmd(ctx, fs.Arg(0))
}

func (a *App) handleList(args []string) error {
	fs := a.newFlagSet("list")
	outdated := fs.Bool("outdated", false, "Check GitHub for newer tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.ListCmd(*outdated)
}

func (a *App) handleHash(args []string) error {
	fs := a.newFlagSet("hash")
	algo := fs.String("algo", hashutil.AlgoBLAKE3, "Hash algorithm: "+strings.Join(hashutil.Algorithms, "|"))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: watchdogs hash [--algo name] <file|text>")
	}
	return a.HashCmd(*algo, strings.Join(fs.Args(), " "))
}

func (a *App) handleCompress(args []string) error {
	fs := a.newFlagSet("compress")
	format := fs.String("type", "", "Archive type (zip, tar, gz, zst, lz4)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: watchdogs compress [--type T] <input> <output>")
	}
	return a.CompressCmd(fs.Arg(0), fs.Arg(1), *format)
}

func (a *App) handleStatus(args []string) error {
	fs := a.newFlagSet("status")
	port := fs.Int("port", 0, "Query port (default: from the server config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.StatusCmd(*port)
}

func (a *App) handleLogs(args []string) error {
	fs := a.newFlagSet("logs")
	lines := fs.Int("lines", 50, "Number of lines to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.LogsCmd(*lines)
}

func (a *App) handleConfig(args []string) error {
	fs := a.newFlagSet("config")
	server := fs.String("server", "", "Server type: samp or openmp (default: current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.ConfigCmd(*server)
}

// PrintUsage writes the command overview
func PrintUsage(w io.Writer) {
	usage := `Watchdogs - SA-MP / open.mp development helper

Default:
  watchdogs                          Open the interactive shell

Build and run:
  watchdogs compile [file] [--debug] [--detailed]
  watchdogs compiles [file]          Compile, then run the result
  watchdogs run [gamemode]
  watchdogs stop
  watchdogs restart
  watchdogs restore                  Put the backed up server config back

Diagnose:
  watchdogs debug                    Scan the server log and offer fixes
  watchdogs watch                    Follow the server log live
  watchdogs logs [--lines N]
  watchdogs status [--port N]

Dependencies:
  watchdogs install <user/repo[?tag]>...
  watchdogs replicate                Install [depends].aio_repo
  watchdogs list [--outdated]

Tools:
  watchdogs hash [--algo djb2|crc32|sha256|blake3] <file|text>
  watchdogs compress [--type T] <input> <output>
  watchdogs config [--server samp|openmp]

Meta:
  watchdogs help
  watchdogs --version

Global options:
  -C, --dir DIR        Project directory (default: working directory)
  --log-level LEVEL    debug, info, warn or error

Shell only:
  exit, time, title <text>; anything else runs as a plain command
`
	fmt.Fprint(w, usage)
}
