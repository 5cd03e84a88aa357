package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/klantle/watchdogs-sub000/pkg/process"
)

// shellBuiltins are handled by the shell itself
var shellBuiltins = []string{"exit", "time", "title"}

const shellPrompt = ">>> "

// NextAction tells the shell loop what to do after a line was handled
type NextAction interface {
	nextAction()
}

// Continue reads the next line
type Continue struct{}

// Exit leaves the shell
type Exit struct{}

// Reexecute runs Args as if they had been typed
type Reexecute struct {
	Args []string
}

func (Continue) nextAction()  {}
func (Exit) nextAction()      {}
func (Reexecute) nextAction() {}

// Shell runs the interactive prompt until exit or end of input. Command
// errors are printed and the loop goes on.
func (a *App) Shell(ctx context.Context) error {
	if a.version != "" {
		a.printer.Muted("watchdogs " + a.version)
	}
	fmt.Fprintln(a.stdout, `Type "help" for more information.`)

	var pending []string
	for {
		var act NextAction
		if len(pending) > 0 {
			act = a.handleArgs(ctx, pending)
			pending = nil
		} else {
			line, err := a.prompter.ReadLine(shellPrompt)
			if err != nil {
				if errors.Is(err, io.EOF) {
					fmt.Fprintln(a.stdout)
					return nil
				}
				return fmt.Errorf("failed to read command: %w", err)
			}
			act = a.handleLine(ctx, line)
		}

		switch act := act.(type) {
		case Exit:
			return nil
		case Reexecute:
			pending = act.Args
		case Continue:
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handleLine executes one shell line
func (a *App) handleLine(ctx context.Context, line string) NextAction {
	line = strings.TrimSpace(line)
	if line == "" {
		return Continue{}
	}
	args, err := process.ParseCommandArgs(line)
	if err != nil {
		a.printer.Errorf("%v", err)
		return Continue{}
	}
	return a.handleArgs(ctx, args)
}

// handleArgs executes one parsed shell command
func (a *App) handleArgs(ctx context.Context, args []string) NextAction {
	if len(args) == 0 {
		return Continue{}
	}

	name := args[0]
	switch name {
	case "exit":
		return Exit{}
	case "time":
		fmt.Fprintln(a.stdout, time.Now().Format("Mon Jan 2 15:04:05 2006"))
		return Continue{}
	case "title":
		fmt.Fprintf(a.stdout, "\x1b]0;%s\x07", strings.Join(args[1:], " "))
		return Continue{}
	}

	if isCommand(name) {
		if err := a.Execute(ctx, args); err != nil {
			a.printer.Errorf("%v", err)
		}
		return Continue{}
	}

	// a real executable wins over a typo suggestion
	if _, err := exec.LookPath(name); err != nil {
		if s, ok := suggestCommand(name); ok {
			if a.prompter.Confirm(fmt.Sprintf("did you mean '%s' (y/n):", s)) {
				return Reexecute{Args: append([]string{s}, args[1:]...)}
			}
			return Continue{}
		}
	}

	a.runDirect(ctx, args)
	return Continue{}
}

// runDirect runs a typed command without a shell
func (a *App) runDirect(ctx context.Context, args []string) {
	if err := validateDirectCommand(strings.Join(args, " ")); err != nil {
		a.printer.Errorf("%v", err)
		return
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	status, err := a.processManager.Run(runCtx, process.Spec{
		Argv:   args,
		Dir:    a.paths.ProjectDir,
		Output: a.stdout,
	})
	if err != nil {
		a.printer.Errorf("%s: %v", args[0], err)
		return
	}
	if !status.OK() {
		a.printer.Warnf("%s: %s", args[0], status.String())
	}
}
