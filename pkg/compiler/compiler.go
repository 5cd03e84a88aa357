// Package compiler invokes the Pawn compiler and explains its log.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/klantle/watchdogs-sub000/pkg/cause"
	"github.com/klantle/watchdogs-sub000/pkg/config"
	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/process"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

// ErrCompilerNotFound means no pawncc binary could be located
var ErrCompilerNotFound = errors.New("pawn compiler not found")

// Runner runs a child process to completion
type Runner interface {
	Run(ctx context.Context, spec process.Spec) (process.ExitStatus, error)
}

// Flags are the command line switches of the compile command
type Flags struct {
	Debug     bool
	Assembler bool
	Compat    bool
	Prolix    bool
	Compact   bool
	Detailed  bool
}

// Switches maps flags to pawncc options
func (f Flags) Switches() []string {
	var out []string
	if f.Debug {
		out = append(out, "-d2")
	}
	if f.Assembler {
		out = append(out, "-a")
	}
	if f.Compat {
		out = append(out, "-Z+")
	}
	if f.Prolix {
		out = append(out, "-v2")
	}
	if f.Compact {
		out = append(out, "-C+")
	}
	return out
}

// Request is one compile
type Request struct {
	Input  string
	Output string
	Flags  Flags
}

// Result of a compile
type Result struct {
	Input    string
	Artifact string
	LogPath  string
	Status   process.ExitStatus
	Summary  *models.CompilerRunSummary
}

// OK reports a clean compile according to the log, falling back to the exit
// status when the log was unavailable
func (r *Result) OK() bool {
	if r.Summary != nil {
		return r.Summary.OK()
	}
	return r.Status.OK()
}

// Compiler builds Pawn sources of one project
type Compiler struct {
	cfg     *config.Config
	paths   models.ConfigPaths
	runner  Runner
	printer *ui.Printer
	logger  *slog.Logger
}

// New creates a compiler for the project described by cfg and paths
func New(cfg *config.Config, paths models.ConfigPaths, runner Runner, printer *ui.Printer, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler{cfg: cfg, paths: paths, runner: runner, printer: printer, logger: logger}
}

// ResolveBinary finds pawncc: the configured path, the toolchain folder of
// the server flavour, then PATH.
func (c *Compiler) ResolveBinary() (string, error) {
	bin := c.cfg.Compiler.Binary
	candidates := []string{c.paths.Resolve(bin)}
	if !strings.ContainsRune(bin, filepath.Separator) && !strings.Contains(bin, "/") {
		toolDir := filepath.Dir(c.cfg.ServerType().IncludeDir())
		candidates = append(candidates,
			c.paths.Resolve(filepath.Join(toolDir, bin)),
			c.paths.Resolve(filepath.Join("pawno", bin)),
			c.paths.Resolve(filepath.Join("qawno", bin)))
	}
	for _, cand := range candidates {
		if fi, err := os.Stat(cand); err == nil && !fi.IsDir() {
			return cand, nil
		}
	}
	if path, err := exec.LookPath(bin); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrCompilerNotFound, bin)
}

// normalize fills defaults. "." and "" select the configured input.
func (c *Compiler) normalize(req Request) (Request, error) {
	explicit := req.Input != "" && req.Input != "."
	if !explicit {
		req.Input = c.cfg.Compiler.Input
	}
	if filepath.Ext(req.Input) == "" {
		req.Input += ".pwn"
	}
	if req.Output == "" {
		if explicit {
			req.Output = strings.TrimSuffix(req.Input, filepath.Ext(req.Input)) + ".amx"
		} else {
			req.Output = c.cfg.Compiler.Output
		}
	}
	if _, err := os.Stat(c.paths.Resolve(req.Input)); err != nil {
		return req, fmt.Errorf("cannot locate input: %s", req.Input)
	}
	return req, nil
}

// Argv builds: pawncc <input> -o<output> <options> <switches> -i<path>...
func (c *Compiler) Argv(bin string, req Request) []string {
	argv := []string{bin, req.Input, "-o" + req.Output}
	argv = append(argv, c.cfg.Compiler.Option...)
	argv = append(argv, req.Flags.Switches()...)
	for _, inc := range c.cfg.Compiler.IncludePath {
		argv = append(argv, "-i"+inc)
	}
	return argv
}

// Compile runs pawncc, writing its output to the compiler log, then prints
// the annotated log and the summary.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Result, error) {
	req, err := c.normalize(req)
	if err != nil {
		return nil, err
	}
	bin, err := c.ResolveBinary()
	if err != nil {
		return nil, err
	}
	if err := c.paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	argv := c.Argv(bin, req)
	spec := process.Spec{
		Argv:    argv,
		Dir:     c.paths.ProjectDir,
		LogPath: c.paths.CompilerLog,
		Timeout: c.cfg.Compiler.Timeout.Duration,
	}
	if runtime.GOOS == "linux" {
		// pawncc loads libpawnc.so from its own directory
		spec.Env = []string{"LD_LIBRARY_PATH=" + filepath.Dir(bin) + string(os.PathListSeparator) + os.Getenv("LD_LIBRARY_PATH")}
	}

	c.printer.Infof("compiling %s -> %s", req.Input, req.Output)
	c.logger.Debug("compiler command", "argv", argv)

	status, err := c.runner.Run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to run compiler: %w", err)
	}
	if status.TimedOut {
		c.printer.Errorf("compiler %s", status.String())
	}

	res := &Result{
		Input:    req.Input,
		Artifact: c.paths.Resolve(req.Output),
		LogPath:  c.paths.CompilerLog,
		Status:   status,
	}

	explainer := cause.NewExplainer(c.printer, c.paths.HelpDoc, req.Flags.Detailed)
	summary, err := explainer.ExplainCompilerLog(res.LogPath, res.Artifact)
	if err != nil {
		c.printer.Warnf("%v", err)
		return res, nil
	}
	res.Summary = summary
	c.printer.Muted(fmt.Sprintf("compilation time: %s", status.Duration.Round(time.Millisecond)))
	return res, nil
}

// Recompile compiles input with default flags
func (c *Compiler) Recompile(ctx context.Context, input string) error {
	res, err := c.Compile(ctx, Request{Input: input})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("compile of %s failed", res.Input)
	}
	return nil
}
