// Package cli wires the watchdogs commands, the interactive shell and the
// watch TUI.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klantle/watchdogs-sub000/pkg/compiler"
	"github.com/klantle/watchdogs-sub000/pkg/config"
	"github.com/klantle/watchdogs-sub000/pkg/crash"
	"github.com/klantle/watchdogs-sub000/pkg/depends"
	"github.com/klantle/watchdogs-sub000/pkg/health"
	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/process"
	"github.com/klantle/watchdogs-sub000/pkg/scanner"
	"github.com/klantle/watchdogs-sub000/pkg/serverconfig"
	"github.com/klantle/watchdogs-sub000/pkg/state"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

var warnStaleBackupOnce sync.Once

// Options configure NewApp
type Options struct {
	Dir      string
	LogLevel string
	Version  string
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

// App is the main application handler
type App struct {
	paths    models.ConfigPaths
	cfg      *config.Config
	cfgPath  string
	version  string
	stdout   io.Writer
	stderr   io.Writer
	printer  *ui.Printer
	prompter *ui.LinePrompter
	logger   *slog.Logger

	processManager *process.Manager
	compiler       *compiler.Compiler
	installer      *depends.Installer
	state          *state.Store
	serverCfg      *serverconfig.Store
	scanner        *scanner.ProcessScanner
	resolver       *scanner.ProjectResolver
	healthChecker  *health.Checker
}

// NewApp creates and initializes the application for the project that
// contains opts.Dir (or the working directory)
func NewApp(opts Options) (*App, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	resolver := scanner.NewProjectResolver()
	paths, err := models.GetConfigPaths(resolver.ResolveOrSelf(abs))
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create state directories: %w", err)
	}

	cfgPath := filepath.Join(paths.ProjectDir, config.FileName)
	detected := scanner.DetectServerType(paths.ProjectDir)
	cfg, err := config.LoadOrDefault(cfgPath, detected.Server)
	if err != nil {
		return nil, err
	}

	level := cfg.General.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger := NewLogger(level, opts.Stderr)
	logger.Debug("project resolved", "dir", paths.ProjectDir, "server", cfg.ServerType().String(), "detected", detected.Evidence)

	st := state.NewStore(paths.StateFile)
	if err := st.Load(); err != nil {
		fmt.Fprintf(opts.Stderr, "Warning: failed to load state: %v\n", err)
	}

	printer := ui.NewPrinter(opts.Stdout)
	pm := process.NewManager(logger)
	cfgFile := paths.Resolve(cfg.General.Config)
	serverCfg := serverconfig.NewStore(cfgFile, paths.BackupPath(cfgFile))

	warnStaleBackupOnce.Do(func() {
		warnStaleBackup(serverCfg, opts.Stderr)
	})

	app := &App{
		paths:          paths,
		cfg:            cfg,
		cfgPath:        cfgPath,
		version:        opts.Version,
		stdout:         opts.Stdout,
		stderr:         opts.Stderr,
		printer:        printer,
		prompter:       ui.NewLinePrompter(opts.Stdin, opts.Stdout),
		logger:         logger,
		processManager: pm,
		compiler:       compiler.New(cfg, paths, pm, printer, logger),
		state:          st,
		serverCfg:      serverCfg,
		scanner:        scanner.NewProcessScanner(),
		resolver:       resolver,
		healthChecker:  health.NewChecker(0),
	}
	app.installer = &depends.Installer{
		Server:     cfg.ServerType(),
		OS:         cfg.General.OS,
		Paths:      paths,
		ServerCfg:  cfgFile,
		Gamemode:   paths.Resolve(cfg.Compiler.Input),
		Resolver:   depends.NewResolver(depends.GithubTags{}),
		Downloader: depends.NewDownloader(cfg.Depends.Timeout.Duration, cfg.Depends.GithubTokens, logger),
		Recorder:   st,
		Printer:    printer,
		Logger:     logger,
	}
	return app, nil
}

// crashScanner builds a scanner for one scan of the server log
func (a *App) crashScanner() *crash.Scanner {
	return &crash.Scanner{
		ServerType:    a.cfg.ServerType(),
		ServerCfg:     a.serverCfg.Path(),
		DefaultInput:  a.cfg.Compiler.Input,
		CrashMarker:   a.paths.CrashMarker,
		CrashInfoPath: a.paths.Resolve("crashinfo.txt"),
		Printer:       a.printer,
		Prompter:      a.prompter,
		Installer:     a.installer,
		Compiler:      a.compiler,
		Logger:        a.logger,
	}
}

// serverLogPath is the log file the server writes
func (a *App) serverLogPath() string {
	return a.paths.Resolve(a.cfg.General.Logs)
}

// serverBinary is the configured server executable
func (a *App) serverBinary() string {
	return a.paths.Resolve(a.cfg.General.Binary)
}

// discoverServers lists server processes of this project. The last recorded
// pid is included when ps cannot see it.
func (a *App) discoverServers() ([]*scanner.ServerProcess, error) {
	servers, err := a.scanner.ScanServers(a.paths.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan processes: %w", err)
	}

	if run := a.state.LastRun(); run != nil && run.PID > 0 && a.processManager.IsRunning(run.PID) {
		for _, srv := range servers {
			if srv.PID == run.PID {
				return servers, nil
			}
		}
		servers = append(servers, &scanner.ServerProcess{
			PID:     run.PID,
			Command: run.Binary,
			CWD:     a.paths.ProjectDir,
		})
	}
	return servers, nil
}

// getCrashReport summarizes the end of the server log
func (a *App) getCrashReport(lines int) (string, []string) {
	if lines <= 0 {
		lines = 12
	}
	logLines, err := process.Tail(a.serverLogPath(), lines)
	if err != nil {
		return "No logs captured for last run", nil
	}
	reason := inferCrashReason(logLines)
	if reason == "" {
		reason = "Server exited unexpectedly (no explicit error line detected)"
	}
	return reason, logLines
}

func inferCrashReason(lines []string) string {
	keywords := []string{
		"run time error",
		"segmentation fault",
		"failed to load",
		"unable to load",
		"couldn't load any gamemode",
		"address already in use",
		"exception",
		"killed",
		"error",
	}

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return line
			}
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line
		}
	}

	return ""
}

// warnStaleBackup reports a config left mutated by an interrupted run
func warnStaleBackup(store *serverconfig.Store, out io.Writer) {
	if store == nil || out == nil {
		return
	}
	if store.State() != serverconfig.BackedUp {
		return
	}
	fmt.Fprintf(out, "Warning: %s was rewritten by an unfinished run; the original is at %s.\n", store.Path(), store.BackupPath())
	fmt.Fprintln(out, "Run 'watchdogs restore' to put it back.")
}
