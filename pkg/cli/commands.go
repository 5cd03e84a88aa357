package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/klantle/watchdogs-sub000/pkg/archive"
	"github.com/klantle/watchdogs-sub000/pkg/compiler"
	"github.com/klantle/watchdogs-sub000/pkg/config"
	"github.com/klantle/watchdogs-sub000/pkg/crash"
	"github.com/klantle/watchdogs-sub000/pkg/depends"
	"github.com/klantle/watchdogs-sub000/pkg/hashutil"
	"github.com/klantle/watchdogs-sub000/pkg/health"
	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/process"
	"github.com/klantle/watchdogs-sub000/pkg/scanner"
	"github.com/klantle/watchdogs-sub000/pkg/serverconfig"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

// ErrNoServer means no running server belongs to the project
var ErrNoServer = errors.New("no running server found")

// CompileCmd handles the 'compile' command
func (a *App) CompileCmd(ctx context.Context, input string, flags compiler.Flags) (*compiler.Result, error) {
	res, err := a.compiler.Compile(ctx, compiler.Request{Input: input, Flags: flags})
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}
	return res, nil
}

// CompilesCmd compiles input and starts the server on the result
func (a *App) CompilesCmd(ctx context.Context, input string, flags compiler.Flags) error {
	res, err := a.CompileCmd(ctx, input, flags)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("compile of %s failed, server not started", res.Input)
	}
	return a.RunCmd(ctx, res.Artifact)
}

// RunCmd starts the server in the foreground. A gamemode argument rewrites
// the server config to load it first. Interrupting the run stops the
// server, restores the config and leaves the crash marker behind.
func (a *App) RunCmd(ctx context.Context, gamemode string) error {
	bin := a.serverBinary()
	if _, err := os.Stat(bin); err != nil {
		return fmt.Errorf("server binary not found: %s", bin)
	}

	name := ""
	if strings.TrimSpace(gamemode) != "" {
		name = serverconfig.GamemodeName(gamemode)
		amx := filepath.Join(a.paths.ProjectDir, "gamemodes", name+".amx")
		if _, err := os.Stat(amx); err != nil {
			return fmt.Errorf("cannot locate gamemode: %s", amx)
		}
		if err := a.serverCfg.BeginUpdate(name); err != nil {
			return fmt.Errorf("failed to update server config: %w", err)
		}
	}

	logPath := a.serverLogPath()
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(a.stderr, "Warning: failed to remove old server log: %v\n", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := models.RunRecord{
		Gamemode:   name,
		Binary:     bin,
		Config:     a.serverCfg.Path(),
		ServerType: a.cfg.ServerType(),
	}
	spec := process.Spec{
		Argv:   []string{bin},
		Dir:    a.paths.ProjectDir,
		Output: a.stdout,
	}
	policy := process.DefaultRetryPolicy()
	policy.StaleLog = logPath

	a.printer.Infof("starting %s", filepath.Base(bin))
	res, err := a.processManager.RunServer(runCtx, spec, policy, func(attempt, pid int) {
		if attempt > 1 {
			a.printer.Warnf("server failed on startup, retrying (attempt %d)", attempt)
		}
		if err := a.state.RecordStart(rec, pid); err != nil {
			fmt.Fprintf(a.stderr, "Warning: failed to record run: %v\n", err)
		}
	})
	if err != nil {
		return err
	}

	status := res.Status
	crashed := !status.OK() && !status.Interrupted
	if err := a.state.RecordExit(status.Code, res.Attempts, crashed); err != nil {
		fmt.Fprintf(a.stderr, "Warning: failed to record exit: %v\n", err)
	}

	if status.Interrupted {
		a.cleanupInterrupted()
		return nil
	}

	a.printer.Infof("server %s after %s", status.String(), status.Duration.Round(time.Second))
	if crashed {
		reason, _ := a.getCrashReport(12)
		a.printer.Critf("%s", reason)
	}
	if name != "" {
		a.printer.Muted(fmt.Sprintf("%s still loads %s; run 'watchdogs restore' for the original", filepath.Base(a.serverCfg.Path()), name))
	}

	if _, err := a.crashScanner().ScanServerLog(ctx, logPath); err != nil && !errors.Is(err, crash.ErrLogUnavailable) {
		return err
	}
	return nil
}

// cleanupInterrupted restores the config and writes the crash marker
func (a *App) cleanupInterrupted() {
	a.printer.Warnf("interrupted, server stopped")
	err := a.serverCfg.Restore(ui.FixedPrompter{Answer: true})
	if err != nil && !errors.Is(err, serverconfig.ErrNoBackup) {
		fmt.Fprintf(a.stderr, "Warning: failed to restore server config: %v\n", err)
	}
	marker := []byte(time.Now().Format(time.RFC3339) + "\n")
	if err := os.WriteFile(a.paths.CrashMarker, marker, 0644); err != nil {
		fmt.Fprintf(a.stderr, "Warning: failed to write crash marker: %v\n", err)
	}
}

// StopCmd stops every server process of the project
func (a *App) StopCmd() error {
	servers, err := a.discoverServers()
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return ErrNoServer
	}

	for _, srv := range servers {
		fmt.Fprintf(a.stdout, "Stopping PID %d...\n", srv.PID)
		if err := a.processManager.Stop(srv.PID, process.DefaultStopGrace); err != nil {
			if errors.Is(err, process.ErrNeedSudo) {
				return fmt.Errorf("requires sudo to terminate PID %d", srv.PID)
			}
			if isProcessFinishedErr(err) {
				continue
			}
			return fmt.Errorf("failed to stop process: %w", err)
		}
		fmt.Fprintf(a.stdout, "Process %d stopped\n", srv.PID)
	}

	if run := a.state.LastRun(); run != nil && run.PID > 0 {
		if err := a.state.RecordExit(0, run.Attempts, false); err != nil {
			fmt.Fprintf(a.stderr, "Warning: failed to record exit: %v\n", err)
		}
	}
	return nil
}

// RestartCmd stops the server and starts it again with the last gamemode
func (a *App) RestartCmd(ctx context.Context) error {
	if err := a.StopCmd(); err != nil && !errors.Is(err, ErrNoServer) {
		fmt.Fprintf(a.stderr, "Warning: failed to stop server: %v\n", err)
	}

	gamemode := ""
	if run := a.state.LastRun(); run != nil {
		gamemode = run.Gamemode
	}
	return a.RunCmd(ctx, gamemode)
}

// DebugCmd scans the server log and offers fixes
func (a *App) DebugCmd(ctx context.Context) error {
	out, err := a.crashScanner().ScanServerLog(ctx, a.serverLogPath())
	if err != nil {
		return err
	}
	a.printer.Muted(fmt.Sprintf("%d lines scanned, %d findings", out.Lines, out.Findings))
	return nil
}

// RestoreCmd puts the backed up server config back
func (a *App) RestoreCmd() error {
	err := a.serverCfg.Restore(a.prompter)
	switch {
	case errors.Is(err, serverconfig.ErrNoBackup):
		a.printer.Infof("nothing to restore")
		return nil
	case errors.Is(err, serverconfig.ErrDeclined):
		a.printer.Infof("backup kept at %s", a.serverCfg.BackupPath())
		return nil
	case err != nil:
		return fmt.Errorf("failed to restore server config: %w", err)
	}
	a.printer.Infof("restored %s", a.serverCfg.Path())
	return nil
}

// InstallCmd installs each "user/repo[?tag]" spec
func (a *App) InstallCmd(ctx context.Context, specs []string) error {
	if len(specs) == 0 {
		return fmt.Errorf("usage: watchdogs install <user/repo[?tag]>...")
	}
	reports, err := a.installer.InstallAll(ctx, specs)
	if len(reports) > 0 {
		a.printInstallTable(reports)
	}
	return err
}

// ReplicateCmd installs the [depends].aio_repo list
func (a *App) ReplicateCmd(ctx context.Context, specs []string) error {
	if len(specs) == 0 {
		specs = a.cfg.Depends.AIORepo
	}
	if len(specs) == 0 {
		return fmt.Errorf("no aio_repo entries in %s", config.FileName)
	}
	return a.InstallCmd(ctx, specs)
}

func (a *App) printInstallTable(reports []*depends.Report) {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Dependency\tRef\tPlugins\tIncludes")
	for _, rep := range reports {
		plugins := append(append([]string{}, rep.Plugins...), rep.Components...)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rep.Dependency.User+"/"+rep.Dependency.Repo, rep.Ref, listOrDash(plugins), listOrDash(rep.Includes))
	}
	_ = w.Flush()
}

// ListCmd prints installed dependencies, optionally checking for newer tags
func (a *App) ListCmd(checkUpdates bool) error {
	deps := a.state.Installed()
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)

	if checkUpdates {
		fmt.Fprintln(w, "Dependency\tTag\tLatest\tStatus")
	} else {
		fmt.Fprintln(w, "Dependency\tTag\tHost")
	}
	for _, dep := range deps {
		fmt.Fprintln(w, a.formatDependencyRow(dep, checkUpdates))
	}
	return w.Flush()
}

func (a *App) formatDependencyRow(dep models.Dependency, checkUpdates bool) string {
	name := dep.User + "/" + dep.Repo
	tag := dep.Tag
	if tag == "" {
		tag = "-"
	}
	if !checkUpdates {
		return fmt.Sprintf("%s\t%s\t%s", name, tag, dep.Host)
	}

	latestTag := "-"
	status := "unknown"
	if dep.Tag != "" && dep.Host != "custom" {
		res, err := a.installer.Resolver.Check(dep, dep.Tag)
		switch {
		case err != nil:
			a.logger.Debug("update check failed", "dependency", name, "err", err)
		case res.Outdated:
			latestTag = res.Current
			status = "outdated"
		default:
			latestTag = dep.Tag
			status = "up to date"
		}
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s", name, tag, latestTag, status)
}

// HashCmd prints the digest of a file, or of the text when no such file exists
func (a *App) HashCmd(algo, target string) error {
	var sum string
	var err error
	if fi, statErr := os.Stat(target); statErr == nil && !fi.IsDir() {
		sum, err = hashutil.SumFile(algo, target)
	} else {
		sum, err = hashutil.SumString(algo, target)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s  %s\n", sum, target)
	return nil
}

// CompressCmd archives input into output. An empty format is taken from the
// output name.
func (a *App) CompressCmd(input, output, format string) error {
	f := archive.DetectFormat(output)
	if format != "" {
		var err error
		if f, err = archive.ParseFormat(format); err != nil {
			return err
		}
	}
	if f == archive.FormatUnknown {
		return fmt.Errorf("cannot tell the archive format of %s, pass --type (%s)", output, strings.Join(archive.Formats, ", "))
	}

	start := time.Now()
	if err := archive.Create(input, output, f); err != nil {
		return fmt.Errorf("failed to compress %s: %w", input, err)
	}
	a.printer.Infof("%s -> %s (%s) [finished at %.3fs]", input, output, f, time.Since(start).Seconds())
	return nil
}

// LogsCmd prints the end of the server log
func (a *App) LogsCmd(lines int) error {
	logLines, err := process.Tail(a.serverLogPath(), lines)
	if err != nil {
		return err
	}
	for _, line := range logLines {
		fmt.Fprintln(a.stdout, line)
	}
	return nil
}

// ConfigCmd re-creates watchdogs.toml with defaults
func (a *App) ConfigCmd(server string) error {
	st := a.cfg.ServerType()
	if server != "" {
		parsed, err := models.ParseServerType(server)
		if err != nil {
			return err
		}
		st = parsed
	}
	if err := config.WriteDefault(a.cfgPath, st); err != nil {
		return err
	}
	a.printer.Infof("wrote %s for %s", a.cfgPath, st.DisplayName())
	return nil
}

func isProcessFinishedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "process already finished") || strings.Contains(msg, "no such process")
}

// StatusCmd shows the project, its last run and a live server query
func (a *App) StatusCmd(port int) error {
	if port <= 0 {
		p, err := serverconfig.Port(a.serverCfg.Path())
		if err != nil {
			a.logger.Debug("port lookup failed", "err", err)
			p = serverconfig.DefaultPort
		}
		port = p
	}
	servers, err := a.discoverServers()
	if err != nil {
		fmt.Fprintf(a.stderr, "Warning: %v\n", err)
	}
	check := a.healthChecker.Check("127.0.0.1", port)
	return a.printServerStatus(servers, check)
}

// printServerStatus prints detailed status for the project
func (a *App) printServerStatus(servers []*scanner.ServerProcess, check *health.HealthCheck) error {
	out := a.stdout
	line := "============================================================"
	dashes := "------------------------------------------------------------"
	section := func(title string) {
		fmt.Fprintln(out, "\n"+dashes)
		fmt.Fprintln(out, title)
		fmt.Fprintln(out, dashes)
	}

	fmt.Fprintln(out, "\n"+line)
	fmt.Fprintln(out, "PROJECT")
	fmt.Fprintln(out, line)
	fmt.Fprintf(out, "Dir:     %s\n", a.paths.ProjectDir)
	fmt.Fprintf(out, "Server:  %s\n", a.cfg.ServerType().DisplayName())
	fmt.Fprintf(out, "Binary:  %s\n", a.cfg.General.Binary)
	fmt.Fprintf(out, "Config:  %s (%s)\n", a.cfg.General.Config, a.serverCfg.State())
	if gms, err := a.serverCfg.Gamemodes(); err == nil {
		fmt.Fprintf(out, "Main:    %s\n", listOrDash(gms))
	}

	run := a.state.LastRun()
	if run != nil {
		section("LAST RUN")
		gm := run.Gamemode
		if gm == "" {
			gm = "(from config)"
		}
		fmt.Fprintf(out, "Gamemode: %s\n", gm)
		if run.StartedAt != nil {
			fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
		}
		if run.StoppedAt != nil {
			fmt.Fprintf(out, "Stopped:  %s\n", run.StoppedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Exit:     %d (attempts %d)\n", run.ExitCode, run.Attempts)
		} else if run.PID > 0 {
			fmt.Fprintf(out, "PID:      %d\n", run.PID)
		}
	}

	section("HEALTH STATUS")
	icon := health.StatusIcon(check.Status)
	fmt.Fprintf(out, "Address:  %s:%d\n", check.Host, check.Port)
	fmt.Fprintf(out, "Status:   %s %s\n", icon, check.Status)
	fmt.Fprintf(out, "Response: %dms\n", check.ResponseMs)
	fmt.Fprintf(out, "Message:  %s\n", check.Message)
	if info := check.Info; info != nil {
		fmt.Fprintf(out, "Hostname: %s\n", info.Hostname)
		fmt.Fprintf(out, "Gamemode: %s\n", info.Gamemode)
		fmt.Fprintf(out, "Players:  %d/%d\n", info.Players, info.MaxPlayers)
	}

	section("BUILD")
	artifact := a.paths.Resolve(a.cfg.Compiler.Output)
	if sum, err := hashutil.SumFile(hashutil.AlgoBLAKE3, artifact); err == nil {
		fmt.Fprintf(out, "Output:   %s\n", a.cfg.Compiler.Output)
		fmt.Fprintf(out, "BLAKE3:   %s\n", sum)
	} else {
		fmt.Fprintf(out, "Output:   %s (not built)\n", a.cfg.Compiler.Output)
	}
	if bin, err := a.compiler.ResolveBinary(); err == nil {
		ver := scanner.DetectCompilerVersion(bin)
		if ver == "" {
			ver = "unknown"
		}
		fmt.Fprintf(out, "Compiler: %s (%s)\n", bin, ver)
	} else {
		fmt.Fprintf(out, "Compiler: not found\n")
	}

	if len(servers) > 0 {
		section("RUNNING SERVERS")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PID\tCommand\tCWD")
		for _, srv := range servers {
			fmt.Fprintf(w, "%d\t%s\t%s\n", srv.PID, srv.Command, orDash(srv.CWD))
		}
		_ = w.Flush()
	}

	if run != nil && run.Crashed {
		section("CRASH DETAILS")
		reason, tail := a.getCrashReport(12)
		fmt.Fprintf(out, "Reason: %s\n", reason)
		if len(tail) > 0 {
			fmt.Fprintln(out, "Recent logs:")
			for _, l := range tail {
				if strings.TrimSpace(l) == "" {
					continue
				}
				fmt.Fprintf(out, "  %s\n", l)
			}
		}
	}

	fmt.Fprintln(out, line+"\n")
	return nil
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
