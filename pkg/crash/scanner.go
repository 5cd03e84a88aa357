package crash

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

// ErrLogUnavailable means the server log could not be opened, so there was
// nothing to scan.
var ErrLogUnavailable = errors.New("server log unavailable")

const (
	voiceDowngradeSpec = "CyberMor/sampvoice?v3.0-alpha"
	crashdetectSpec    = "Y-Less/samp-plugin-crashdetect?newer"
	fallbackBranch     = "master"
)

const separator = "===================================================================="

// Prompter asks the operator a question
type Prompter interface {
	Confirm(question string) bool
	Input(question string) string
}

// Installer fetches and installs a dependency such as "user/repo?tag"
type Installer interface {
	Install(ctx context.Context, spec, branch string) error
}

// Recompiler compiles a Pawn source file
type Recompiler interface {
	Recompile(ctx context.Context, input string) error
}

// Scanner classifies a server log and runs the end-of-scan remediation
type Scanner struct {
	ServerType    models.ServerType
	ServerCfg     string // server.cfg or config.json, read for the port and rcon_password
	DefaultInput  string
	CrashMarker   string
	CrashInfoPath string

	Printer   *ui.Printer
	Prompter  Prompter
	Installer Installer
	Compiler  Recompiler
	Logger    *slog.Logger

	// Rand draws the seed of a rotated RCON password
	Rand *rand.Rand
}

func (sc *Scanner) logger() *slog.Logger {
	if sc.Logger != nil {
		return sc.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (sc *Scanner) rng() *rand.Rand {
	if sc.Rand != nil {
		return sc.Rand
	}
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

// ScanServerLog streams logPath through the rule table, then offers the
// end-of-scan fixes in order: voice port check, RCON rotation, crashdetect
// install.
func (sc *Scanner) ScanServerLog(ctx context.Context, logPath string) (*Outcome, error) {
	f, err := os.Open(logPath)
	if err != nil {
		sc.Printer.Errorf("log file not found: %s", logPath)
		return nil, fmt.Errorf("%w: %v", ErrLogUnavailable, err)
	}
	defer f.Close()

	sc.showCrashInfo()

	sess := NewSession(sc.ServerType)
	out := &Outcome{}
	p := sc.Printer
	p.Println(separator)

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		out.Lines++
		for _, fd := range sess.Classify(scanner.Text()) {
			out.Findings++
			sc.printFinding(fd)
			switch fd.Action {
			case ActionRecompile:
				if !out.Offered(RemedyRecompile) {
					sc.offerRecompile(ctx, out)
				}
			case ActionDowngradeVoice:
				if !out.Offered(RemedyVoiceDowngrade) {
					sc.offerVoiceDowngrade(ctx, out)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		p.Warnf("server log truncated: %v", err)
	}

	if sess.VoiceSeen > 0 {
		sc.checkVoicePort(sess, out)
	}
	if sess.RconDefaultCount > 0 {
		sc.offerRconRotation(out)
	}
	p.Println(separator)

	if sess.RuntimeErrorSeen && sess.CrashdetectSeen < 1 {
		sc.offerCrashdetect(ctx, out)
	}

	out.Session = *sess
	sc.logger().Debug("server log scanned",
		"path", logPath,
		"lines", out.Lines,
		"findings", out.Findings,
		"runtime_error", sess.RuntimeErrorSeen,
		"crashdetect", sess.CrashdetectSeen)
	return out, nil
}

func (sc *Scanner) printFinding(fd Finding) {
	sc.Printer.Headerf("%s", fd.Header)
	sc.Printer.Highlight("\t" + fd.Line)
	if fd.Guidance != "" {
		sc.Printer.Printf("%s", fd.Guidance)
	}
}

func (sc *Scanner) showCrashInfo() {
	if sc.CrashInfoPath == "" {
		return
	}
	data, err := os.ReadFile(sc.CrashInfoPath)
	if err != nil {
		return
	}
	sc.Printer.Infof("crashinfo.txt detected")
	if sc.Prompter.Confirm("-> show? (Y/n)") {
		sc.Printer.Printf("%s\n", strings.TrimRight(string(data), "\n"))
	}
}

func (sc *Scanner) offerRecompile(ctx context.Context, out *Outcome) {
	if !sc.Prompter.Confirm("Recompile the script now? (Auto-fix) (Y/n)") {
		out.record(RemedyRecompile, Declined, "")
		return
	}
	input := sc.Prompter.Input(fmt.Sprintf("Please input the pawn file\n\t* (enter for %s - input E/e to exit):", sc.DefaultInput))
	if strings.EqualFold(input, "e") {
		out.record(RemedyRecompile, Skipped, "")
		return
	}
	if input == "" {
		input = sc.DefaultInput
	}
	if sc.Compiler == nil {
		out.record(RemedyRecompile, Skipped, input)
		return
	}
	if err := sc.Compiler.Recompile(ctx, input); err != nil {
		sc.Printer.Errorf("recompile failed: %v", err)
		out.record(RemedyRecompile, Failed, input)
		return
	}
	out.record(RemedyRecompile, Accepted, input)
}

func (sc *Scanner) offerVoiceDowngrade(ctx context.Context, out *Outcome) {
	sc.Printer.Infof("downgrade sampvoice 3.1 -> 3.0? (Auto-fix)")
	if !sc.Prompter.Confirm("   answer (y/n):") {
		out.record(RemedyVoiceDowngrade, Declined, voiceDowngradeSpec)
		return
	}
	sc.install(ctx, voiceDowngradeSpec)
	out.record(RemedyVoiceDowngrade, Accepted, voiceDowngradeSpec)
}

func (sc *Scanner) offerCrashdetect(ctx context.Context, out *Outcome) {
	if sc.Prompter.Confirm("crash found! and crashdetect not found.. install crashdetect now? (Auto-fix) Y/n") {
		sc.install(ctx, crashdetectSpec)
		out.record(RemedyCrashdetect, Accepted, crashdetectSpec)
		return
	}
	if sc.CrashMarker != "" {
		if err := os.Remove(sc.CrashMarker); err != nil && !os.IsNotExist(err) {
			sc.logger().Warn("failed to remove crash marker", "path", sc.CrashMarker, "err", err)
		}
	}
	out.record(RemedyCrashdetect, Declined, crashdetectSpec)
}

// install hands spec to the installer. Its error is reported, not acted on.
func (sc *Scanner) install(ctx context.Context, spec string) {
	if sc.Installer == nil {
		sc.Printer.Warnf("no installer configured, run: watchdogs install %s", spec)
		return
	}
	if err := sc.Installer.Install(ctx, spec, fallbackBranch); err != nil {
		sc.Printer.Errorf("install %s: %v", spec, err)
	}
}
