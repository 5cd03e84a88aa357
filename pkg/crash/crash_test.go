package crash

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

type scriptedPrompter struct {
	answer    bool
	input     string
	questions []string
}

func (sp *scriptedPrompter) Confirm(q string) bool {
	sp.questions = append(sp.questions, q)
	return sp.answer
}

func (sp *scriptedPrompter) Input(q string) string {
	sp.questions = append(sp.questions, q)
	return sp.input
}

type fakeInstaller struct {
	specs []string
}

func (fi *fakeInstaller) Install(_ context.Context, spec, branch string) error {
	fi.specs = append(fi.specs, spec+"@"+branch)
	return nil
}

type fakeCompiler struct {
	inputs []string
}

func (fc *fakeCompiler) Recompile(_ context.Context, input string) error {
	fc.inputs = append(fc.inputs, input)
	return nil
}

type fixture struct {
	dir       string
	out       bytes.Buffer
	prompter  *scriptedPrompter
	installer *fakeInstaller
	compiler  *fakeCompiler
	scanner   *Scanner
}

func newFixture(t *testing.T, answer bool) *fixture {
	t.Helper()
	fx := &fixture{
		dir:       t.TempDir(),
		prompter:  &scriptedPrompter{answer: answer},
		installer: &fakeInstaller{},
		compiler:  &fakeCompiler{},
	}
	fx.scanner = &Scanner{
		ServerType:   models.ServerSAMP,
		ServerCfg:    filepath.Join(fx.dir, "server.cfg"),
		DefaultInput: "gamemodes/bare.pwn",
		CrashMarker:  filepath.Join(fx.dir, "crashdetect"),
		Printer:      ui.NewPrinter(&fx.out),
		Prompter:     fx.prompter,
		Installer:    fx.installer,
		Compiler:     fx.compiler,
		Rand:         rand.New(rand.NewPCG(1, 2)),
	}
	return fx
}

func (fx *fixture) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(fx.dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (fx *fixture) scan(t *testing.T, logBody string) *Outcome {
	t.Helper()
	logPath := fx.write(t, "server_log.txt", logBody)
	out, err := fx.scanner.ScanServerLog(context.Background(), logPath)
	if err != nil {
		t.Fatalf("ScanServerLog: %v", err)
	}
	return out
}

func TestScanMissingLogAborts(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	out, err := fx.scanner.ScanServerLog(context.Background(), filepath.Join(fx.dir, "nope.txt"))
	if !errors.Is(err, ErrLogUnavailable) {
		t.Fatalf("expected ErrLogUnavailable, got %v", err)
	}
	if out != nil {
		t.Fatal("expected no outcome")
	}
}

func TestCountersAreMonotonic(t *testing.T) {
	t.Parallel()

	sess := NewSession(models.ServerSAMP)
	lines := []string{
		"[debug] Run time error 4: \"Array index out of bounds\"",
		"normal line after the error",
		"[debug] AMX backtrace:",
		"Your password must be changed from the default password",
		"[debug] #0 native stack trace",
		"Your password must be changed from the default password",
	}
	prevCrash, prevRcon := 0, 0
	for i, line := range lines {
		sess.Classify(line)
		if !sess.RuntimeErrorSeen {
			t.Fatalf("line %d: runtime error flag was cleared", i)
		}
		if sess.CrashdetectSeen < prevCrash || sess.RconDefaultCount < prevRcon {
			t.Fatalf("line %d: counters decreased", i)
		}
		prevCrash, prevRcon = sess.CrashdetectSeen, sess.RconDefaultCount
	}
	require.Equal(t, 2, sess.RconDefaultCount)
	require.Equal(t, 3, sess.CrashdetectSeen)
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	sess := NewSession(models.ServerSAMP)
	findings := sess.Classify("UNABLE TO LOAD FILTERSCRIPT 'admin.amx'")
	require.Len(t, findings, 1)
	require.Contains(t, findings[0].Header, "filterscript")
}

func TestGatedRulesNeedRuntimeError(t *testing.T) {
	t.Parallel()

	sess := NewSession(models.ServerSAMP)
	for _, fd := range sess.Classify("[debug] heap overflow near null pointer") {
		if strings.HasPrefix(fd.Header, "Crashdetect") || strings.Contains(fd.Header, "Null pointer") {
			t.Fatalf("gated rule fired without a runtime error: %s", fd.Header)
		}
	}
	require.Equal(t, 0, sess.CrashdetectSeen)
}

func TestRconCountIsSAMPOnly(t *testing.T) {
	t.Parallel()

	sess := NewSession(models.ServerOpenMP)
	sess.Classify("Your password must be changed from the default password")
	require.Equal(t, 0, sess.RconDefaultCount)
}

func TestVoicePortMismatch(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	fx.write(t, "server.cfg", "echo Executing Server Config...\nsv_port 8888\n")
	out := fx.scan(t, "[sv:info] voice server running on port 7777\n")

	require.Equal(t, "7777", out.Session.VoicePort)
	of, ok := out.Offer(RemedyVoicePort)
	require.True(t, ok)
	require.Equal(t, Reported, of.Resolution)
	text := fx.out.String()
	require.Contains(t, text, "mismatch")
	require.Contains(t, text, "7777")
	require.Contains(t, text, "8888")
}

func TestVoicePortMatch(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	fx.write(t, "server.cfg", "sv_port 7777\n")
	out := fx.scan(t, "[sv:info] voice server running on port 7777\n")

	require.False(t, out.Offered(RemedyVoicePort))
	require.NotContains(t, fx.out.String(), "mismatch")
}

func TestVoicePortSkippedWithoutConfig(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	out := fx.scan(t, "voice server running on port 7777\n")

	of, ok := out.Offer(RemedyVoicePort)
	require.True(t, ok)
	require.Equal(t, Skipped, of.Resolution)
}

func TestVoicePortIgnoresCommentMentioningSvPort(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	fx.write(t, "server.cfg", "# sv_port is the listen port\nsv_port 7777\n")
	out := fx.scan(t, "[sv:info] voice server running on port 7777\n")

	require.False(t, out.Offered(RemedyVoicePort))
	require.NotContains(t, fx.out.String(), "mismatch")
}

func TestVoicePortReadsOpenMPNetworkPort(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	fx.scanner.ServerType = models.ServerOpenMP
	fx.scanner.ServerCfg = fx.write(t, "config.json", `{
	// listen address
	"network": {"port": 7777},
	"pawn": {"main_scripts": ["bare 1"]},
}`)
	out := fx.scan(t, "[sv:info] voice server running on port 7777\n")
	require.False(t, out.Offered(RemedyVoicePort))

	fx.write(t, "config.json", `{"network": {"port": 7778}}`)
	out = fx.scan(t, "[sv:info] voice server running on port 7777\n")
	of, ok := out.Offer(RemedyVoicePort)
	require.True(t, ok)
	require.Equal(t, Reported, of.Resolution)
	require.Equal(t, "7778 != 7777", of.Detail)
	require.Contains(t, fx.out.String(), "in config.json: 7778")
}

func TestConfiguredPort(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"cfg", "a.cfg", "hostname dev\nsv_port 8888\n", "8888"},
		{"cfg comment first", "b.cfg", "# sv_port 1\nsv_port 7777\n", "7777"},
		{"cfg missing", "c.cfg", "hostname dev\n", ""},
		{"cfg not numeric", "d.cfg", "sv_port abc\n", ""},
		{"json", "a.json", `{"network": {"port": 7796}}`, "7796"},
		{"json missing", "b.json", `{"pawn": {}}`, ""},
	}
	for _, tt := range tests {
		got, err := ConfiguredPort(write(tt.file, tt.body))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: got %q want %q", tt.name, got, tt.want)
		}
	}

	if _, err := ConfiguredPort(filepath.Join(dir, "missing.cfg")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

var rotatedLine =regexp.MustCompile(`^rcon_password [0-9A-F]{8}$`)

func TestRconRotationAccepted(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	cfg := fx.write(t, "server.cfg", "echo Executing Server Config...\nlanmode 0\nrcon_password changeme\nmaxplayers 50\n")
	out := fx.scan(t, "Your password must be changed from the default password\n")

	of, ok := out.Offer(RemedyRconRotate)
	require.True(t, ok)
	require.Equal(t, Accepted, of.Resolution)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.Equal(t, "echo Executing Server Config...", lines[0])
	require.Equal(t, "lanmode 0", lines[1])
	if !rotatedLine.MatchString(lines[2]) {
		t.Fatalf("unexpected rotated line %q", lines[2])
	}
	require.Equal(t, "maxplayers 50", lines[3])
	require.Contains(t, fx.out.String(), "rcon_password from changeme to "+of.Detail)
}

func TestRconRotationWithoutLiteral(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	body := "lanmode 0\nrcon_password hunter2\n"
	cfg := fx.write(t, "server.cfg", body)
	out := fx.scan(t, "Your password must be changed from the default password\n")

	of, ok := out.Offer(RemedyRconRotate)
	require.True(t, ok)
	require.Equal(t, Failed, of.Resolution)
	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	require.Equal(t, body, string(data))
	require.Contains(t, fx.out.String(), "Replacement failed")
}

func TestRconRotationDeclined(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	body := "rcon_password changeme\n"
	cfg := fx.write(t, "server.cfg", body)
	out := fx.scan(t, "Your password must be changed from the default password\n")

	of, _ := out.Offer(RemedyRconRotate)
	require.Equal(t, Declined, of.Resolution)
	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	require.Equal(t, body, string(data))
}

func TestCompoundVoiceDowngradeOffered(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	out := fx.scan(t, strings.Join([]string{
		"[debug] Run time error 19: \"File or function is not found\"",
		"[debug] Native backtrace: plugins/sampvoice.so plugins/pawnraknet.so",
	}, "\n"))

	of, ok := out.Offer(RemedyVoiceDowngrade)
	require.True(t, ok)
	require.Equal(t, Accepted, of.Resolution)
	require.Equal(t, []string{"CyberMor/sampvoice?v3.0-alpha@master"}, fx.installer.specs)
	require.False(t, out.Offered(RemedyCrashdetect))
}

func TestSinglePluginDoesNotOfferDowngrade(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	out := fx.scan(t, strings.Join([]string{
		"[debug] Run time error 19: \"File or function is not found\"",
		"[debug] Native backtrace: plugins/sampvoice.so",
	}, "\n"))

	require.False(t, out.Offered(RemedyVoiceDowngrade))
	require.Empty(t, fx.installer.specs)
}

func TestCrashdetectInstallOffered(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	out := fx.scan(t, "Run time error 4: \"Array index out of bounds\"\n")

	require.True(t, out.Session.RuntimeErrorSeen)
	of, ok := out.Offer(RemedyCrashdetect)
	require.True(t, ok)
	require.Equal(t, Accepted, of.Resolution)
	require.Equal(t, []string{"Y-Less/samp-plugin-crashdetect?newer@master"}, fx.installer.specs)
}

func TestCrashdetectDeclinedRemovesMarker(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	marker := fx.write(t, "crashdetect", "")
	out := fx.scan(t, "Run time error 4: \"Array index out of bounds\"\n")

	of, _ := out.Offer(RemedyCrashdetect)
	require.Equal(t, Declined, of.Resolution)
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("crash marker should be removed, stat err = %v", err)
	}
}

func TestStaleIncludeRecompilesDefaultInput(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	out := fx.scan(t, strings.Repeat("The script might need to be recompiled with the latest include file.\n", 2))

	of, ok := out.Offer(RemedyRecompile)
	require.True(t, ok)
	require.Equal(t, Accepted, of.Resolution)
	require.Equal(t, []string{"gamemodes/bare.pwn"}, fx.compiler.inputs)
}

func TestStaleIncludeExitAnswer(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	fx.prompter.input = "E"
	out := fx.scan(t, "The script might need to be recompiled with the latest include file.\n")

	of, _ := out.Offer(RemedyRecompile)
	require.Equal(t, Skipped, of.Resolution)
	require.Empty(t, fx.compiler.inputs)
}

func TestCrashInfoShown(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	fx.scanner.CrashInfoPath = fx.write(t, "crashinfo.txt", "segfault in plugin X")
	fx.scan(t, "")
	require.Contains(t, fx.out.String(), "segfault in plugin X")
}
