package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klantle/watchdogs-sub000/pkg/serverconfig"
)

func TestWarnStaleBackup(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "server.cfg")
	if err := os.WriteFile(cfgPath, []byte("gamemode0 bare 1\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	store := serverconfig.NewStore(cfgPath, filepath.Join(tmp, ".watchdogs", "server.cfg.bak"))

	var out bytes.Buffer
	warnStaleBackup(store, &out)
	if out.Len() != 0 {
		t.Fatalf("expected no warning without a backup, got: %q", out.String())
	}

	if err := store.BeginUpdate("grandlarc"); err != nil {
		t.Fatalf("begin update: %v", err)
	}
	warnStaleBackup(store, &out)
	s := out.String()
	if !strings.Contains(s, "Warning:") || !strings.Contains(s, "server.cfg.bak") {
		t.Fatalf("expected warning to name the backup, got: %q", s)
	}
	if !strings.Contains(s, "watchdogs restore") {
		t.Fatalf("expected warning to suggest restore, got: %q", s)
	}
}

func TestInferCrashReason(t *testing.T) {
	t.Parallel()

	lines := []string{
		"[12:00:00] Loading plugin: crashdetect.so",
		"[12:00:01] [debug] Run time error 4: \"Array index out of bounds\"",
		"[12:00:01] [debug]  Attempted to read/write array element at index 5",
		"",
	}
	if got := inferCrashReason(lines); !strings.Contains(got, "Run time error 4") {
		t.Fatalf("expected the runtime error line, got %q", got)
	}
	if got := inferCrashReason([]string{"Server Plugins", "  Loaded 0 plugins.", ""}); got != "Loaded 0 plugins." {
		t.Fatalf("expected the last non-empty line, got %q", got)
	}
	if got := inferCrashReason(nil); got != "" {
		t.Fatalf("expected empty reason, got %q", got)
	}
}
