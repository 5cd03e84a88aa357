package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a POSIX shell")
	}
	path := filepath.Join(dir, "server.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "echo hello from pawn\necho oops >&2\nexit 3")
	logPath := filepath.Join(dir, "logs", "out.log")

	status, err := NewManager(nil).Run(context.Background(), Spec{Argv: []string{script}, Dir: dir, LogPath: logPath})
	require.NoError(t, err)
	require.Equal(t, 3, status.Code)
	require.False(t, status.OK())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Equal(t, "hello from pawn\noops\n", string(data))
}

func TestRunTimeoutTerminates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "sleep 30")

	start := time.Now()
	status, err := NewManager(nil).Run(context.Background(), Spec{
		Argv:    []string{script},
		Timeout: 200 * time.Millisecond,
		Grace:   time.Second,
	})
	require.NoError(t, err)
	require.True(t, status.TimedOut)
	require.False(t, status.OK())
	if time.Since(start) > 10*time.Second {
		t.Fatalf("timeout did not stop the child in time")
	}
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "sleep 30")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	status, err := NewManager(nil).Run(ctx, Spec{Argv: []string{script}, Grace: time.Second})
	require.NoError(t, err)
	require.True(t, status.Interrupted)
}

func TestRunServerRetriesFastFailureOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "echo attempt >> "+filepath.Join(dir, "attempts")+"\nexit 1")

	var starts []int
	res, err := NewManager(nil).RunServer(context.Background(),
		Spec{Argv: []string{script}, LogPath: filepath.Join(dir, "server_log.txt")},
		RetryPolicy{Window: time.Minute},
		func(n, pid int) {
			require.Positive(t, pid)
			starts = append(starts, n)
		})
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempts)
	require.Equal(t, []int{1, 2}, starts)

	data, err := os.ReadFile(filepath.Join(dir, "attempts"))
	require.NoError(t, err)
	require.Equal(t, "attempt\nattempt\n", string(data))
}

func TestRunServerRetryDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "exit 1")

	res, err := NewManager(nil).RunServer(context.Background(),
		Spec{Argv: []string{script}},
		RetryPolicy{Window: time.Minute, Disabled: true}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, 1, res.Status.Code)
}

func TestRunServerNoRetryOnSuccess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "exit 0")

	res, err := NewManager(nil).RunServer(context.Background(), Spec{Argv: []string{script}}, RetryPolicy{Window: time.Minute}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Attempts)
	require.True(t, res.Status.OK())
}

func TestInPterodactyl(t *testing.T) {
	t.Setenv("P_SERVER_UUID", "8d1f0c2a")
	if !InPterodactyl() {
		t.Fatal("expected Pterodactyl detection")
	}
	if !DefaultRetryPolicy().Disabled {
		t.Fatal("retry must be disabled on Pterodactyl")
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "server_log.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0644))

	lines, err := Tail(path, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, lines)

	if _, err := Tail(filepath.Join(dir, "missing"), 2); !errors.Is(err, ErrNoLogs) {
		t.Fatalf("expected ErrNoLogs, got %v", err)
	}
}

func TestEnsureExecutable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "samp03svr")
	require.NoError(t, os.WriteFile(path, []byte("bin"), 0644))
	require.NoError(t, EnsureExecutable(path))
	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0755), fi.Mode().Perm())
}

func TestRunStreamsToOutputWithoutLogPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "echo server ready")

	var out bytes.Buffer
	var pid int
	status, err := NewManager(nil).Run(context.Background(), Spec{
		Argv:    []string{script},
		Output:  &out,
		Started: func(p int) { pid = p },
	})
	require.NoError(t, err)
	require.True(t, status.OK())
	require.Equal(t, status.PID, pid)
	require.Equal(t, "server ready\n", out.String())
}

func TestRunServerRemovesStaleLogBeforeRetry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "server_log.txt")
	// the script recreates the log, so only the retry's copy survives
	script := writeScript(t, dir, "echo run >> "+stale+"\nexit 1")

	res, err := NewManager(nil).RunServer(context.Background(),
		Spec{Argv: []string{script}, Output: &bytes.Buffer{}},
		RetryPolicy{Window: time.Minute, StaleLog: stale}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempts)

	data, err := os.ReadFile(stale)
	require.NoError(t, err)
	require.Equal(t, "run\n", string(data))
}
