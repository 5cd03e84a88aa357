package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var ErrNoLogs = errors.New("no logs available")
var ErrNeedSudo = errors.New("requires sudo to terminate process")

// DefaultStopGrace is how long a child gets between SIGTERM and SIGKILL
const DefaultStopGrace = 5 * time.Second

// Manager runs the compiler and the game server as child processes
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a new process manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{logger: logger}
}

// Spec describes one child process
type Spec struct {
	Argv    []string
	Dir     string
	LogPath string // stdout and stderr are written here, truncating it
	Output  io.Writer // used for stdout and stderr when LogPath is empty
	Timeout time.Duration
	Grace   time.Duration
	Env     []string
	// Started is called with the pid once the child is running
	Started func(pid int)
}

// ExitStatus is how a child ended
type ExitStatus struct {
	PID         int
	Code        int
	Signal      string
	Duration    time.Duration
	TimedOut    bool
	Interrupted bool
}

// OK reports a zero exit without timeout or interrupt
func (s ExitStatus) OK() bool {
	return s.Code == 0 && s.Signal == "" && !s.TimedOut && !s.Interrupted
}

func (s ExitStatus) String() string {
	switch {
	case s.TimedOut:
		return fmt.Sprintf("timed out after %s", s.Duration.Round(time.Millisecond))
	case s.Interrupted:
		return "interrupted"
	case s.Signal != "":
		return "killed by signal " + s.Signal
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// Run starts spec and blocks until it exits. When the timeout elapses or ctx
// is cancelled the whole process group gets SIGTERM, then SIGKILL after the
// grace period.
func (m *Manager) Run(ctx context.Context, spec Spec) (ExitStatus, error) {
	cmd, logFile, err := m.prepare(spec)
	if err != nil {
		return ExitStatus{}, err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return ExitStatus{}, fmt.Errorf("failed to start process: %w", err)
	}
	pid := cmd.Process.Pid
	m.logger.Debug("process started", "pid", pid, "argv", spec.Argv, "log", spec.LogPath)
	if spec.Started != nil {
		spec.Started(pid)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeout <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	grace := spec.Grace
	if grace <= 0 {
		grace = DefaultStopGrace
	}

	status := ExitStatus{PID: pid}
	var waitErr error
	select {
	case waitErr = <-done:
	case <-timeout:
		status.TimedOut = true
		waitErr = m.terminate(pid, grace, done)
	case <-ctx.Done():
		status.Interrupted = true
		waitErr = m.terminate(pid, grace, done)
	}
	status.Duration = time.Since(started)
	fillExit(&status, cmd, waitErr)

	m.logger.Debug("process exited", "pid", pid, "status", status.String(), "duration", status.Duration)
	return status, nil
}

func (m *Manager) prepare(spec Spec) (*exec.Cmd, *os.File, error) {
	if len(spec.Argv) == 0 {
		return nil, nil, fmt.Errorf("invalid command: empty")
	}
	if spec.Dir != "" {
		if fi, err := os.Stat(spec.Dir); err != nil || !fi.IsDir() {
			if err != nil {
				return nil, nil, fmt.Errorf("invalid working directory: %w", err)
			}
			return nil, nil, fmt.Errorf("invalid working directory: not a directory")
		}
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	// Set up process group to manage all child processes
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	var logFile *os.File
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.Create(spec.LogPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	} else if spec.Output != nil {
		cmd.Stdout = spec.Output
		cmd.Stderr = spec.Output
	}
	return cmd, logFile, nil
}

// terminate sends SIGTERM to the group of a child we are waiting on and
// escalates to SIGKILL when it has not exited within grace. It returns the
// child's wait result.
func (m *Manager) terminate(pid int, grace time.Duration, done <-chan error) error {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		m.logger.Debug("escalating to SIGKILL", "pid", pid)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			_ = syscall.Kill(pid, syscall.SIGKILL)
		}
		return <-done
	}
}

func fillExit(status *ExitStatus, cmd *exec.Cmd, waitErr error) {
	if cmd.ProcessState == nil {
		if waitErr != nil {
			status.Code = -1
		}
		return
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signal = ws.Signal().String()
		status.Code = -1
		return
	}
	status.Code = cmd.ProcessState.ExitCode()
}

// Stop gracefully stops a process with timeout, then force-kills if needed
func (m *Manager) Stop(pid int, timeout time.Duration) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid: %d", pid)
	}
	if !m.isAlive(pid) {
		return nil
	}

	// For non-child processes we cannot use Wait(), so we send signals and
	// poll for liveness.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			return fmt.Errorf("failed to send SIGTERM: %w", err)
		}
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !m.isAlive(pid) {
			return nil
		}
		time.Sleep(120 * time.Millisecond)
	}

	// Escalate to hard kill.
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	time.Sleep(200 * time.Millisecond)
	if m.isAlive(pid) {
		return ErrNeedSudo
	}
	return nil
}

// IsRunning checks if a process is still running
func (m *Manager) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return m.isAlive(pid)
}

func (m *Manager) isAlive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	if err != nil {
		return false
	}
	if st, stateErr := processState(pid); stateErr == nil {
		// Zombie processes still respond to signal 0 but are not runnable.
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(st)), "Z") {
			return false
		}
	}
	return true
}

func processState(pid int) (string, error) {
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "state=")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// EnsureExecutable adds the execute bits to a server or compiler binary
func EnsureExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&0111 == 0111 {
		return nil
	}
	return os.Chmod(path, fi.Mode().Perm()|0755)
}

// Tail returns the last n lines of the file at path
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLogs
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	linesBuf := make([]string, 0, n)
	for scanner.Scan() {
		if len(linesBuf) < n {
			linesBuf = append(linesBuf, scanner.Text())
		} else {
			copy(linesBuf, linesBuf[1:])
			linesBuf[len(linesBuf)-1] = scanner.Text()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return linesBuf, nil
}

// ParseCommandArgs splits a command line into argv without invoking a shell
func ParseCommandArgs(input string) ([]string, error) {
	var args []string
	var buf strings.Builder
	inQuotes := false
	var quote rune
	escaped := false

	for _, r := range input {
		if escaped {
			buf.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"', '\'':
			if inQuotes && r == quote {
				inQuotes = false
				quote = 0
			} else if !inQuotes {
				inQuotes = true
				quote = r
			} else {
				buf.WriteRune(r)
			}
		case ' ', '\t':
			if inQuotes {
				buf.WriteRune(r)
			} else if buf.Len() > 0 {
				args = append(args, buf.String())
				buf.Reset()
			}
		default:
			buf.WriteRune(r)
		}
	}
	if escaped || inQuotes {
		return nil, fmt.Errorf("unterminated escape or quote")
	}
	if buf.Len() > 0 {
		args = append(args, buf.String())
	}
	return args, nil
}
