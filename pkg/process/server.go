package process

import (
	"context"
	"fmt"
	"os"
	"time"
)

// FastFailureWindow is how soon after launch a failure counts as a crash on
// startup and earns one retry
const FastFailureWindow = 5 * time.Second

// RetryPolicy controls the single retry after a fast failure
type RetryPolicy struct {
	Window   time.Duration
	Disabled bool
	// StaleLog is removed before the retry; defaults to the spec's LogPath
	StaleLog string
}

// DefaultRetryPolicy retries once within FastFailureWindow, except on
// Pterodactyl hosts where the panel restarts the server itself.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Window: FastFailureWindow, Disabled: InPterodactyl()}
}

// InPterodactyl reports whether we run inside a Pterodactyl container
func InPterodactyl() bool {
	return os.Getenv("P_SERVER_UUID") != ""
}

// ServerResult is the outcome of RunServer
type ServerResult struct {
	Status   ExitStatus
	Attempts int
}

// RunServer runs the game server in the foreground. A failure within the
// retry window removes the log and launches once more.
func (m *Manager) RunServer(ctx context.Context, spec Spec, policy RetryPolicy, onStart func(attempt, pid int)) (ServerResult, error) {
	if err := EnsureExecutable(spec.Argv[0]); err != nil {
		m.logger.Debug("could not mark server binary executable", "path", spec.Argv[0], "err", err)
	}

	var res ServerResult
	for {
		res.Attempts++
		attempt := res.Attempts
		run := spec
		if onStart != nil {
			run.Started = func(pid int) { onStart(attempt, pid) }
		}
		status, err := m.Run(ctx, run)
		if err != nil {
			return res, fmt.Errorf("failed to run server: %w", err)
		}
		res.Status = status

		if status.OK() || status.Interrupted || status.TimedOut {
			return res, nil
		}
		if policy.Disabled || res.Attempts > 1 || status.Duration > policy.Window {
			return res, nil
		}
		m.logger.Info("server failed on startup, retrying", "status", status.String(), "after", status.Duration)
		stale := policy.StaleLog
		if stale == "" {
			stale = spec.LogPath
		}
		if stale != "" {
			if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("failed to remove server log", "path", stale, "err", err)
			}
		}
	}
}
