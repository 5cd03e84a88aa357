package scanner

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ServerProcess is a running process seen by the scanner
type ServerProcess struct {
	PID     int
	Command string
	CWD     string
}

// ProcessScanner discovers running server processes using ps
type ProcessScanner struct {
	cwdCache map[int]string
	mu       sync.RWMutex
	// listCommand produces "pid args" lines; replaced in tests
	listCommand func() ([]byte, error)
}

// NewProcessScanner creates a new scanner instance
func NewProcessScanner() *ProcessScanner {
	return &ProcessScanner{
		cwdCache: make(map[int]string),
		listCommand: func() ([]byte, error) {
			return exec.Command("ps", "-eo", "pid=,args=").Output()
		},
	}
}

// ScanServers lists server processes running in projectDir. An empty
// projectDir matches every directory.
func (ps *ProcessScanner) ScanServers(projectDir string) ([]*ServerProcess, error) {
	output, err := ps.listCommand()
	if err != nil {
		return nil, fmt.Errorf("failed to run ps: %w", err)
	}

	records := ps.parsePsOutput(string(output))
	for _, record := range records {
		if cwd, ok := ps.getCWD(record.PID); ok {
			record.CWD = cwd
		}
	}
	return FilterServerProcesses(records, projectDir), nil
}

// parsePsOutput parses "pid args" lines into records
func (ps *ProcessScanner) parsePsOutput(output string) []*ServerProcess {
	scanner := bufio.NewScanner(strings.NewReader(output))
	records := make([]*ServerProcess, 0)
	seen := make(map[int]bool)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		pidStr, command, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil || seen[pid] {
			continue
		}
		seen[pid] = true
		records = append(records, &ServerProcess{
			PID:     pid,
			Command: strings.TrimSpace(command),
		})
	}
	return records
}

// getCWD reads the working directory of pid from /proc where available
func (ps *ProcessScanner) getCWD(pid int) (string, bool) {
	ps.mu.RLock()
	if cached, ok := ps.cwdCache[pid]; ok {
		ps.mu.RUnlock()
		return cached, cached != ""
	}
	ps.mu.RUnlock()

	cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
	if err != nil {
		cwd = ""
	}

	ps.mu.Lock()
	ps.cwdCache[pid] = cwd
	ps.mu.Unlock()

	return cwd, cwd != ""
}
