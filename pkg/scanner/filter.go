package scanner

import (
	"path/filepath"
	"strings"
)

// ServerBinaries are the executable names of the supported servers
var ServerBinaries = []string{
	"samp03svr",
	"samp-server.exe",
	"omp-server",
	"omp-server.exe",
}

// IsServerProcess checks if a command line runs a game server binary
func IsServerProcess(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}

	cmd := strings.ToLower(command)
	ignorePatterns := []string{
		"watchdogs",
		"tail ",
		"grep ",
		"less ",
	}
	for _, pattern := range ignorePatterns {
		if strings.Contains(cmd, pattern) {
			return false
		}
	}

	exe := strings.ToLower(filepath.Base(fields[0]))
	for _, bin := range ServerBinaries {
		if exe == bin {
			return true
		}
	}
	return false
}

// FilterServerProcesses keeps only game server processes, optionally those
// running inside projectDir
func FilterServerProcesses(records []*ServerProcess, projectDir string) []*ServerProcess {
	filtered := make([]*ServerProcess, 0)
	for _, record := range records {
		if record == nil || !IsServerProcess(record.Command) {
			continue
		}
		if projectDir != "" && record.CWD != "" && filepath.Clean(record.CWD) != filepath.Clean(projectDir) {
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}
