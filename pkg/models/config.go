package models

import (
	"os"
	"path/filepath"
)

// StateDirName is the hidden per-project directory owned by watchdogs
const StateDirName = ".watchdogs"

// ConfigPaths provides paths inside the project state directory
type ConfigPaths struct {
	ProjectDir  string
	StateDir    string
	CompilerLog string
	HelpDoc     string
	CrashMarker string
	StateFile   string
	DownloadDir string
}

// GetConfigPaths returns state paths rooted at projectDir
func GetConfigPaths(projectDir string) (ConfigPaths, error) {
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ConfigPaths{}, err
		}
		projectDir = wd
	}

	stateDir := filepath.Join(projectDir, StateDirName)
	return ConfigPaths{
		ProjectDir:  projectDir,
		StateDir:    stateDir,
		CompilerLog: filepath.Join(stateDir, "compiler.log"),
		HelpDoc:     filepath.Join(stateDir, "compiler_help.txt"),
		CrashMarker: filepath.Join(stateDir, "crashdetect"),
		StateFile:   filepath.Join(stateDir, "state.json"),
		DownloadDir: filepath.Join(stateDir, "downloads"),
	}, nil
}

// BackupPath returns the fixed backup location for a server config file
func (cp ConfigPaths) BackupPath(configFile string) string {
	return filepath.Join(cp.StateDir, filepath.Base(configFile)+".bak")
}

// Resolve makes a project-relative path absolute
func (cp ConfigPaths) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cp.ProjectDir, p)
}

// EnsureDirs creates the state directory tree on demand
func (cp ConfigPaths) EnsureDirs() error {
	dirs := []string{cp.StateDir, cp.DownloadDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
