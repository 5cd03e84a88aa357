// Package serverconfig rewrites the game server configuration (server.cfg or
// config.json) and keeps a single backup of the pre-update file.
package serverconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNoBackup means there is nothing to restore
	ErrNoBackup = errors.New("no config backup")
	// ErrDeclined means the operator refused the restore
	ErrDeclined = errors.New("restore declined")
)

// State of the backup state machine
type State int

const (
	Clean State = iota
	BackedUp
)

func (s State) String() string {
	if s == BackedUp {
		return "backed-up"
	}
	return "clean"
}

// Prompter confirms destructive steps
type Prompter interface {
	Confirm(question string) bool
}

// Store owns read-modify-write cycles on one live config file
type Store struct {
	path   string
	backup string
	mu     sync.Mutex
}

// NewStore manages path with its backup at backup
func NewStore(path, backup string) *Store {
	return &Store{path: path, backup: backup}
}

// Path is the live config file
func (s *Store) Path() string { return s.path }

// BackupPath is the fixed backup location
func (s *Store) BackupPath() string { return s.backup }

// IsJSON reports whether the live config is an open.mp JSON document
func (s *Store) IsJSON() bool {
	return IsJSONPath(s.path)
}

// Gamemodes returns the main scripts the live config loads: the gamemode0
// line of a server.cfg or pawn.main_scripts of a config.json.
func (s *Store) Gamemodes() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if s.IsJSON() {
		return MainScripts(data)
	}
	v, ok := CfgValue(data, "gamemode0")
	if !ok {
		return nil, nil
	}
	return []string{v}, nil
}

// State reports whether a backup currently exists
func (s *Store) State() State {
	if _, err := os.Stat(s.backup); err == nil {
		return BackedUp
	}
	return Clean
}

// BeginUpdate moves the live config to the backup path and regenerates it
// with the gamemode selector set to gamemode. Every other line or key is
// copied unchanged. A stale backup is discarded first.
func (s *Store) BeginUpdate(gamemode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := GamemodeName(gamemode)
	if name == "" {
		return fmt.Errorf("empty gamemode name")
	}
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("failed to stat %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.backup), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := os.Remove(s.backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale backup: %w", err)
	}
	if err := os.Rename(s.path, s.backup); err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}

	original, err := os.ReadFile(s.backup)
	if err != nil {
		return s.undoBackup(fmt.Errorf("cannot open backup: %w", err))
	}

	var updated []byte
	if s.IsJSON() {
		updated, err = SetMainScripts(original, name)
	} else {
		updated = SetGamemode0(original, name)
	}
	if err != nil {
		return s.undoBackup(err)
	}

	mode := os.FileMode(0644)
	if st, err := os.Stat(s.backup); err == nil {
		mode = st.Mode().Perm()
	}
	if err := os.WriteFile(s.path, updated, mode); err != nil {
		return fmt.Errorf("failed to write new config: %w", err)
	}
	return nil
}

// undoBackup moves the backup back over the live path, leaving the store
// clean, and returns cause.
func (s *Store) undoBackup(cause error) error {
	if err := os.Rename(s.backup, s.path); err != nil {
		return fmt.Errorf("%w; failed to put the backup back: %w", cause, err)
	}
	return cause
}

// Restore asks p for confirmation, then puts the backup back in place of the
// live config. A nil prompter restores without asking.
func (s *Store) Restore(p Prompter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.backup); err != nil {
		return ErrNoBackup
	}
	if p != nil && !p.Confirm(fmt.Sprintf("warning: Continue to restore %s -> %s? y/n", s.backup, s.path)) {
		return ErrDeclined
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}
	if err := os.Rename(s.backup, s.path); err != nil {
		return fmt.Errorf("failed to restore %s: %w", s.path, err)
	}
	return nil
}

// GamemodeName strips directories and the extension from a gamemode argument
func GamemodeName(gamemode string) string {
	base := filepath.Base(strings.TrimSpace(gamemode))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
