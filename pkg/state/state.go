// Package state persists the last server run and installed dependencies.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klantle/watchdogs-sub000/pkg/models"
)

const stateVersion = "1.0"

// Store manages the state file of one project
type Store struct {
	filePath string
	data     *models.State
	mu       sync.RWMutex
}

// NewStore creates a store backed by filePath
func NewStore(filePath string) *Store {
	return &Store{
		filePath: filePath,
		data: &models.State{
			Installed: make(map[string]models.Dependency),
			Version:   stateVersion,
		},
	}
}

// Load reads the state from disk. A missing file is an empty state.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.filePath)
	if os.IsNotExist(err) {
		s.data.Installed = make(map[string]models.Dependency)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat state file: %w", err)
	}

	content, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	data := &models.State{}
	if err := json.Unmarshal(content, data); err != nil {
		return fmt.Errorf("failed to parse state: %w", err)
	}
	if data.Installed == nil {
		data.Installed = make(map[string]models.Dependency)
	}
	s.data = data
	return nil
}

// Save writes the state to disk
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.save()
}

// LastRun returns a copy of the last run record, or nil
func (s *Store) LastRun() *models.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.LastRun == nil {
		return nil
	}
	rec := *s.data.LastRun
	return &rec
}

// RecordStart stores a freshly launched run
func (s *Store) RecordStart(rec models.RunRecord, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec.PID = pid
	rec.StartedAt = &now
	rec.StoppedAt = nil
	rec.Crashed = false
	s.data.LastRun = &rec
	return s.save()
}

// RecordExit marks the last run as stopped
func (s *Store) RecordExit(exitCode, attempts int, crashed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.LastRun == nil {
		return fmt.Errorf("no run recorded")
	}
	now := time.Now()
	run := s.data.LastRun
	run.PID = 0
	run.StoppedAt = &now
	run.ExitCode = exitCode
	run.Attempts = attempts
	run.Crashed = crashed
	return s.save()
}

// RecordInstall implements depends.Recorder
func (s *Store) RecordInstall(dep models.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Installed[dep.User+"/"+dep.Repo] = dep
	return s.save()
}

// Installed lists installed dependencies ordered by name
func (s *Store) Installed() []models.Dependency {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data.Installed))
	for name := range s.data.Installed {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]models.Dependency, 0, len(names))
	for _, name := range names {
		deps = append(deps, s.data.Installed[name])
	}
	return deps
}

// save (internal) writes the state without taking locks
func (s *Store) save() error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	content, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(s.filePath, content, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}
