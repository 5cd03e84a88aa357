package models

import (
	"fmt"
	"strings"
	"time"
)

// ServerType selects between the two supported server runtimes
type ServerType int

const (
	ServerSAMP ServerType = iota
	ServerOpenMP
)

// ParseServerType accepts "samp", "sa-mp", "openmp", "open.mp" and "omp"
func ParseServerType(s string) (ServerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "samp", "sa-mp":
		return ServerSAMP, nil
	case "openmp", "open.mp", "omp":
		return ServerOpenMP, nil
	}
	return ServerSAMP, fmt.Errorf("unknown server type %q", s)
}

func (t ServerType) String() string {
	if t == ServerOpenMP {
		return "openmp"
	}
	return "samp"
}

// DisplayName is the human readable runtime name
func (t ServerType) DisplayName() string {
	if t == ServerOpenMP {
		return "open.mp"
	}
	return "SA-MP"
}

// IncludeDir is where the runtime's compiler toolchain keeps includes
func (t ServerType) IncludeDir() string {
	if t == ServerOpenMP {
		return "qawno/include"
	}
	return "pawno/include"
}

func (t ServerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ServerType) UnmarshalText(text []byte) error {
	parsed, err := ParseServerType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// CompilerRunSummary is built while scanning a compiler log
type CompilerRunSummary struct {
	WarningCount    int
	ErrorCount      int
	HeaderSize      int64
	CodeSize        int64
	DataSize        int64
	StackSize       int64
	TotalSize       int64
	CompilerVersion string
}

// OK reports whether the compile produced no errors
func (s *CompilerRunSummary) OK() bool {
	return s.ErrorCount < 1
}

// HasSizes reports whether any size metric was captured
func (s *CompilerRunSummary) HasSizes() bool {
	return s.HeaderSize > 0 || s.CodeSize > 0 || s.DataSize > 0 || s.StackSize > 0 || s.TotalSize > 0
}

// Dependency describes a repository to fetch
type Dependency struct {
	Host   string `json:"host"`
	Domain string `json:"domain"`
	User   string `json:"user"`
	Repo   string `json:"repo"`
	Tag    string `json:"tag,omitempty"`
}

// WantsLatest reports whether the tag must be resolved remotely
func (d Dependency) WantsLatest() bool {
	return d.Tag == "" || d.Tag == "newer" || d.Tag == "latest"
}

func (d Dependency) String() string {
	s := d.User + "/" + d.Repo
	if d.Domain != "" && d.Domain != "github.com" {
		s = d.Domain + "/" + s
	}
	if d.Tag != "" {
		s += "?" + d.Tag
	}
	return s
}

// RunRecord captures the last server launch
type RunRecord struct {
	Gamemode   string     `json:"gamemode"`
	Binary     string     `json:"binary"`
	Config     string     `json:"config"`
	ServerType ServerType `json:"server_type"`
	PID        int        `json:"pid,omitempty"`
	Attempts   int        `json:"attempts"`
	ExitCode   int        `json:"exit_code"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	Crashed    bool       `json:"crashed"`
}

// State holds everything persisted in the state file
type State struct {
	LastRun   *RunRecord            `json:"last_run,omitempty"`
	Installed map[string]Dependency `json:"installed"`
	Version   string                `json:"version"`
}
