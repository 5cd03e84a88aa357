// Package config loads and validates watchdogs.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/klantle/watchdogs-sub000/pkg/models"
)

// FileName is the project configuration file
const FileName = "watchdogs.toml"

const (
	envGithubToken = "WATCHDOGS_GITHUB_TOKEN"
	envLogLevel    = "WATCHDOGS_LOG_LEVEL"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	General  General  `toml:"general"`
	Compiler Compiler `toml:"compiler"`
	Depends  Depends  `toml:"depends"`
}

type General struct {
	OS       string            `toml:"os"`
	Server   models.ServerType `toml:"server"`
	Binary   string            `toml:"binary"`
	Config   string            `toml:"config"`
	Logs     string            `toml:"logs"`
	LogLevel string            `toml:"log_level"`
}

type Compiler struct {
	Binary      string   `toml:"binary"`
	Option      []string `toml:"option"`
	IncludePath []string `toml:"include_path"`
	Input       string   `toml:"input"`
	Output      string   `toml:"output"`
	Timeout     Duration `toml:"timeout"`
}

type Depends struct {
	GithubTokens []string `toml:"github_tokens"`
	AIORepo      []string `toml:"aio_repo"`
	Timeout      Duration `toml:"timeout"`
}

// Load reads and validates a watchdogs TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnv(&cfg, filepath.Dir(path))
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, writing a default file first when it is missing.
func LoadOrDefault(path string, server models.ServerType) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteDefault(path, server); err != nil {
			return nil, err
		}
	}
	return Load(path)
}

// Default returns the configuration written for a fresh project
func Default(server models.ServerType) *Config {
	cfg := &Config{General: General{Server: server, OS: runtime.GOOS}}
	applyDefaults(cfg)
	return cfg
}

// WriteDefault (re)creates the config file with defaults for server
func WriteDefault(path string, server models.ServerType) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(Default(server)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays .env and process environment values
func applyEnv(cfg *Config, dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	if tok := strings.TrimSpace(os.Getenv(envGithubToken)); tok != "" {
		cfg.Depends.GithubTokens = append(cfg.Depends.GithubTokens, tok)
	}
	if lvl := strings.TrimSpace(os.Getenv(envLogLevel)); lvl != "" {
		cfg.General.LogLevel = lvl
	}
}

func applyDefaults(cfg *Config) {
	if cfg.General.OS == "" {
		cfg.General.OS = runtime.GOOS
	}
	windows := cfg.General.OS == "windows"
	switch cfg.General.Server {
	case models.ServerOpenMP:
		if cfg.General.Binary == "" {
			cfg.General.Binary = "omp-server"
			if windows {
				cfg.General.Binary = "omp-server.exe"
			}
		}
		if cfg.General.Config == "" {
			cfg.General.Config = "config.json"
		}
		if cfg.General.Logs == "" {
			cfg.General.Logs = "log.txt"
		}
	default:
		if cfg.General.Binary == "" {
			cfg.General.Binary = "samp03svr"
			if windows {
				cfg.General.Binary = "samp-server.exe"
			}
		}
		if cfg.General.Config == "" {
			cfg.General.Config = "server.cfg"
		}
		if cfg.General.Logs == "" {
			cfg.General.Logs = "server_log.txt"
		}
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "warn"
	}

	if cfg.Compiler.Binary == "" {
		cfg.Compiler.Binary = "pawncc"
		if windows {
			cfg.Compiler.Binary = "pawncc.exe"
		}
	}
	if len(cfg.Compiler.Option) == 0 {
		cfg.Compiler.Option = []string{"-d3", "-;+", "-(+"}
	}
	if len(cfg.Compiler.IncludePath) == 0 {
		cfg.Compiler.IncludePath = []string{cfg.General.Server.IncludeDir(), "gamemodes"}
	}
	if cfg.Compiler.Input == "" {
		cfg.Compiler.Input = "gamemodes/bare.pwn"
	}
	if cfg.Compiler.Output == "" {
		cfg.Compiler.Output = strings.TrimSuffix(cfg.Compiler.Input, filepath.Ext(cfg.Compiler.Input)) + ".amx"
	}
	if cfg.Compiler.Timeout.Duration == 0 {
		cfg.Compiler.Timeout.Duration = 2 * time.Minute
	}

	if cfg.Depends.Timeout.Duration == 0 {
		cfg.Depends.Timeout.Duration = 60 * time.Second
	}
}

func validate(cfg *Config) error {
	switch cfg.General.OS {
	case "linux", "windows", "darwin":
	default:
		return fmt.Errorf("general.os %q is not supported", cfg.General.OS)
	}
	if strings.TrimSpace(cfg.General.Binary) == "" {
		return fmt.Errorf("general.binary cannot be empty")
	}
	for _, opt := range cfg.Compiler.Option {
		if err := ValidateCompilerOption(opt); err != nil {
			return err
		}
	}
	if filepath.Ext(cfg.Compiler.Input) != ".pwn" && filepath.Ext(cfg.Compiler.Input) != ".p" {
		return fmt.Errorf("compiler.input %q must be a .pwn or .p file", cfg.Compiler.Input)
	}
	return nil
}

// ServerType returns the configured runtime
func (c *Config) ServerType() models.ServerType {
	return c.General.Server
}
