package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajranjith/gamecheck/internal/gate"
	"github.com/ajranjith/gamecheck/internal/logging"
	"github.com/ajranjith/gamecheck/internal/support"
)

// DefaultFile is looked up in the workspace root when no --config is given.
const DefaultFile = "gamecheck.yml"

// Config is the compiled-in configuration with optional overrides.
type Config struct {
	SchemaVersion string              `yaml:"schemaVersion" json:"schemaVersion"`
	Paths         PathsConfig         `yaml:"paths" json:"paths"`
	Games         []string            `yaml:"games" json:"games"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Reports       ReportsConfig       `yaml:"reports" json:"reports"`
	Policy        gate.Policy         `yaml:"policy" json:"policy"`
	Fixes         map[string][]string `yaml:"fixes" json:"fixes"`
	Watch         WatchConfig         `yaml:"watch" json:"watch"`
	Parity        ParityConfig        `yaml:"parity" json:"parity"`
}

type PathsConfig struct {
	WorkspaceRoot string `yaml:"workspaceRoot" json:"workspaceRoot"`
	GamesDir      string `yaml:"gamesDir" json:"gamesDir"`
	OutputDir     string `yaml:"outputDir" json:"outputDir"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	JSON  bool   `yaml:"json" json:"json"`
}

type ReportsConfig struct {
	SARIF ReportConfig `yaml:"sarif" json:"sarif"`
	JUnit ReportConfig `yaml:"junit" json:"junit"`
	// KeepLast bounds the number of report records kept; 0 keeps all.
	KeepLast int `yaml:"keepLast" json:"keepLast"`
}

type ReportConfig struct {
	Enabled *bool  `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// On reports whether the writer is enabled. Unset means enabled.
func (r ReportConfig) On() bool { return r.Enabled == nil || *r.Enabled }

type WatchConfig struct {
	DebounceMs int `yaml:"debounceMs" json:"debounceMs"`
}

type ParityConfig struct {
	Expectations string `yaml:"expectations" json:"expectations"`
}

type Flags struct {
	ConfigPath    string
	WorkspaceRoot string
	LogLevel      string
	JSONLogs      bool
}

// Default returns the compiled-in defaults.
func Default() Config {
	return Config{
		SchemaVersion: "1.0",
		Paths: PathsConfig{
			WorkspaceRoot: ".",
			GamesDir:      "games",
			OutputDir:     ".gamecheck",
		},
		Logging: LoggingConfig{Level: "info"},
		Reports: ReportsConfig{
			SARIF: ReportConfig{Path: "results.sarif"},
			JUnit: ReportConfig{Path: "junit.xml"},
		},
		Watch:  WatchConfig{DebounceMs: 300},
		Parity: ParityConfig{Expectations: "parity.yml"},
	}
}

// Load reads a YAML (or JSON) config from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(support.StripBOM(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies defaults, the config file and flag overrides, then
// validates. It returns the path of the file used, if any.
func Resolve(flags Flags) (Config, string, error) {
	cfg := Default()
	cfgPath := flags.ConfigPath
	if cfgPath == "" {
		root := flags.WorkspaceRoot
		if root == "" {
			root = cfg.Paths.WorkspaceRoot
		}
		candidate := filepath.Join(root, DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			cfgPath = candidate
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, "", err
		}
	}

	if cfgPath != "" {
		loaded, err := Load(cfgPath)
		if err != nil {
			return Config{}, "", err
		}
		mergeConfigDefaults(&loaded, &cfg)
		cfg = loaded
	}

	if flags.WorkspaceRoot != "" {
		cfg.Paths.WorkspaceRoot = flags.WorkspaceRoot
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.JSONLogs {
		cfg.Logging.JSON = true
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = "1.0"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, cfgPath, nil
}

// Validate checks the resolved configuration for consistency.
func (c *Config) Validate() error {
	if c.SchemaVersion != "1.0" {
		return fmt.Errorf("unsupported schemaVersion: %s (expected 1.0)", c.SchemaVersion)
	}
	if strings.TrimSpace(c.Paths.GamesDir) == "" {
		return errors.New("paths.gamesDir must not be empty")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.outputDir must not be empty")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Reports.KeepLast < 0 {
		return fmt.Errorf("reports.keepLast must be >= 0, got %d", c.Reports.KeepLast)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounceMs must be >= 0, got %d", c.Watch.DebounceMs)
	}
	for _, g := range c.Games {
		if g == "" || strings.ContainsAny(g, `/\`) {
			return fmt.Errorf("games: invalid artifact name %q", g)
		}
	}
	return c.Policy.Validate()
}

// GamesDir returns the games directory resolved against the workspace root.
func (c *Config) GamesDir() string { return c.resolve(c.Paths.GamesDir) }

// OutputDir returns the output directory resolved against the workspace root.
func (c *Config) OutputDir() string { return c.resolve(c.Paths.OutputDir) }

// BackupDir is where artifact backups are written.
func (c *Config) BackupDir() string { return filepath.Join(c.OutputDir(), "backups") }

// OutputPath resolves p against the output directory unless it is absolute.
func (c *Config) OutputPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.OutputDir(), p)
}

// WorkspacePath resolves p against the workspace root unless it is absolute.
func (c *Config) WorkspacePath(p string) string { return c.resolve(p) }

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.WorkspaceRoot, p)
}

func mergeConfigDefaults(cfg *Config, defaults *Config) {
	if cfg.Paths.WorkspaceRoot == "" {
		cfg.Paths.WorkspaceRoot = defaults.Paths.WorkspaceRoot
	}
	if cfg.Paths.GamesDir == "" {
		cfg.Paths.GamesDir = defaults.Paths.GamesDir
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = defaults.Paths.OutputDir
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Reports.SARIF.Path == "" {
		cfg.Reports.SARIF.Path = defaults.Reports.SARIF.Path
	}
	if cfg.Reports.JUnit.Path == "" {
		cfg.Reports.JUnit.Path = defaults.Reports.JUnit.Path
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = defaults.Watch.DebounceMs
	}
	if cfg.Parity.Expectations == "" {
		cfg.Parity.Expectations = defaults.Parity.Expectations
	}
}
