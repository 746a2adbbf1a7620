// Package config loads ~/.stateflow.toml. Every key can be overridden by a
// STATEFLOW_* environment variable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"stateflow/internal/history"
	"stateflow/internal/layout"
)

const FileName = ".stateflow.toml"

type SnapConfig struct {
	Enabled   bool    `toml:"enabled"`
	Tolerance float64 `toml:"tolerance"`
	Grid      float64 `toml:"grid"`
}

type Config struct {
	// DataDir holds the file gateway documents and the visual layout
	// overrides.
	DataDir string `toml:"data_dir"`
	// DatabaseURL selects the postgres gateway when set.
	DatabaseURL   string     `toml:"database_url"`
	OrgID         string     `toml:"org_id"`
	LogLevel      string     `toml:"log_level"`
	LogFile       string     `toml:"log_file"`
	MaxHistory    int        `toml:"max_history"`
	Confirmations bool       `toml:"confirmations"`
	Snap          SnapConfig `toml:"snap"`
}

func Default() *Config {
	snap := layout.DefaultSnap()
	return &Config{
		DataDir:       defaultDataDir(),
		OrgID:         "default",
		LogLevel:      "info",
		MaxHistory:    history.MaxHistory,
		Confirmations: true,
		Snap: SnapConfig{
			Enabled:   snap.Enabled,
			Tolerance: snap.Tolerance,
			Grid:      snap.Grid,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stateflow"
	}
	return filepath.Join(home, ".stateflow")
}

// DefaultPath is ~/.stateflow.toml, or STATEFLOW_CONFIG when set.
func DefaultPath() string {
	if p := os.Getenv("STATEFLOW_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// Load reads path over the defaults and then applies the environment. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing config: unknown key %s", undecoded[0])
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.LogFile = expandHome(cfg.LogFile)
	return cfg, cfg.Validate()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) applyEnv() error {
	c.DataDir = envOrDefault("STATEFLOW_DATA_DIR", c.DataDir)
	c.DatabaseURL = envOrDefault("STATEFLOW_DATABASE_URL", c.DatabaseURL)
	c.OrgID = envOrDefault("STATEFLOW_ORG_ID", c.OrgID)
	c.LogLevel = envOrDefault("STATEFLOW_LOG_LEVEL", c.LogLevel)
	c.LogFile = envOrDefault("STATEFLOW_LOG_FILE", c.LogFile)

	var err error
	if v := os.Getenv("STATEFLOW_MAX_HISTORY"); v != "" {
		if c.MaxHistory, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("STATEFLOW_MAX_HISTORY: %w", err)
		}
	}
	if v := os.Getenv("STATEFLOW_CONFIRMATIONS"); v != "" {
		if c.Confirmations, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("STATEFLOW_CONFIRMATIONS: %w", err)
		}
	}
	if v := os.Getenv("STATEFLOW_SNAP"); v != "" {
		if c.Snap.Enabled, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("STATEFLOW_SNAP: %w", err)
		}
	}
	if v := os.Getenv("STATEFLOW_SNAP_GRID"); v != "" {
		if c.Snap.Grid, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("STATEFLOW_SNAP_GRID: %w", err)
		}
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func (c *Config) Validate() error {
	if c.OrgID == "" {
		return fmt.Errorf("org_id is required")
	}
	if c.DatabaseURL == "" && c.DataDir == "" {
		return fmt.Errorf("data_dir is required without database_url")
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("max_history must be positive")
	}
	if c.Snap.Tolerance < 0 || c.Snap.Grid < 0 {
		return fmt.Errorf("snap tolerance and grid must not be negative")
	}
	return nil
}

// SnapSettings converts the [snap] table for the layout store.
func (c *Config) SnapSettings() layout.Snap {
	return layout.Snap{Enabled: c.Snap.Enabled, Tolerance: c.Snap.Tolerance, Grid: c.Snap.Grid}
}

// LayoutDir is where visual overrides are kept.
func (c *Config) LayoutDir() string {
	return filepath.Join(c.DataDir, "layout")
}
