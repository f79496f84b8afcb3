// Package config loads the clipper configuration from a YAML file with
// environment overrides for deployment-specific values.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level clipper configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	DBPath  string        `yaml:"db_path"`
	Auth    AuthConfig    `yaml:"auth"`
	Browser BrowserConfig `yaml:"browser"`
	MCP     MCPConfig     `yaml:"mcp"`
	Log     LogConfig     `yaml:"log"`
}

// AuthConfig seeds the local account.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BrowserConfig controls the Chrome instance captures run against.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"` // ws:// URL of an external Chrome; empty = launch
	Headful         bool          `yaml:"headful"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// MCPConfig controls the MCP tool surface.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"` // serve tools on stdio
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Load reads a YAML configuration file, then applies environment overrides
// and defaults. An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JOBCLIP_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("JOBCLIP_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("JOBCLIP_USERNAME"); v != "" {
		c.Auth.Username = v
	}
	if v := os.Getenv("JOBCLIP_PASSWORD"); v != "" {
		c.Auth.Password = v
	}
	if v := os.Getenv("JOBCLIP_BROWSER_REMOTE"); v != "" {
		c.Browser.Remote = v
	}
	if v := os.Getenv("JOBCLIP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8090"
	}
	if c.DBPath == "" {
		c.DBPath = "data/jobclip.db"
	}
	if c.Auth.Username == "" {
		c.Auth.Username = "clipper"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
