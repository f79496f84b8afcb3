package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":8090" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.DBPath != "data/jobclip.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.Auth.Username != "clipper" {
		t.Errorf("username = %q", cfg.Auth.Username)
	}
	if cfg.Browser.NavigateTimeout != 30*time.Second {
		t.Errorf("navigate_timeout = %v", cfg.Browser.NavigateTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobclip.yaml")
	content := `
listen: ":9000"
db_path: /tmp/clip.db
auth:
  username: alex
  password: secret
browser:
  headful: true
  navigate_timeout: 10s
mcp:
  enabled: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.DBPath != "/tmp/clip.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Auth.Username != "alex" || cfg.Auth.Password != "secret" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if !cfg.Browser.Headful || cfg.Browser.NavigateTimeout != 10*time.Second {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if !cfg.MCP.Enabled {
		t.Error("mcp not enabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JOBCLIP_LISTEN", ":7777")
	t.Setenv("JOBCLIP_PASSWORD", "fromenv")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":7777" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Auth.Password != "fromenv" {
		t.Errorf("password = %q", cfg.Auth.Password)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/jobclip.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
