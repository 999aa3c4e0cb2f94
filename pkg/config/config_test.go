package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/dnetui/pkg/config"
	"github.com/odvcencio/dnetui/pkg/errors"
)

// isolate points HOME and the working directory at fresh temp dirs and
// clears the env overrides.
func isolate(t *testing.T) (home, project string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"DNETUI_API_HOST", "DNETUI_API_PORT", "DNETUI_TICK", "DNETUI_STRICT", "DNETUI_LOG_LEVEL", "DNETUI_LOG_FILE"} {
		t.Setenv(key, "")
	}

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(project); err != nil {
		t.Fatalf("chdir project: %v", err)
	}
	return home, project
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.API.Host != "127.0.0.1" || cfg.API.Port != 8080 {
		t.Fatalf("unexpected api defaults: %+v", cfg.API)
	}
	if cfg.Chat.MaxTokens != 2000 || cfg.Chat.Temperature != 0.7 {
		t.Fatalf("unexpected chat defaults: %+v", cfg.Chat)
	}
	if cfg.UI.Tick != 100*time.Millisecond || cfg.UI.Strict {
		t.Fatalf("unexpected ui defaults: %+v", cfg.UI)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if got := cfg.APIURL(); got != "http://127.0.0.1:8080" {
		t.Fatalf("APIURL() = %s", got)
	}
}

func TestLoadWithoutFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}
	if cfg.API.Port != config.DefaultAPIPort {
		t.Fatalf("expected default port, got %d", cfg.API.Port)
	}
	if !strings.Contains(cfg.Location(), "not found") {
		t.Fatalf("expected location to report a missing file, got %s", cfg.Location())
	}
}

func TestLoadHierarchy(t *testing.T) {
	home, project := isolate(t)

	writeFile(t, filepath.Join(home, ".dria", "dnet", "dnetui.yaml"), `
api:
  host: 10.0.0.5
  port: 9000
ui:
  strict: true
`)
	writeFile(t, filepath.Join(project, "dnetui.yaml"), `
api:
  port: 9100
refresh:
  devices: 10s
`)
	t.Setenv("DNETUI_TICK", "250ms")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}

	if cfg.API.Host != "10.0.0.5" {
		t.Fatalf("expected user host, got %s", cfg.API.Host)
	}
	if cfg.API.Port != 9100 {
		t.Fatalf("expected project port override, got %d", cfg.API.Port)
	}
	if !cfg.UI.Strict {
		t.Fatalf("expected user strict flag")
	}
	if cfg.Refresh.Devices != 10*time.Second {
		t.Fatalf("expected project devices refresh, got %s", cfg.Refresh.Devices)
	}
	if cfg.UI.Tick != 250*time.Millisecond {
		t.Fatalf("expected env tick override, got %s", cfg.UI.Tick)
	}
	if cfg.Location() != filepath.Join(".", "dnetui.yaml") {
		t.Fatalf("expected project file as location, got %s", cfg.Location())
	}
}

func TestConfigEnvFile(t *testing.T) {
	home, _ := isolate(t)

	writeFile(t, filepath.Join(home, ".dria", "dnet", "config.env"), `
# comment
export DNETUI_API_HOST="192.168.1.2"
DNETUI_STRICT=yes
`)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}
	if cfg.API.Host != "192.168.1.2" {
		t.Fatalf("expected config.env host, got %s", cfg.API.Host)
	}
	if !cfg.UI.Strict {
		t.Fatalf("expected config.env strict flag")
	}

	t.Setenv("DNETUI_API_HOST", "example.test")
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}
	if cfg.API.Host != "example.test" {
		t.Fatalf("process env should win over config.env, got %s", cfg.API.Host)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, project := isolate(t)
	writeFile(t, filepath.Join(project, "dnetui.yaml"), "api: [unclosed")

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if !errors.IsCode(err, errors.ErrCodeConfigParse) {
		t.Fatalf("expected CONFIG_PARSE, got %v", err)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	isolate(t)

	_, err := config.LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
	if !errors.IsCode(err, errors.ErrCodeConfigLoad) {
		t.Fatalf("expected CONFIG_LOAD, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty host", func(c *config.Config) { c.API.Host = " " }},
		{"url as host", func(c *config.Config) { c.API.Host = "http://x" }},
		{"port zero", func(c *config.Config) { c.API.Port = 0 }},
		{"port too large", func(c *config.Config) { c.API.Port = 70000 }},
		{"negative timeout", func(c *config.Config) { c.API.Timeout = -time.Second }},
		{"zero rate", func(c *config.Config) { c.API.RequestsPerSecond = 0 }},
		{"zero max tokens", func(c *config.Config) { c.Chat.MaxTokens = 0 }},
		{"hot temperature", func(c *config.Config) { c.Chat.Temperature = 3 }},
		{"tick too short", func(c *config.Config) { c.UI.Tick = time.Millisecond }},
		{"zero refresh", func(c *config.Config) { c.Refresh.Topology = 0 }},
		{"bad kv bits", func(c *config.Config) { c.Topology.KVBits = "3bit" }},
		{"zero seq len", func(c *config.Config) { c.Topology.SeqLen = 0 }},
		{"huge batch exponent", func(c *config.Config) { c.Topology.MaxBatchExp = 11 }},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.IsCode(err, errors.ErrCodeConfigInvalid) {
				t.Fatalf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestInvalidEnvOverrideFailsLoad(t *testing.T) {
	isolate(t)
	t.Setenv("DNETUI_LOG_LEVEL", "chatty")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected config.Load to fail for invalid log level")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)

	cfg := config.DefaultConfig()
	cfg.API.Host = "10.1.1.1"
	cfg.Chat.Temperature = 0
	cfg.UI.Tick = 200 * time.Millisecond

	path := filepath.Join(t.TempDir(), "nested", "dnetui.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Location() != path {
		t.Fatalf("Save should update location, got %s", cfg.Location())
	}

	loaded, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.API.Host != "10.1.1.1" {
		t.Fatalf("host not saved: %s", loaded.API.Host)
	}
	if loaded.Chat.Temperature != 0 {
		t.Fatalf("explicit zero temperature should survive, got %f", loaded.Chat.Temperature)
	}
	if loaded.UI.Tick != 200*time.Millisecond {
		t.Fatalf("tick not saved: %s", loaded.UI.Tick)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.Port = -1
	path := filepath.Join(t.TempDir(), "dnetui.yaml")
	if err := cfg.Save(path); err == nil {
		t.Fatalf("expected Save to validate")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid config should not be written")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := config.DefaultConfig()
	cp := cfg.Clone()
	cp.API.Port = 1
	if cfg.API.Port == 1 {
		t.Fatalf("Clone should copy")
	}
}

func TestPaths(t *testing.T) {
	home, _ := isolate(t)

	if got := config.DataDir(); got != filepath.Join(home, ".dria", "dnet") {
		t.Fatalf("DataDir() = %s", got)
	}
	if got := config.UserConfigPath(); got != filepath.Join(home, ".dria", "dnet", "dnetui.yaml") {
		t.Fatalf("UserConfigPath() = %s", got)
	}

	cfg := config.DefaultConfig()
	if got := cfg.LogPath(); got != filepath.Join(home, ".dria", "dnet", "dnetui.log") {
		t.Fatalf("default LogPath() = %s", got)
	}
	cfg.Log.File = "~/logs/ui.log"
	if got := cfg.LogPath(); got != filepath.Join(home, "logs", "ui.log") {
		t.Fatalf("expanded LogPath() = %s", got)
	}

	if got := cfg.SavePath(); got != config.UserConfigPath() {
		t.Fatalf("unsaved SavePath() = %s", got)
	}
	saved := filepath.Join(home, "custom.yaml")
	if err := cfg.Save(saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := cfg.SavePath(); got != saved {
		t.Fatalf("SavePath() after save = %s", got)
	}
}
