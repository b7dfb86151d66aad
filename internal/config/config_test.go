package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Defaults.Concurrency != 10 {
		t.Errorf("default concurrency = %d, want 10", cfg.Defaults.Concurrency)
	}
	if cfg.Defaults.Timeout.Duration != 5*time.Minute {
		t.Errorf("default timeout = %s, want 5m", cfg.Defaults.Timeout)
	}
	if cfg.Defaults.CommandTimeout.Duration != time.Minute {
		t.Errorf("default command timeout = %s, want 1m", cfg.Defaults.CommandTimeout)
	}
	if cfg.Defaults.Retries != 2 {
		t.Errorf("default retries = %d, want 2", cfg.Defaults.Retries)
	}
	if cfg.Defaults.Output != "text" {
		t.Errorf("default output = %q, want \"text\"", cfg.Defaults.Output)
	}
	if cfg.Plays == nil {
		t.Error("default plays map should not be nil")
	}
}

func TestLoadValidConfig(t *testing.T) {
	content := `
inventory: resources/inventory.yaml
tasks: resources/tasks.yaml

defaults:
  concurrency: 4
  timeout: 1m
  command_timeout: 15s
  run_timeout: 10m
  retries: 3
  retry_backoff: 250ms
  user: deploy
  port: 2222
  insecure: true
  output: json

plays:
  check:
    description: quick look
    tasks:
      - command: ls
        register: listing
      - debug: "{{listing}}"
`
	cfg, path := loadFromString(t, content)

	d := cfg.Defaults
	if d.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", d.Concurrency)
	}
	if d.Timeout.Duration != time.Minute {
		t.Errorf("timeout = %s, want 1m", d.Timeout)
	}
	if d.CommandTimeout.Duration != 15*time.Second {
		t.Errorf("command_timeout = %s, want 15s", d.CommandTimeout)
	}
	if d.RunTimeout.Duration != 10*time.Minute {
		t.Errorf("run_timeout = %s, want 10m", d.RunTimeout)
	}
	if d.Retries != 3 {
		t.Errorf("retries = %d, want 3", d.Retries)
	}
	if d.RetryBackoff.Duration != 250*time.Millisecond {
		t.Errorf("retry_backoff = %s, want 250ms", d.RetryBackoff)
	}
	if d.User != "deploy" || d.Port != 2222 || !d.Insecure {
		t.Errorf("connection defaults = %+v", d)
	}
	if d.Output != "json" {
		t.Errorf("output = %q, want \"json\"", d.Output)
	}

	play, ok := cfg.Plays["check"]
	if !ok {
		t.Fatal("play \"check\" not loaded")
	}
	if len(play.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(play.Tasks))
	}
	if play.Tasks[0].Register != "listing" {
		t.Errorf("tasks[0].register = %q, want \"listing\"", play.Tasks[0].Register)
	}

	dir := filepath.Dir(path)
	if got, want := cfg.InventoryPath(), filepath.Join(dir, "resources", "inventory.yaml"); got != want {
		t.Errorf("InventoryPath() = %q, want %q", got, want)
	}
	if got, want := cfg.TasksPath(), filepath.Join(dir, "resources", "tasks.yaml"); got != want {
		t.Errorf("TasksPath() = %q, want %q", got, want)
	}
}

func TestLoadAbsolutePathsUnchanged(t *testing.T) {
	cfg, _ := loadFromString(t, "inventory: /etc/corral/hosts.yaml\n")
	if got := cfg.InventoryPath(); got != "/etc/corral/hosts.yaml" {
		t.Errorf("InventoryPath() = %q, want absolute path unchanged", got)
	}
	if got := cfg.TasksPath(); got != "" {
		t.Errorf("TasksPath() = %q, want empty", got)
	}
}

func TestDefaultValuesWhenOmitted(t *testing.T) {
	cfg, _ := loadFromString(t, "inventory: hosts.yaml\n")

	if cfg.Defaults.Concurrency != 10 {
		t.Errorf("concurrency = %d, want 10", cfg.Defaults.Concurrency)
	}
	if cfg.Defaults.Output != "text" {
		t.Errorf("output = %q, want \"text\"", cfg.Defaults.Output)
	}
}

func TestDurationParsing(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"10s", 10 * time.Second},
		{"1m", time.Minute},
		{"2m30s", 2*time.Minute + 30*time.Second},
		{"500ms", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg, _ := loadFromString(t, "defaults:\n  command_timeout: "+tt.input+"\n")
			if got := cfg.Defaults.CommandTimeout.Duration; got != tt.want {
				t.Errorf("parsed duration = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInvalidDuration(t *testing.T) {
	_, err := loadStringRaw(t, "defaults:\n  timeout: notaduration\n")
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid output mode", func(c *Config) { c.Defaults.Output = "grouped" }},
		{"negative concurrency", func(c *Config) { c.Defaults.Concurrency = -1 }},
		{"negative timeout", func(c *Config) { c.Defaults.Timeout.Duration = -time.Second }},
		{"negative command timeout", func(c *Config) { c.Defaults.CommandTimeout.Duration = -time.Second }},
		{"negative run timeout", func(c *Config) { c.Defaults.RunTimeout.Duration = -time.Second }},
		{"negative retries", func(c *Config) { c.Defaults.Retries = -1 }},
		{"port out of range", func(c *Config) { c.Defaults.Port = 70000 }},
		{"empty play", func(c *Config) { c.Plays["empty"] = Play{} }},
		{"bad play name", func(c *Config) {
			c.Plays["bad name"] = Play{Tasks: []TaskSpec{{Command: "ls"}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error loading nonexistent file")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if ce.Path != "/nonexistent/path/config.yaml" {
		t.Errorf("ConfigError.Path = %q", ce.Path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestLoadDefaultNoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Defaults.Concurrency != 10 {
		t.Errorf("concurrency = %d, want 10", cfg.Defaults.Concurrency)
	}
}

func TestDefaultConfigPathXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultConfigPath(); got != "/tmp/xdg/corral/config.yaml" {
		t.Errorf("DefaultConfigPath() = %q", got)
	}
}

// loadFromString is a test helper that writes content to a temp file, loads it,
// and fails the test if loading fails.
func loadFromString(t *testing.T, content string) (*Config, string) {
	t.Helper()
	path := writeTemp(t, "config.yaml", content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg, path
}

func loadStringRaw(t *testing.T, content string) (*Config, error) {
	t.Helper()
	return Load(writeTemp(t, "config.yaml", content))
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
