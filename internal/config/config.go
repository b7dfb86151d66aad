package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"

	"github.com/agent462/corral/internal/pathutil"
)

// Config represents the top-level corral configuration.
type Config struct {
	// Inventory and Tasks point at the host list and task list files.
	// Relative paths are resolved against the directory of the config file.
	Inventory string          `yaml:"inventory,omitempty"`
	Tasks     string          `yaml:"tasks,omitempty"`
	Defaults  Defaults        `yaml:"defaults"`
	Plays     map[string]Play `yaml:"plays,omitempty"`

	dir string
}

// Play defines a named, ordered task list.
type Play struct {
	Description string     `yaml:"description,omitempty"`
	Tasks       []TaskSpec `yaml:"tasks"`
}

// TaskSpec is the YAML form of a single task. Exactly one of Command,
// Shell, Debug or Script must be set; Shell is an alias of Command.
type TaskSpec struct {
	Name     string   `yaml:"name,omitempty"`
	Command  string   `yaml:"command,omitempty"`
	Shell    string   `yaml:"shell,omitempty"`
	Debug    string   `yaml:"debug,omitempty"`
	Script   string   `yaml:"script,omitempty"`
	Register string   `yaml:"register,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// Defaults holds run-wide settings. Every field can be overridden by a
// command-line flag.
type Defaults struct {
	Concurrency    int      `yaml:"concurrency"`
	Timeout        Duration `yaml:"timeout"`         // per host, covers connect and all tasks
	CommandTimeout Duration `yaml:"command_timeout"` // per task
	RunTimeout     Duration `yaml:"run_timeout"`     // whole run, 0 = unbounded
	Retries        int      `yaml:"retries"`         // transient connect retries
	RetryBackoff   Duration `yaml:"retry_backoff"`
	User           string   `yaml:"user,omitempty"`
	Port           int      `yaml:"port,omitempty"`
	IdentityFile   string   `yaml:"identity_file,omitempty"`
	Insecure       bool     `yaml:"insecure,omitempty"`
	Output         string   `yaml:"output"` // "text" or "json"
}

// Duration wraps time.Duration to support YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultConfig returns a Config with sensible default values.
// Concurrency 10 matches the fork count of the playbook runner corral
// replaces.
func DefaultConfig() *Config {
	return &Config{
		Plays: make(map[string]Play),
		Defaults: Defaults{
			Concurrency:    10,
			Timeout:        Duration{5 * time.Minute},
			CommandTimeout: Duration{time.Minute},
			Retries:        2,
			RetryBackoff:   Duration{500 * time.Millisecond},
			Output:         "text",
		},
	}
}

// DefaultConfigPath returns the default config file path.
// Respects $XDG_CONFIG_HOME if set, otherwise falls back to ~/.config.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir != "" {
		return filepath.Join(configDir, "corral", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "corral", "config.yaml")
}

// Load reads and parses a config YAML file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("reading config file: %w", err)}
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parsing config file: %w", err)}
	}
	if cfg.Plays == nil {
		cfg.Plays = make(map[string]Play)
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("invalid config: %w", err)}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.dir = filepath.Dir(abs)
	return cfg, nil
}

// LoadDefault loads the config from the default path
// (~/.config/corral/config.yaml). If the file does not exist, it returns the
// default config.
func LoadDefault() (*Config, error) {
	path := DefaultConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// InventoryPath returns the inventory path resolved against the config file.
func (c *Config) InventoryPath() string {
	return pathutil.ResolveFrom(c.dir, c.Inventory)
}

// TasksPath returns the task list path resolved against the config file.
func (c *Config) TasksPath() string {
	return pathutil.ResolveFrom(c.dir, c.Tasks)
}

// Dir returns the directory the config was loaded from, or "" for a
// default config.
func (c *Config) Dir() string {
	return c.dir
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	d := c.Defaults
	if d.Concurrency < 0 {
		return fmt.Errorf("concurrency must be non-negative, got %d", d.Concurrency)
	}
	if d.Timeout.Duration < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", d.Timeout)
	}
	if d.CommandTimeout.Duration < 0 {
		return fmt.Errorf("command_timeout must be non-negative, got %s", d.CommandTimeout)
	}
	if d.RunTimeout.Duration < 0 {
		return fmt.Errorf("run_timeout must be non-negative, got %s", d.RunTimeout)
	}
	if d.Retries < 0 {
		return fmt.Errorf("retries must be non-negative, got %d", d.Retries)
	}
	if d.RetryBackoff.Duration < 0 {
		return fmt.Errorf("retry_backoff must be non-negative, got %s", d.RetryBackoff)
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("port %d out of range", d.Port)
	}

	validOutputModes := map[string]bool{"text": true, "json": true}
	if d.Output != "" && !validOutputModes[d.Output] {
		return fmt.Errorf("invalid output mode %q, must be one of: text, json", d.Output)
	}

	nameRe := regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	for name, play := range c.Plays {
		if !nameRe.MatchString(name) {
			return fmt.Errorf("play name %q must match [a-zA-Z0-9_-]+", name)
		}
		if len(play.Tasks) == 0 {
			return fmt.Errorf("play %q has no tasks", name)
		}
	}

	return nil
}

// ReadInventorySource reads an inventory file and expands environment
// references such as ${SSH_PASSWORD} in it. Task files are never expanded:
// their commands are meant for the remote shell.
func ReadInventorySource(path string) ([]byte, error) {
	if path == "" {
		return nil, &ConfigError{Err: errors.New("no inventory file specified")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("reading inventory: %w", err)}
	}
	data, err = envsubst.Bytes(data)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("expanding env vars: %w", err)}
	}
	return data, nil
}
