package config

import "fmt"

// ConfigError reports a missing, malformed, or unusable configuration
// source. It is fatal: a run never starts when one is returned.
type ConfigError struct {
	Path string // source file, empty for inline input
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(path string, format string, args ...any) error {
	return &ConfigError{Path: path, Err: fmt.Errorf(format, args...)}
}
