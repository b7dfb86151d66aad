package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent462/corral/internal/config"
)

// addDefaultsFlags registers a flag for every run-wide default that the
// command line may override.
func addDefaultsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("concurrency", "c", 0, "hosts to work on at once (default 10)")
	f.Duration("timeout", 0, "per-host timeout covering connect and all tasks (default 5m)")
	f.Duration("command-timeout", 0, "per-command timeout (default 1m)")
	f.Duration("run-timeout", 0, "timeout for the whole run (default none)")
	f.Int("retries", 0, "connection retries for transient errors (default 2)")
	f.StringP("user", "u", "", "SSH user for hosts that do not set one")
	f.Int("port", 0, "SSH port for hosts that do not set one")
	f.String("identity", "", "private key for hosts that do not set one")
	f.Bool("insecure", false, "skip host key verification")
}

// applyDefaultsFlags overlays explicitly set flags onto d.
func applyDefaultsFlags(cmd *cobra.Command, d *config.Defaults) error {
	f := cmd.Flags()
	if f.Lookup("concurrency") == nil {
		return nil
	}

	var err error
	setInt := func(name string, dst *int) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetInt(name)
		}
	}
	setDuration := func(name string, dst *config.Duration) {
		if err == nil && f.Changed(name) {
			var v time.Duration
			v, err = f.GetDuration(name)
			dst.Duration = v
		}
	}
	setString := func(name string, dst *string) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetString(name)
		}
	}

	setInt("concurrency", &d.Concurrency)
	setDuration("timeout", &d.Timeout)
	setDuration("command-timeout", &d.CommandTimeout)
	setDuration("run-timeout", &d.RunTimeout)
	setInt("retries", &d.Retries)
	setString("user", &d.User)
	setInt("port", &d.Port)
	setString("identity", &d.IdentityFile)
	if err == nil && f.Changed("insecure") {
		d.Insecure, err = f.GetBool("insecure")
	}
	if err != nil {
		return &usageError{err: fmt.Errorf("flags: %w", err)}
	}
	if f.Changed("concurrency") && d.Concurrency < 1 {
		return &usageError{err: fmt.Errorf("--concurrency must be at least 1, got %d", d.Concurrency)}
	}
	return nil
}
