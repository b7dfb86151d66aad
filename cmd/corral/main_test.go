package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent462/corral/internal/config"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"hosts failed", &hostsFailedError{failed: 1}, exitHostsFailed},
		{"wrapped hosts failed", fmt.Errorf("run: %w", &hostsFailedError{unreachable: 2}), exitHostsFailed},
		{"config", &config.ConfigError{Err: errors.New("bad")}, exitConfig},
		{"usage", &usageError{err: errors.New("unknown flag")}, exitConfig},
		{"other", errors.New("boom"), exitHostsFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

// newTestCmd returns a fresh command carrying the run flags so tests do
// not share flag state through the package-level commands.
func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addSourceFlags(cmd)
	addDefaultsFlags(cmd)
	return cmd
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func useConfig(t *testing.T, path string) {
	t.Helper()
	old := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = old })
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestBuildSession_ConfigPathsAndFlags(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	writeFile(t, dir, "inventory.yaml", "hosts:\n  - web1\n  - deploy@web2:2222\n")
	writeFile(t, dir, "tasks.yaml", "- command: uname -a\n  register: un\n- debug: \"{{ un }}\"\n")
	cfgPath := writeFile(t, dir, "config.yaml", "inventory: inventory.yaml\ntasks: tasks.yaml\ndefaults:\n  user: ops\n")
	useConfig(t, cfgPath)

	cmd := newTestCmd()
	if err := cmd.ParseFlags([]string{"-c", "3", "--timeout", "30s", "--port", "2200"}); err != nil {
		t.Fatal(err)
	}
	s, err := buildSession(cmd, nil)
	if err != nil {
		t.Fatalf("buildSession: %v", err)
	}

	if s.cfg.Defaults.Concurrency != 3 || s.cfg.Defaults.Timeout.Duration != 30*time.Second {
		t.Errorf("flag overrides not applied: %+v", s.cfg.Defaults)
	}
	if len(s.hosts) != 2 {
		t.Fatalf("hosts = %d, want 2", len(s.hosts))
	}
	if s.hosts[0].User != "ops" || s.hosts[0].Port != 2200 {
		t.Errorf("web1 should get defaults, got %+v", s.hosts[0])
	}
	if s.hosts[1].User != "deploy" || s.hosts[1].Port != 2222 {
		t.Errorf("explicit host values must win, got %+v", s.hosts[1])
	}
	if len(s.tasks) != 2 || !strings.HasSuffix(s.source, "tasks.yaml") {
		t.Errorf("tasks = %d from %q", len(s.tasks), s.source)
	}
}

func TestBuildSession_DefaultPlayAndArgs(t *testing.T) {
	isolateHome(t)
	useConfig(t, "")

	s, err := buildSession(newTestCmd(), []string{"alpha", "root@beta"})
	if err != nil {
		t.Fatalf("buildSession: %v", err)
	}
	if len(s.hosts) != 2 || s.hosts[1].User != "root" {
		t.Errorf("hosts = %+v", s.hosts)
	}
	if s.source != "play default" || len(s.tasks) != 3 {
		t.Errorf("expected the default play with 3 tasks, got %d from %q", len(s.tasks), s.source)
	}
}

func TestBuildSession_ExecAndPlay(t *testing.T) {
	isolateHome(t)
	useConfig(t, "")

	cmd := newTestCmd()
	if err := cmd.ParseFlags([]string{"-e", "hostname"}); err != nil {
		t.Fatal(err)
	}
	s, err := buildSession(cmd, []string{"h"})
	if err != nil {
		t.Fatalf("buildSession: %v", err)
	}
	if len(s.tasks) != 1 || s.tasks[0].Command != "hostname" {
		t.Errorf("tasks = %+v", s.tasks)
	}

	cmd = newTestCmd()
	if err := cmd.ParseFlags([]string{"-p", "nope"}); err != nil {
		t.Fatal(err)
	}
	_, err = buildSession(cmd, []string{"h"})
	if exitCode(err) != exitConfig {
		t.Errorf("unknown play should be a config error, got %v", err)
	}
}

func TestBuildSession_Limit(t *testing.T) {
	isolateHome(t)
	useConfig(t, "")

	cmd := newTestCmd()
	if err := cmd.ParseFlags([]string{"-l", "web*,!web2"}); err != nil {
		t.Fatal(err)
	}
	s, err := buildSession(cmd, []string{"web1", "web2", "db1"})
	if err != nil {
		t.Fatalf("buildSession: %v", err)
	}
	if len(s.hosts) != 1 || s.hosts[0].Name != "web1" {
		t.Errorf("hosts = %+v, want only web1", s.hosts)
	}

	cmd = newTestCmd()
	if err := cmd.ParseFlags([]string{"--limit", "nothing*"}); err != nil {
		t.Fatal(err)
	}
	_, err = buildSession(cmd, []string{"web1"})
	var ce *config.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigError for an empty selection, got %v", err)
	}
}

func TestBuildSession_Errors(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	t.Run("no hosts", func(t *testing.T) {
		useConfig(t, "")
		_, err := buildSession(newTestCmd(), nil)
		var ce *config.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("expected ConfigError, got %v", err)
		}
	})

	t.Run("missing inventory", func(t *testing.T) {
		useConfig(t, "")
		cmd := newTestCmd()
		if err := cmd.ParseFlags([]string{"-i", filepath.Join(dir, "missing.yaml")}); err != nil {
			t.Fatal(err)
		}
		_, err := buildSession(cmd, nil)
		if exitCode(err) != exitConfig {
			t.Errorf("expected config error, got %v", err)
		}
	})

	t.Run("bad config", func(t *testing.T) {
		useConfig(t, writeFile(t, dir, "bad.yaml", "defaults:\n  concurrency: -1\n"))
		_, err := buildSession(newTestCmd(), []string{"h"})
		if exitCode(err) != exitConfig {
			t.Errorf("expected config error, got %v", err)
		}
	})

	t.Run("zero concurrency flag", func(t *testing.T) {
		useConfig(t, "")
		cmd := newTestCmd()
		if err := cmd.ParseFlags([]string{"-c", "0"}); err != nil {
			t.Fatal(err)
		}
		_, err := buildSession(cmd, []string{"h"})
		var ue *usageError
		if !errors.As(err, &ue) {
			t.Errorf("expected usageError, got %v", err)
		}
	})
}
