package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/play"
	"github.com/agent462/corral/internal/selector"
)

// session is everything a run needs, resolved from config, flags and
// arguments before any connection is made.
type session struct {
	cfg    *config.Config
	hosts  []config.Host
	tasks  []play.Task
	source string // where the tasks came from
}

// addSourceFlags registers the flags that pick hosts and tasks.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("inventory", "i", "", "inventory file (overrides config)")
	cmd.Flags().StringP("tasks", "t", "", "task list file (overrides config)")
	cmd.Flags().StringP("play", "p", "", "run a built-in or configured play by name")
	cmd.Flags().StringP("exec", "e", "", "run a single ad-hoc command")
	cmd.Flags().StringP("limit", "l", "", "only hosts matching these comma-separated globs (!glob excludes)")
	cmd.MarkFlagsMutuallyExclusive("tasks", "play", "exec")
}

// buildSession loads the config, applies overrides from cmd's flags and
// resolves hosts and tasks. Positional args, if any, replace the inventory
// with user@host[:port] specs. Every error is a *config.ConfigError or a
// usageError.
func buildSession(cmd *cobra.Command, args []string) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := applyDefaultsFlags(cmd, &cfg.Defaults); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, &config.ConfigError{Err: err}
	}

	hosts, err := resolveHosts(cmd, cfg, args)
	if err != nil {
		return nil, err
	}
	tasks, source, err := resolveTasks(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, hosts: hosts, tasks: tasks, source: source}, nil
}

func resolveHosts(cmd *cobra.Command, cfg *config.Config, args []string) ([]config.Host, error) {
	var hosts []config.Host
	var err error
	switch {
	case len(args) > 0:
		hosts, err = config.ParseHosts(args)
	default:
		path := cfg.InventoryPath()
		if cmd.Flags().Changed("inventory") {
			path, _ = cmd.Flags().GetString("inventory")
		}
		if path == "" {
			return nil, &config.ConfigError{Err: errors.New("no hosts: pass host arguments, -i inventory.yaml, or set inventory in the config file")}
		}
		hosts, err = config.LoadInventory(path)
	}
	if err != nil {
		return nil, err
	}

	if limit, _ := cmd.Flags().GetString("limit"); limit != "" {
		hosts, err = selector.Filter(hosts, limit)
		if err != nil {
			return nil, &config.ConfigError{Err: fmt.Errorf("--limit: %w", err)}
		}
	}

	hosts = config.ApplyDefaults(hosts, cfg.Defaults)
	for i := range hosts {
		config.MergeSSHConfig(&hosts[i])
	}
	return hosts, nil
}

// resolveTasks picks the task list: --exec, --tasks, --play, the config's
// tasks file, then the default play.
func resolveTasks(cmd *cobra.Command, cfg *config.Config) ([]play.Task, string, error) {
	flags := cmd.Flags()

	if flags.Changed("exec") {
		command, _ := flags.GetString("exec")
		tasks, err := play.FromSpecs([]config.TaskSpec{{Command: command}}, "")
		if err != nil {
			return nil, "", &config.ConfigError{Err: fmt.Errorf("--exec: %w", err)}
		}
		return tasks, "--exec", nil
	}
	if flags.Changed("tasks") {
		path, _ := flags.GetString("tasks")
		tasks, err := play.LoadTasks(path)
		return tasks, path, err
	}
	if flags.Changed("play") {
		name, _ := flags.GetString("play")
		tasks, err := play.TasksFor(name, cfg)
		return tasks, "play " + name, err
	}
	if path := cfg.TasksPath(); path != "" {
		tasks, err := play.LoadTasks(path)
		return tasks, path, err
	}
	tasks, err := play.TasksFor(play.DefaultPlay, cfg)
	return tasks, "play " + play.DefaultPlay, err
}
