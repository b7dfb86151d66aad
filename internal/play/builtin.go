package play

import (
	"fmt"
	"sort"

	"github.com/agent462/corral/internal/config"
)

// DefaultPlay is run when neither a task file nor a play name is given.
const DefaultPlay = "default"

// BuiltinPlays returns all built-in plays keyed by name.
func BuiltinPlays() map[string]config.Play {
	return map[string]config.Play{
		DefaultPlay:  builtinDefault(),
		"uptime":     builtinUptime(),
		"disk-check": builtinDiskCheck(),
		"os-version": builtinOSVersion(),
	}
}

// IsBuiltin reports whether name is a built-in play.
func IsBuiltin(name string) bool {
	_, ok := BuiltinPlays()[name]
	return ok
}

// ResolvePlay looks up a play by name. User-defined plays in cfg override
// built-ins. Returns the play, whether a built-in exists for that name, and
// whether the play was found at all.
func ResolvePlay(name string, cfg *config.Config) (config.Play, bool, bool) {
	_, isBuiltin := BuiltinPlays()[name]

	if cfg != nil {
		if p, ok := cfg.Plays[name]; ok {
			return p, isBuiltin, true
		}
	}

	if isBuiltin {
		return BuiltinPlays()[name], true, true
	}

	return config.Play{}, false, false
}

// MergedPlays returns built-in plays merged with user-defined plays.
// User plays override built-ins with the same name.
func MergedPlays(cfg *config.Config) map[string]config.Play {
	merged := make(map[string]config.Play)
	for name, p := range BuiltinPlays() {
		merged[name] = p
	}
	if cfg != nil {
		for name, p := range cfg.Plays {
			merged[name] = p
		}
	}
	return merged
}

// SortedNames returns the keys of plays in lexical order.
func SortedNames(plays map[string]config.Play) []string {
	names := make([]string, 0, len(plays))
	for name := range plays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TasksFor resolves a play by name and converts it into validated Tasks.
// Script paths in user plays are relative to the config file.
func TasksFor(name string, cfg *config.Config) ([]Task, error) {
	p, _, found := ResolvePlay(name, cfg)
	if !found {
		return nil, &config.ConfigError{Err: fmt.Errorf("play %q not found", name)}
	}
	baseDir := ""
	if cfg != nil {
		baseDir = cfg.Dir()
	}
	tasks, err := FromSpecs(p.Tasks, baseDir)
	if err != nil {
		return nil, &config.ConfigError{Err: fmt.Errorf("play %q: %w", name, err)}
	}
	return tasks, nil
}

// --- individual built-in plays ---

// builtinDefault lists the directory, echoes the listing back through a
// captured variable, then reports uptime.
func builtinDefault() config.Play {
	return config.Play{
		Description: "List home directory, echo it back, show uptime",
		Tasks: []config.TaskSpec{
			{Name: "list files", Shell: "ls", Register: "shell_out"},
			{Name: "show listing", Debug: "{{shell_out.stdout}}"},
			{Name: "uptime", Command: "/usr/bin/uptime"},
		},
	}
}

func builtinUptime() config.Play {
	return config.Play{
		Description: "Show uptime and load averages",
		Tasks:       []config.TaskSpec{{Command: "uptime"}},
	}
}

func builtinDiskCheck() config.Play {
	return config.Play{
		Description: "Check disk usage on root filesystem",
		Tasks:       []config.TaskSpec{{Command: "df -h /"}},
	}
}

func builtinOSVersion() config.Play {
	return config.Play{
		Description: "Show OS version",
		Tasks: []config.TaskSpec{
			{Command: `grep PRETTY_NAME /etc/os-release 2>/dev/null | cut -d= -f2 | tr -d '"' || uname -sr`},
		},
	}
}
