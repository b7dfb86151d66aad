// Package play defines tasks, the ordered command lists run against every
// host, and loads them from YAML or the built-in catalogue.
package play

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/pathutil"
)

// Kind says how a task is carried out.
type Kind int

const (
	// KindCommand runs Task.Command in the remote shell.
	KindCommand Kind = iota
	// KindDebug renders Task.Command locally and records it as stdout.
	// Nothing is sent to the host.
	KindDebug
	// KindScript uploads the local file at Task.Command and runs it.
	KindScript
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindDebug:
		return "debug"
	case KindScript:
		return "script"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Task is one step of a play. Tasks run strictly in order on each host.
type Task struct {
	Name     string
	Kind     Kind
	Command  string        // shell command, debug message, or local script path
	Register string        // capture name for later {{ }} references, optional
	Timeout  time.Duration // overrides the run's command timeout when > 0
}

// Label returns the task's display name.
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Kind == KindScript {
		return "script " + filepath.Base(t.Command)
	}
	return t.Command
}

var registerRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FromSpecs converts YAML task specs into Tasks and validates the list as a
// whole: every register name is well-formed and unique, and every {{ }}
// reference names a register of an earlier task. Relative script paths are
// resolved against baseDir.
func FromSpecs(specs []config.TaskSpec, baseDir string) ([]Task, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no tasks defined")
	}

	tasks := make([]Task, 0, len(specs))
	registered := make(map[string]bool)
	for i, s := range specs {
		t, err := fromSpec(s, baseDir)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}

		// Script paths are local files, not templates.
		if t.Kind != KindScript {
			for _, ref := range References(t.Command) {
				if !registered[ref] {
					return nil, fmt.Errorf("task %d (%s): %w", i+1, t.Label(),
						&TemplateError{Ref: ref, Reason: "not registered by an earlier task"})
				}
			}
		}

		if t.Register != "" {
			if !registerRe.MatchString(t.Register) {
				return nil, fmt.Errorf("task %d: register name %q must match [A-Za-z_][A-Za-z0-9_]*", i+1, t.Register)
			}
			if registered[t.Register] {
				return nil, fmt.Errorf("task %d: register name %q already used", i+1, t.Register)
			}
			registered[t.Register] = true
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func fromSpec(s config.TaskSpec, baseDir string) (Task, error) {
	t := Task{
		Name:     s.Name,
		Register: s.Register,
		Timeout:  s.Timeout.Duration,
	}
	if t.Timeout < 0 {
		return Task{}, fmt.Errorf("negative timeout %s", s.Timeout)
	}

	set := 0
	if s.Command != "" {
		set++
		t.Kind, t.Command = KindCommand, s.Command
	}
	if s.Shell != "" {
		set++
		t.Kind, t.Command = KindCommand, s.Shell
	}
	if s.Debug != "" {
		set++
		t.Kind, t.Command = KindDebug, s.Debug
	}
	if s.Script != "" {
		set++
		t.Kind, t.Command = KindScript, pathutil.ResolveFrom(baseDir, s.Script)
	}

	switch set {
	case 0:
		return Task{}, fmt.Errorf("one of command, shell, debug or script is required")
	case 1:
		return t, nil
	default:
		return Task{}, fmt.Errorf("only one of command, shell, debug or script may be set")
	}
}

// taskFile is the mapping form of a task list; a bare sequence of tasks is
// accepted as well.
type taskFile struct {
	Tasks []config.TaskSpec `yaml:"tasks"`
}

// LoadTasks reads an ordered task list from path. Any problem with the file
// or its contents is returned as a *config.ConfigError.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.ConfigError{Path: path, Err: fmt.Errorf("reading tasks: %w", err)}
	}

	specs, err := parseTaskSpecs(data)
	if err != nil {
		return nil, &config.ConfigError{Path: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	tasks, err := FromSpecs(specs, filepath.Dir(abs))
	if err != nil {
		return nil, &config.ConfigError{Path: path, Err: err}
	}
	return tasks, nil
}

func parseTaskSpecs(data []byte) ([]config.TaskSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing tasks: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("no tasks defined")
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var specs []config.TaskSpec
		if err := root.Decode(&specs); err != nil {
			return nil, fmt.Errorf("parsing tasks: %w", err)
		}
		return specs, nil
	case yaml.MappingNode:
		var tf taskFile
		if err := root.Decode(&tf); err != nil {
			return nil, fmt.Errorf("parsing tasks: %w", err)
		}
		return tf.Tasks, nil
	default:
		return nil, fmt.Errorf("tasks must be a list or a mapping with a tasks key")
	}
}
