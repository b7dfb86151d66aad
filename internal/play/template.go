package play

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Capture holds the registered output of a completed task.
type Capture struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Vars maps register names to captured task output.
type Vars map[string]Capture

// TemplateError reports a reference to a name (or field) that no earlier
// task registered.
type TemplateError struct {
	Ref    string // the reference as written, e.g. "shell_out.stdout"
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template: %s: %s", e.Ref, e.Reason)
}

// refRe matches {{ name }} and {{ name.field }} with optional inner spaces.
var refRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)(?:\.([A-Za-z_]+))?\s*\}\}`)

// Render substitutes captured output into text. A bare {{name}} expands to
// the captured stdout with trailing newlines removed; {{name.stdout}},
// {{name.stderr}} and {{name.rc}} select a field. The first unresolvable
// reference aborts rendering with a *TemplateError.
func Render(text string, vars Vars) (string, error) {
	var renderErr error
	out := refRe.ReplaceAllStringFunc(text, func(m string) string {
		if renderErr != nil {
			return m
		}
		sub := refRe.FindStringSubmatch(m)
		name, field := sub[1], sub[2]
		ref := name
		if field != "" {
			ref = name + "." + field
		}

		c, ok := vars[name]
		if !ok {
			renderErr = &TemplateError{Ref: ref, Reason: "undefined variable"}
			return m
		}
		switch field {
		case "", "stdout":
			return strings.TrimRight(c.Stdout, "\r\n")
		case "stderr":
			return strings.TrimRight(c.Stderr, "\r\n")
		case "rc":
			return strconv.Itoa(c.ExitCode)
		default:
			renderErr = &TemplateError{Ref: ref, Reason: "unknown field (want stdout, stderr or rc)"}
			return m
		}
	})
	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}

// References returns the distinct register names referenced in text, in
// order of first appearance.
func References(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, sub := range refRe.FindAllStringSubmatch(text, -1) {
		if !seen[sub[1]] {
			seen[sub[1]] = true
			names = append(names, sub[1])
		}
	}
	return names
}
