// Package report renders a finished run for the terminal: an UP, FAILED
// and DOWN section listing each host with its output or error, or a JSON
// document with every task result.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/agent462/corral/internal/executor"
	"github.com/agent462/corral/internal/grouper"
)

const indent = "    "

// Formatter renders a ResultSet.
type Formatter struct {
	Color   bool
	Verbose bool // every task's output, not just the last
	Group   bool // collapse UP hosts with identical output
}

// NewFormatter creates a Formatter with the given options.
func NewFormatter(color, verbose, group bool) *Formatter {
	return &Formatter{Color: color, Verbose: verbose, Group: group}
}

// Format renders the three sections followed by a summary line. Hosts
// appear in inventory order within each section.
func (f *Formatter) Format(rs *executor.ResultSet) string {
	var up, failed, down []*executor.HostResult
	for _, r := range rs.All() {
		switch r.Outcome.(type) {
		case executor.Success:
			up = append(up, r)
		case executor.Failure:
			failed = append(failed, r)
		case executor.Unreachable:
			down = append(down, r)
		}
	}

	var b strings.Builder

	f.header(&b, "UP", upHeader)
	if f.Group && !f.Verbose {
		f.writeGrouped(&b, up)
	} else {
		for _, r := range up {
			f.writeUp(&b, r)
		}
	}

	f.header(&b, "FAILED", failedHeader)
	for _, r := range failed {
		f.writeFailed(&b, r)
	}

	f.header(&b, "DOWN", downHeader)
	for _, r := range down {
		f.hostLine(&b, r.Host, r.Err().Error(), &errorStyle)
	}

	b.WriteString(summaryLine(len(up), len(failed), len(down), rs.Len()))
	b.WriteString("\n")
	return b.String()
}

func (f *Formatter) header(b *strings.Builder, name string, s lipgloss.Style) {
	// Fixed-width banner: "UP ***********", "FAILED *******", "DOWN *********".
	line := name + " " + strings.Repeat("*", 13-len(name))
	b.WriteString(f.style(s, line))
	b.WriteString("\n")
}

// hostLine writes "host >>> text". Multi-line text starts on the next line
// and is indented. A non-nil s styles each line separately.
func (f *Formatter) hostLine(b *strings.Builder, host, text string, s *lipgloss.Style) {
	b.WriteString(f.style(hostStyle, host))
	b.WriteString(" >>>")
	lines := splitOutput(text)
	if s != nil {
		for i, l := range lines {
			lines[i] = f.style(*s, l)
		}
	}
	switch len(lines) {
	case 0:
	case 1:
		b.WriteString(" ")
		b.WriteString(lines[0])
	default:
		for _, l := range lines {
			b.WriteString("\n")
			b.WriteString(indent)
			b.WriteString(l)
		}
	}
	b.WriteString("\n")
}

func (f *Formatter) writeUp(b *strings.Builder, r *executor.HostResult) {
	tasks := r.Tasks()
	if f.Verbose {
		b.WriteString(f.style(hostStyle, r.Host))
		b.WriteString(" >>>\n")
		for _, t := range tasks {
			f.writeTask(b, t)
		}
		return
	}
	var out string
	if len(tasks) > 0 {
		out = string(tasks[len(tasks)-1].Stdout)
	}
	f.hostLine(b, r.Host, out, nil)
}

func (f *Formatter) writeFailed(b *strings.Builder, r *executor.HostResult) {
	tasks := r.Tasks()
	if f.Verbose {
		f.hostLine(b, r.Host, r.Err().Error(), &errorStyle)
		for _, t := range tasks {
			f.writeTask(b, t)
		}
		return
	}

	f.hostLine(b, r.Host, r.Err().Error(), &errorStyle)
	if len(tasks) == 0 {
		return
	}
	last := tasks[len(tasks)-1]
	for _, l := range splitOutput(string(last.Stderr)) {
		b.WriteString(indent)
		b.WriteString(f.style(errorStyle, "stderr: "+l))
		b.WriteString("\n")
	}
}

func (f *Formatter) writeTask(b *strings.Builder, t executor.TaskResult) {
	status := fmt.Sprintf("rc=%d %s", t.ExitCode, t.Duration.Round(time.Millisecond))
	b.WriteString(indent)
	b.WriteString("[" + t.Task + "] ")
	b.WriteString(f.style(subtleStyle, status))
	b.WriteString("\n")
	for _, l := range splitOutput(string(t.Stdout)) {
		b.WriteString(indent + indent)
		b.WriteString(l)
		b.WriteString("\n")
	}
	for _, l := range splitOutput(string(t.Stderr)) {
		b.WriteString(indent + indent)
		b.WriteString(f.style(errorStyle, "stderr: "+l))
		b.WriteString("\n")
	}
	if t.Err != nil {
		for _, l := range splitOutput("error: " + t.Err.Error()) {
			b.WriteString(indent + indent)
			b.WriteString(f.style(errorStyle, l))
			b.WriteString("\n")
		}
	}
}

func (f *Formatter) writeGrouped(b *strings.Builder, up []*executor.HostResult) {
	outputs := make([]grouper.Output, 0, len(up))
	for _, r := range up {
		var stdout []byte
		if tasks := r.Tasks(); len(tasks) > 0 {
			stdout = tasks[len(tasks)-1].Stdout
		}
		outputs = append(outputs, grouper.Output{Host: r.Host, Stdout: stdout})
	}

	for _, g := range grouper.ByOutput(outputs) {
		f.hostLine(b, strings.Join(g.Hosts, ", "), string(g.Stdout), nil)
		if g.IsNorm || g.Diff == "" {
			continue
		}
		for _, l := range splitOutput(g.Diff) {
			b.WriteString(indent)
			b.WriteString(f.diffLine(l))
			b.WriteString("\n")
		}
	}
}

func (f *Formatter) diffLine(l string) string {
	switch {
	case strings.HasPrefix(l, "--- "), strings.HasPrefix(l, "+++ "):
		return f.style(diffHdr, l)
	case strings.HasPrefix(l, "+"):
		return f.style(diffAdd, l)
	case strings.HasPrefix(l, "-"):
		return f.style(diffDel, l)
	default:
		return l
	}
}

func (f *Formatter) style(s lipgloss.Style, text string) string {
	if !f.Color {
		return text
	}
	return s.Render(text)
}

func summaryLine(ok, failed, down, total int) string {
	word := "hosts"
	if total == 1 {
		word = "host"
	}
	return fmt.Sprintf("%d %s: %d ok, %d failed, %d unreachable", total, word, ok, failed, down)
}

// splitOutput splits command output into lines, dropping trailing
// newlines and carriage returns.
func splitOutput(s string) []string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

type jsonTask struct {
	Task     string `json:"task"`
	Command  string `json:"command,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

type jsonHost struct {
	Host     string     `json:"host"`
	Status   string     `json:"status"`
	Duration string     `json:"duration"`
	Error    string     `json:"error,omitempty"`
	Tasks    []jsonTask `json:"tasks"`
}

type jsonReport struct {
	Hosts   []jsonHost     `json:"hosts"`
	Summary map[string]int `json:"summary"`
}

// FormatJSON serializes every host result, in inventory order, with a
// per-status summary.
func (f *Formatter) FormatJSON(rs *executor.ResultSet) ([]byte, error) {
	all := rs.All()
	out := jsonReport{
		Hosts: make([]jsonHost, 0, len(all)),
		Summary: map[string]int{
			executor.StatusOK.String():          0,
			executor.StatusFailed.String():      0,
			executor.StatusUnreachable.String(): 0,
		},
	}

	for _, r := range all {
		h := jsonHost{
			Host:     r.Host,
			Status:   r.Status().String(),
			Duration: r.Duration.String(),
			Tasks:    []jsonTask{},
		}
		if err := r.Err(); err != nil {
			h.Error = err.Error()
		}
		for _, t := range r.Tasks() {
			jt := jsonTask{
				Task:     t.Task,
				Command:  t.Command,
				Stdout:   string(t.Stdout),
				Stderr:   string(t.Stderr),
				ExitCode: t.ExitCode,
				Duration: t.Duration.String(),
			}
			if t.Err != nil {
				jt.Error = t.Err.Error()
			}
			h.Tasks = append(h.Tasks, jt)
		}
		out.Hosts = append(out.Hosts, h)
		out.Summary[h.Status]++
	}

	return json.MarshalIndent(out, "", "  ")
}
