// Package progress shows a live table of hosts while a run is in flight.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/bubbles/v2/table"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/agent462/corral/internal/executor"
)

var (
	colorGreen  = lipgloss.Color("#04B575")
	colorRed    = lipgloss.Color("#FF4672")
	colorYellow = lipgloss.Color("#FDFF90")
	colorSubtle = lipgloss.Color("#626262")

	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	failStyle  = lipgloss.NewStyle().Foreground(colorRed)
	downStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	helpStyle  = lipgloss.NewStyle().Foreground(colorSubtle)
)

const statusPending = "pending"

// HostDoneMsg reports that a host finished.
type HostDoneMsg struct {
	Result *executor.HostResult
}

// RunDoneMsg reports that every host has a result.
type RunDoneMsg struct{}

type tickMsg time.Time

type entry struct {
	host     string
	status   string
	task     string
	duration time.Duration
}

// Model is the bubbletea model for the progress table.
type Model struct {
	table      table.Model
	entries    []entry
	index      map[string]int
	counts     map[executor.Status]int
	done       int
	started    time.Time
	elapsed    time.Duration
	finished   bool
	cancelling bool
	cancel     context.CancelFunc
}

// New creates a Model for hosts. cancel, if non-nil, is called when the
// user interrupts; the view stays up until the run winds down.
func New(hosts []string, cancel context.CancelFunc) Model {
	entries := make([]entry, len(hosts))
	index := make(map[string]int, len(hosts))
	for i, h := range hosts {
		entries[i] = entry{host: h, status: statusPending}
		index[h] = i
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Host", Width: 24},
			{Title: "Status", Width: 12},
			{Title: "Last task", Width: 28},
			{Title: "Time", Width: 8},
		}),
		table.WithRows(buildRows(entries)),
		table.WithFocused(false),
		table.WithHeight(min(len(hosts), 20)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorSubtle).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return Model{
		table:   t,
		entries: entries,
		index:   index,
		counts:  make(map[executor.Status]int),
		started: time.Now(),
		cancel:  cancel,
	}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil && !m.cancelling {
				m.cancel()
			}
			m.cancelling = true
		}
		return m, nil

	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.elapsed = time.Since(m.started)
		return m, tick()

	case HostDoneMsg:
		m.record(msg.Result)
		return m, nil

	case RunDoneMsg:
		m.finished = true
		m.elapsed = time.Since(m.started)
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) record(r *executor.HostResult) {
	i, ok := m.index[r.Host]
	if !ok || m.entries[i].status != statusPending {
		return
	}
	e := &m.entries[i]
	e.status = r.Status().String()
	e.duration = r.Duration
	if tasks := r.Tasks(); len(tasks) > 0 {
		e.task = tasks[len(tasks)-1].Task
	}
	m.counts[r.Status()]++
	m.done++
	m.table.SetRows(buildRows(m.entries))
}

func (m Model) View() tea.View {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("corral  %d/%d hosts  %s", m.done, len(m.entries), m.elapsed.Round(time.Second))))
	b.WriteString("  ")
	b.WriteString(okStyle.Render(fmt.Sprintf("ok %d", m.counts[executor.StatusOK])))
	b.WriteString("  ")
	b.WriteString(failStyle.Render(fmt.Sprintf("failed %d", m.counts[executor.StatusFailed])))
	b.WriteString("  ")
	b.WriteString(downStyle.Render(fmt.Sprintf("down %d", m.counts[executor.StatusUnreachable])))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	switch {
	case m.finished:
	case m.cancelling:
		b.WriteString(helpStyle.Render("cancelling, waiting for hosts in flight..."))
		b.WriteString("\n")
	default:
		b.WriteString(helpStyle.Render("q/ctrl+c: cancel run"))
		b.WriteString("\n")
	}
	return tea.NewView(b.String())
}

// Done returns the number of hosts with a result.
func (m Model) Done() int { return m.done }

func buildRows(entries []entry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		dur := ""
		if e.status != statusPending {
			dur = e.duration.Round(100 * time.Millisecond).String()
		}
		rows[i] = table.Row{e.host, e.status, e.task, dur}
	}
	return rows
}

// Program drives a Model from executor callbacks.
type Program struct {
	p *tea.Program
}

// NewProgram creates a progress Program writing to w.
func NewProgram(hosts []string, cancel context.CancelFunc, w io.Writer) *Program {
	return &Program{p: tea.NewProgram(New(hosts, cancel), tea.WithOutput(w))}
}

// Observe is an executor observer; it is safe to call from many goroutines.
func (p *Program) Observe(r *executor.HostResult) {
	p.p.Send(HostDoneMsg{Result: r})
}

// Run shows the table until done is closed.
func (p *Program) Run(done <-chan struct{}) error {
	go func() {
		<-done
		p.p.Send(RunDoneMsg{})
	}()
	_, err := p.p.Run()
	return err
}
