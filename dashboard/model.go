// Package dashboard renders the reconciled fleet view in the terminal and
// forwards operator actions (add, remove) to the controllers.
package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lagren/fleetwatch/format"
	"github.com/lagren/fleetwatch/reconciler"
	"github.com/lagren/fleetwatch/status"
)

// Fleet is the read and remove side of the reconciler.
type Fleet interface {
	Snapshot() reconciler.Snapshot
	RemoveHost(host string) <-chan error
}

// Registrar is the registration controller.
type Registrar interface {
	SetPending(host string)
	Pending() string
	LastError() string
	AddHost(ctx context.Context, host string) error
}

type eventMsg struct {
	event reconciler.Event
}

type addedMsg struct {
	host string
	err  error
}

type removedMsg struct {
	host string
	err  error
}

// Model implements tea.Model.
type Model struct {
	fleet     Fleet
	registrar Registrar
	events    <-chan reconciler.Event
	timeout   time.Duration

	input     textinput.Model
	snapshot  reconciler.Snapshot
	showDead  bool
	cursor    int
	adding    bool
	lastError string
	width     int

	keys   KeyMap
	styles styles
}

// NewModel builds the dashboard. events is normally a reconciler
// subscription; the model starts from fleet's current snapshot.
func NewModel(fleet Fleet, registrar Registrar, events <-chan reconciler.Event, requestTimeout time.Duration) Model {
	input := textinput.New()
	input.Placeholder = "host[:port]"
	input.Prompt = "add host> "
	input.SetValue(registrar.Pending())
	input.Focus()

	return Model{
		fleet:     fleet,
		registrar: registrar,
		events:    events,
		timeout:   requestTimeout,
		input:     input,
		snapshot:  fleet.Snapshot(),
		showDead:  true,
		lastError: registrar.LastError(),
		keys:      DefaultKeyMap,
		styles:    newStyles(DefaultTheme),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listen(m.events))
}

// listen blocks until the next reconciler event arrives.
func listen(events <-chan reconciler.Event) tea.Cmd {
	if events == nil {
		return nil
	}

	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case eventMsg:
		m.snapshot = msg.event.Snapshot
		m.clampCursor()
		return m, listen(m.events)

	case addedMsg:
		m.adding = false
		m.lastError = m.registrar.LastError()
		m.input.SetValue(m.registrar.Pending())
		m.input.CursorEnd()
		return m, nil

	case removedMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Add):
		host := strings.TrimSpace(m.input.Value())
		m.registrar.SetPending(host)
		m.adding = true
		return m, m.addHost(host)

	case key.Matches(msg, m.keys.ToggleDead):
		m.showDead = !m.showDead
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Remove):
		rows := m.rows()
		if len(rows) == 0 {
			return m, nil
		}

		host := rows[m.cursor]
		done := m.fleet.RemoveHost(host)
		m.snapshot = m.fleet.Snapshot()
		m.clampCursor()

		return m, func() tea.Msg {
			return removedMsg{host: host, err: <-done}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.registrar.SetPending(m.input.Value())

	return m, cmd
}

func (m Model) addHost(host string) tea.Cmd {
	registrar, timeout := m.registrar, m.timeout

	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		return addedMsg{host: host, err: registrar.AddHost(ctx, host)}
	}
}

// rows lists selectable hosts: alive first, then dead when shown.
func (m Model) rows() []string {
	rows := m.snapshot.AliveHosts()
	if m.showDead {
		rows = append(rows, m.snapshot.DeadHosts()...)
	}

	return rows
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render("fleetwatch"))
	if !m.snapshot.LastPoll.IsZero() {
		b.WriteString(m.styles.faint.Render("  updated " + humanize.Time(m.snapshot.LastPoll)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	if m.adding {
		b.WriteString(m.styles.faint.Render("  adding..."))
	}
	b.WriteString("\n")

	if m.lastError != "" {
		b.WriteString(m.styles.err.Render("error: " + m.lastError))
	}
	b.WriteString("\n\n")

	alive := m.snapshot.AliveHosts()
	dead := m.snapshot.DeadHosts()

	b.WriteString(m.styles.section.Render(fmt.Sprintf("Alive (%d)", len(alive))))
	b.WriteString("\n")
	m.renderHosts(&b, alive, m.snapshot.Alive, 0, m.styles.alive)

	if m.showDead {
		b.WriteString("\n")
		b.WriteString(m.styles.section.Render(fmt.Sprintf("Dead (%d)", len(dead))))
		b.WriteString("\n")
		m.renderHosts(&b, dead, m.snapshot.Dead, len(alive), m.styles.dead)
	} else {
		b.WriteString(m.styles.faint.Render(fmt.Sprintf("\n%d dead hosts hidden\n", len(dead))))
	}

	b.WriteString("\n")
	help := make([]string, 0, len(m.keys.help()))
	for _, binding := range m.keys.help() {
		h := binding.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(m.styles.faint.Render(strings.Join(help, " · ")))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderHosts(b *strings.Builder, hosts []string, records map[string]*status.Record, offset int, style lipgloss.Style) {
	if len(hosts) == 0 {
		b.WriteString(m.styles.faint.Render("  none"))
		b.WriteString("\n")
		return
	}

	for i, host := range hosts {
		line := "  " + style.Render(fmt.Sprintf("%-32s", host)) + " " + summary(records[host])
		if offset+i == m.cursor {
			line = m.styles.selected.Render(line)
		}
		if m.width > 0 {
			line = lipgloss.NewStyle().MaxWidth(m.width).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// summary renders the reported fields of a record, skipping the ones that
// are shown elsewhere.
func summary(rec *status.Record) string {
	if rec == nil {
		return ""
	}

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		switch name {
		case "Alive", "Host":
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		v := fieldValue(name, rec.Fields[name])
		if v == "" {
			continue
		}
		parts = append(parts, name+"="+v)
	}

	return strings.Join(parts, " ")
}

func fieldValue(name string, v any) string {
	if strings.HasSuffix(name, "Bytes") {
		if s, ok := format.Value(v); ok {
			return s
		}
	}

	switch v := v.(type) {
	case nil:
		return ""
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			if t.IsZero() {
				return ""
			}
			return humanize.Time(t)
		}
		return v
	case float64:
		return humanize.Ftoa(v)
	case map[string]any:
		return "{" + summary(&status.Record{Fields: v}) + "}"
	}

	return fmt.Sprint(v)
}
