// Package ui renders interactive progress for long check runs.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Phase describes a high-level stage of a run.
type Phase string

const (
	// PhaseLoad is the saved-state restore stage.
	PhaseLoad Phase = "load"
	// PhaseParse is the parsing stage.
	PhaseParse Phase = "parse"
	// PhaseProcess is the import-processing stage.
	PhaseProcess Phase = "process"
	// PhaseCheck is the checking stage.
	PhaseCheck Phase = "check"
	// PhaseSave is the saved-state write stage.
	PhaseSave Phase = "save"
)

// Status captures progress state within a phase.
type Status string

const (
	// StatusQueued indicates the phase is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the phase is running.
	StatusWorking Status = "working"
	// StatusDone indicates the phase finished.
	StatusDone Status = "done"
	// StatusError indicates the phase failed.
	StatusError Status = "error"
)

// Event reports one phase transition. Detail is free text rendered next
// to the phase label ("312 modules", "4 syntax errors").
type Event struct {
	Phase  Phase
	Status Status
	Detail string
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// NopSink drops events.
type NopSink struct{}

func (NopSink) OnEvent(Event) {}

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	prog    progress.Model
	rows    []phaseRow
	index   map[Phase]int
	width   int
	done    bool
}

type phaseRow struct {
	phase  Phase
	status Status
	detail string
}

type eventMsg Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders run progress.
func NewProgressModel(title string, phases []Phase, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76 // Default width

	rows := make([]phaseRow, 0, len(phases))
	index := make(map[Phase]int, len(phases))
	for i, ph := range phases {
		rows = append(rows, phaseRow{phase: ph, status: StatusQueued})
		index[ph] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		rows:    rows,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.rows) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	detailWidth := m.width - statusWidth - 14
	if detailWidth < 20 {
		detailWidth = 20
	}

	for _, row := range m.rows {
		label := statusLabel(row.phase, row.status)
		statusStyled := styleStatus(row.status).Render(fmt.Sprintf("%12s", label))
		line := fmt.Sprintf("  %s %-8s %s", statusStyled, string(row.phase), truncate(row.detail, detailWidth))
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev Event) tea.Cmd {
	idx, ok := m.index[ev.Phase]
	if !ok {
		return nil
	}
	row := &m.rows[idx]
	row.status = ev.Status
	if ev.Detail != "" {
		row.detail = ev.Detail
	}

	// Finished phases count whole, the running one counts half.
	total := 0.0
	for _, r := range m.rows {
		switch r.status {
		case StatusDone, StatusError:
			total += 1.0
		case StatusWorking:
			total += 0.5
		}
	}
	return m.prog.SetPercent(total / float64(len(m.rows)))
}

func statusLabel(phase Phase, status Status) string {
	if status != StatusWorking {
		return string(status)
	}
	switch phase {
	case PhaseLoad:
		return "loading"
	case PhaseParse:
		return "parsing"
	case PhaseProcess:
		return "processing"
	case PhaseCheck:
		return "checking"
	case PhaseSave:
		return "saving"
	default:
		return string(StatusWorking)
	}
}

func styleStatus(status Status) lipgloss.Style {
	switch status {
	case StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
