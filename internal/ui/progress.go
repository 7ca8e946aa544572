// Package ui renders batch-check progress in the terminal. The model follows
// the two stages of the check pipeline: a file is read, then compiled.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"tsload/internal/checkrun"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	busyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	idleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type checkModel struct {
	title  string
	events <-chan checkrun.Event

	spin spinner.Model
	bar  progress.Model

	labels []string // по одной метке на файл, в порядке постановки
	paths  []string
	byPath map[string]int

	width    int
	finished int
	done     bool
}

type eventMsg checkrun.Event
type closedMsg struct{}

// NewProgressModel builds the display over the given files; events drive it
// until the channel closes.
func NewProgressModel(title string, files []string, events <-chan checkrun.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyStyle

	byPath := make(map[string]int, len(files))
	labels := make([]string, len(files))
	for i, f := range files {
		byPath[f] = i
		labels[i] = "queued"
	}
	return &checkModel{
		title:  title,
		events: events,
		spin:   sp,
		bar:    progress.New(progress.WithDefaultGradient()),
		labels: labels,
		paths:  files,
		byPath: byPath,
		width:  80,
	}
}

func (m *checkModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.nextEvent())
}

func (m *checkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(checkrun.Event(msg)), m.nextEvent())
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
		return m, nil
	}
	return m, nil
}

func (m *checkModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *checkModel) apply(ev checkrun.Event) tea.Cmd {
	idx, ok := m.byPath[ev.File]
	if !ok {
		return nil
	}
	switch ev.Status {
	case checkrun.StatusWorking:
		if ev.Stage == checkrun.StageCompile {
			m.labels[idx] = "checking"
		} else {
			m.labels[idx] = "reading"
		}
	case checkrun.StatusDone:
		m.labels[idx] = "done"
		m.finished++
	case checkrun.StatusError:
		m.labels[idx] = "error"
		m.finished++
	default:
		return nil
	}
	if len(m.paths) == 0 {
		return nil
	}
	return m.bar.SetPercent(float64(m.finished) / float64(len(m.paths)))
}

func (m *checkModel) View() string {
	if len(m.paths) == 0 {
		return ""
	}
	header := m.title
	if m.done {
		header = "done: " + header
	} else {
		header = m.spin.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := m.width - 14
	if nameWidth < 20 {
		nameWidth = 20
	}
	for i, p := range m.paths {
		label := m.labels[i]
		b.WriteString(fmt.Sprintf("  %s %s\n",
			labelStyle(label).Render(fmt.Sprintf("%8s", label)),
			truncate(p, nameWidth)))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1.0))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	return b.String()
}

func labelStyle(label string) lipgloss.Style {
	switch label {
	case "done":
		return okStyle
	case "error":
		return failStyle
	case "reading", "checking":
		return busyStyle
	}
	return idleStyle
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
