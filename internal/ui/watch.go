package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/displayhal/internal/display"
)

// SnapshotSource provides the state shown by the watch view.
type SnapshotSource interface {
	Snapshot() display.Snapshot
}

// EventMsg adds a line to the event log.
type EventMsg struct {
	Time time.Time
	Text string
}

type tickMsg time.Time

const maxEvents = 8

var watchColumns = []table.Column{
	{Title: "Display", Width: 30},
	{Title: "Name", Width: 18},
	{Title: "State", Width: 15},
	{Title: "Mode", Width: 22},
	{Title: "Power", Width: 8},
	{Title: "Vsync", Width: 5},
	{Title: "Last vsync", Width: 14},
}

// WatchModel is a live table of the adapter's displays.
type WatchModel struct {
	source   SnapshotSource
	interval time.Duration

	table    table.Model
	spinner  spinner.Model
	snapshot display.Snapshot
	events   []EventMsg
	width    int
	quitting bool
}

// NewWatchModel creates a watch view refreshing every interval.
func NewWatchModel(source SnapshotSource, interval time.Duration) *WatchModel {
	t := table.New(
		table.WithColumns(watchColumns),
		table.WithFocused(true),
		table.WithHeight(6),
	)
	styles := table.DefaultStyles()
	styles.Header = TableHeaderStyle
	styles.Selected = TableSelectedStyle
	styles.Cell = TableCellStyle
	t.SetStyles(styles)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := &WatchModel{
		source:   source,
		interval: interval,
		table:    t,
		spinner:  s,
	}
	m.refresh()
	return m
}

func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

// Update implements tea.Model
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetWidth(msg.Width)
		if h := msg.Height - 16; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case EventMsg:
		m.events = append(m.events, msg)
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) refresh() {
	m.snapshot = m.source.Snapshot()
	rows := make([]table.Row, 0, len(m.snapshot.Displays))
	for _, d := range m.snapshot.Displays {
		rows = append(rows, displayRow(d))
	}
	m.table.SetRows(rows)
}

func displayRow(d display.DisplaySnapshot) table.Row {
	state := d.State
	if d.Virtual {
		state = "virtual"
	}
	mode := "-"
	if d.ActiveMode >= 0 && d.ActiveMode < len(d.Modes) {
		am := d.Modes[d.ActiveMode]
		mode = fmt.Sprintf("%dx%d@%.0fHz", am.Width, am.Height, am.RefreshRate)
	} else if d.Virtual {
		mode = fmt.Sprintf("%dx%d", d.Width, d.Height)
	}
	power := d.PowerMode
	if power == "" {
		power = "-"
	}
	vsync := "off"
	if d.VsyncEnabled {
		vsync = "on"
	}
	last := "-"
	if d.HaveVsync {
		last = fmt.Sprintf("%d", d.LastVsync)
	}
	return table.Row{d.ID.String(), d.Name, state, mode, power, vsync, last}
}

// Rows returns the rows currently displayed.
func (m *WatchModel) Rows() []table.Row {
	return m.table.Rows()
}

// Events returns the retained event log.
func (m *WatchModel) Events() []EventMsg {
	return m.events
}

// View implements tea.Model
func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	title := TitleStyle.Render("displayhal watch")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, title, " ", m.spinner.View()))
	b.WriteString("\n\n")
	b.WriteString(FormatField("multi-display mode", m.snapshot.MultiDisplayMode) + "\n")
	b.WriteString(FormatField("virtual displays", fmt.Sprintf("%d/%d", m.snapshot.VirtualInUse, m.snapshot.VirtualCapacity)) + "\n\n")
	b.WriteString(BoxStyle.Render(m.table.View()))
	b.WriteString("\n")

	if row := m.table.SelectedRow(); row != nil {
		for _, d := range m.snapshot.Displays {
			if d.ID.String() == row[0] {
				b.WriteString(m.details(d))
				break
			}
		}
	}

	b.WriteString("\n" + SubheaderStyle.Render("Events") + "\n")
	if len(m.events) == 0 {
		b.WriteString(SubtleStyle.Render("  none yet") + "\n")
	}
	for _, e := range m.events {
		b.WriteString(SubtleStyle.Render(e.Time.Format("15:04:05.000")) + " " + TextStyle.Render(e.Text) + "\n")
	}

	b.WriteString("\n" + FormatControl("↑/↓", "Select") + "  " + FormatControl("q", "Quit"))
	return b.String()
}

func (m *WatchModel) details(d display.DisplaySnapshot) string {
	var b strings.Builder
	b.WriteString(FormatField("state", FormatState(d.State, d.Virtual)) + "\n")
	if !d.Virtual {
		b.WriteString(FormatField("connection", d.ConnectionType) + "\n")
	}
	b.WriteString(FormatField("present fence", d.PresentFence) + "\n")
	b.WriteString(FormatField("release fences", fmt.Sprintf("%d", d.ReleaseFences)) + "\n")
	if d.ValidateWasSkipped {
		b.WriteString(FormatField("validate", InfoStyle.Render("skipped")) + "\n")
	}
	if d.PresentError != "" {
		b.WriteString(FormatField("present error", ErrorStyle.Render(d.PresentError)) + "\n")
	}
	return b.String()
}
