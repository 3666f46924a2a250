package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xlemi/dictation/internal/meter"
)

// Constants for UI behavior
const (
	tickInterval = 100 * time.Millisecond
	meterWidth   = 30
	maxNotices   = 4
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	recordingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#E0245E")).
			Padding(0, 2)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#444444")).
			Padding(0, 2)

	voicedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	quietStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
)

// TickMsg represents a timer tick
type TickMsg time.Time

// KeyboardsMsg reports how many keyboards are watched and for which hotkey.
type KeyboardsMsg struct {
	Count  int
	Hotkey string
}

// StateMsg is sent when a recording session starts or ends.
type StateMsg struct {
	Recording bool
	Session   string
}

// LevelMsg carries the live input level of the session in progress.
type LevelMsg struct {
	Level   meter.Level
	Voiced  bool
	Samples int
	Dropped int
}

// ChunkMsg is sent for each incremental buffer handed downstream.
type ChunkMsg struct {
	Samples int
	Dropped int
}

// ResultMsg summarises a finished session.
type ResultMsg struct {
	Session  string
	Samples  int
	Duration time.Duration
}

// FaultMsg reports a non-fatal failure during a session.
type FaultMsg struct {
	Err error
}

// DeviceLostMsg reports a keyboard that stopped delivering events.
type DeviceLostMsg struct {
	Device    string
	Remaining int
}

// Model represents the UI state
type Model struct {
	keyboards  int
	hotkey     string
	recording  bool
	session    string
	started    time.Time
	now        time.Time
	level      LevelMsg
	chunks     int
	dropped    int
	lastResult *ResultMsg
	notices    []string
	width      int
	height     int
}

// NewModel creates a new UI model
func NewModel() Model {
	return Model{now: time.Now()}
}

// Init initializes the UI model
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case KeyboardsMsg:
		m.keyboards = msg.Count
		m.hotkey = msg.Hotkey

	case StateMsg:
		m.recording = msg.Recording
		if msg.Recording {
			m.session = msg.Session
			m.started = m.now
			m.chunks = 0
			m.dropped = 0
			m.level = LevelMsg{Level: meter.Level{DB: meter.SilenceDB}}
		}

	case LevelMsg:
		if m.recording {
			m.level = msg
			m.dropped = max(m.dropped, msg.Dropped)
		}

	case ChunkMsg:
		m.chunks++
		m.dropped = max(m.dropped, msg.Dropped)

	case ResultMsg:
		r := msg
		m.lastResult = &r

	case FaultMsg:
		m.notice(fmt.Sprintf("error: %v", msg.Err))

	case DeviceLostMsg:
		m.keyboards = msg.Remaining
		m.notice(fmt.Sprintf("keyboard %s disconnected (%d left)", msg.Device, msg.Remaining))
	}

	return m, nil
}

func (m *Model) notice(s string) {
	m.notices = append(m.notices, s)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Dictation"))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf("Hotkey: %s | Keyboards: %d", m.hotkey, m.keyboards)))
	b.WriteString("\n\n")

	if m.recording {
		elapsed := m.now.Sub(m.started).Truncate(100 * time.Millisecond)
		if elapsed < 0 {
			elapsed = 0
		}
		b.WriteString(recordingStyle.Render("● REC " + elapsed.String()))
		b.WriteString("\n\n")
		b.WriteString(levelBar(m.level))
		b.WriteString("\n")
		info := fmt.Sprintf("Chunks: %d", m.chunks)
		if m.dropped > 0 {
			info += fmt.Sprintf(" (%d dropped)", m.dropped)
		}
		b.WriteString(infoStyle.Render(info))
	} else {
		b.WriteString(idleStyle.Render("idle"))
		b.WriteString("\n\n")
		b.WriteString(infoStyle.Render("Hold the hotkey to dictate"))
	}
	b.WriteString("\n")

	if m.lastResult != nil {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("Last: %s (%d samples)",
			m.lastResult.Duration.Truncate(10*time.Millisecond), m.lastResult.Samples)))
		b.WriteString("\n")
	}

	for _, n := range m.notices {
		b.WriteString(warnStyle.Render(n))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(infoStyle.Render("Press q to quit"))
	return b.String()
}

// levelBar draws the dB level from -60 to 0 as a horizontal bar.
func levelBar(l LevelMsg) string {
	frac := (l.Level.DB + 60) / 60
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * meterWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	label := fmt.Sprintf(" %5.1f dB", l.Level.DB)
	if l.Voiced {
		return voicedStyle.Render(bar) + label
	}
	return quietStyle.Render(bar) + label
}
