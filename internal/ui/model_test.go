package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xlemi/dictation/internal/meter"
)

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestSessionLifecycle(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := update(t, NewModel(),
		TickMsg(start),
		KeyboardsMsg{Count: 2, Hotkey: "Control_L+space"},
	)

	view := m.View()
	if !strings.Contains(view, "Control_L+space") || !strings.Contains(view, "Keyboards: 2") {
		t.Fatalf("header missing from view:\n%s", view)
	}
	if !strings.Contains(view, "idle") {
		t.Fatalf("expected idle state:\n%s", view)
	}

	m = update(t, m,
		StateMsg{Recording: true, Session: "abc"},
		TickMsg(start.Add(1500*time.Millisecond)),
		LevelMsg{Level: meter.Level{DB: -12}, Voiced: true, Samples: 24000},
		ChunkMsg{Samples: 16000},
	)
	view = m.View()
	if !strings.Contains(view, "REC 1.5s") {
		t.Fatalf("expected elapsed time in view:\n%s", view)
	}
	if !strings.Contains(view, "-12.0 dB") || !strings.Contains(view, "Chunks: 1") {
		t.Fatalf("expected level and chunks in view:\n%s", view)
	}

	m = update(t, m,
		StateMsg{Recording: false},
		ResultMsg{Session: "abc", Samples: 32000, Duration: 2 * time.Second},
	)
	view = m.View()
	if !strings.Contains(view, "Last: 2s (32000 samples)") {
		t.Fatalf("expected last result:\n%s", view)
	}
}

func TestLevelIgnoredWhenIdle(t *testing.T) {
	m := update(t, NewModel(), LevelMsg{Level: meter.Level{DB: -3}})
	if m.level.Level.DB != 0 {
		t.Fatalf("idle model stored level %+v", m.level)
	}
}

func TestNewSessionResetsCounters(t *testing.T) {
	m := update(t, NewModel(),
		StateMsg{Recording: true},
		ChunkMsg{Dropped: 2},
		ChunkMsg{Dropped: 3},
		StateMsg{Recording: false},
		StateMsg{Recording: true},
	)
	if m.chunks != 0 || m.dropped != 0 {
		t.Fatalf("counters not reset: chunks=%d dropped=%d", m.chunks, m.dropped)
	}
}

func TestNoticesAreBounded(t *testing.T) {
	m := NewModel()
	for i := 0; i < 10; i++ {
		m = update(t, m, FaultMsg{Err: errors.New("chunk callback panicked")})
	}
	m = update(t, m, DeviceLostMsg{Device: "AT keyboard", Remaining: 0})

	if len(m.notices) != maxNotices {
		t.Fatalf("len(notices) = %d, want %d", len(m.notices), maxNotices)
	}
	if m.keyboards != 0 {
		t.Fatalf("keyboards = %d", m.keyboards)
	}
	if !strings.Contains(m.View(), "AT keyboard disconnected") {
		t.Fatalf("device loss not shown:\n%s", m.View())
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := NewModel().Update(key)
		if cmd == nil {
			t.Fatalf("%q did not return a command", key.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%q did not quit", key.String())
		}
	}
}

func TestLevelBarClamps(t *testing.T) {
	for _, db := range []float64{meter.SilenceDB, -30, 0, 12} {
		bar := levelBar(LevelMsg{Level: meter.Level{DB: db}})
		if n := strings.Count(bar, "█") + strings.Count(bar, "░"); n != meterWidth {
			t.Fatalf("bar at %.0f dB has %d cells, want %d", db, n, meterWidth)
		}
	}
}
