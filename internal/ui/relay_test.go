package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestRelaySendNeverBlocks(t *testing.T) {
	r := NewRelay(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			r.Send(ChunkMsg{Samples: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked with nobody reading")
	}
	if got := r.Dropped(); got != 3 {
		t.Fatalf("Dropped() = %d, want 3", got)
	}
}

func TestRelayForwardsInOrder(t *testing.T) {
	r := NewRelay(8)
	for i := 0; i < 3; i++ {
		r.Send(ChunkMsg{Samples: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan tea.Msg, 8)
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx, func(m tea.Msg) { got <- m })
		close(stopped)
	}()

	for i := 0; i < 3; i++ {
		select {
		case m := <-got:
			if c, ok := m.(ChunkMsg); !ok || c.Samples != i {
				t.Fatalf("message %d = %#v", i, m)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d not forwarded", i)
		}
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
