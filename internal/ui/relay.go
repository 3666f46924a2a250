package ui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// Relay buffers messages for a program so senders never wait on the
// render loop. Messages arriving while the buffer is full are dropped.
type Relay struct {
	msgs    chan tea.Msg
	dropped atomic.Int64
}

// NewRelay creates a relay holding up to size pending messages
func NewRelay(size int) *Relay {
	if size < 1 {
		size = 1
	}
	return &Relay{msgs: make(chan tea.Msg, size)}
}

// Send queues msg without blocking
func (r *Relay) Send(msg any) {
	select {
	case r.msgs <- msg:
	default:
		r.dropped.Add(1)
	}
}

// Run forwards queued messages to send until ctx is done
func (r *Relay) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.msgs:
			send(msg)
		}
	}
}

// Dropped returns how many messages were discarded
func (r *Relay) Dropped() int64 {
	return r.dropped.Load()
}
