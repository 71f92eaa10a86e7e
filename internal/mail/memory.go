// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"sync"
)

// MemoryBacklog is a bounded in-process backlog. Messages are lost if the
// process exits before they are delivered.
type MemoryBacklog struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewMemoryBacklog creates a backlog holding at most capacity messages.
func NewMemoryBacklog(capacity int) *MemoryBacklog {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryBacklog{ch: make(chan Message, capacity)}
}

// Push implements Backlog. It never blocks.
func (b *MemoryBacklog) Push(_ context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrQueueClosed
	}
	select {
	case b.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop implements Backlog. After Close it keeps returning buffered
// messages until none are left.
func (b *MemoryBacklog) Pop() (Message, error) {
	msg, ok := <-b.ch
	if !ok {
		return Message{}, errDrained
	}
	return msg, nil
}

// Len returns the number of buffered messages.
func (b *MemoryBacklog) Len() int {
	return len(b.ch)
}

// Close implements Backlog.
func (b *MemoryBacklog) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}
