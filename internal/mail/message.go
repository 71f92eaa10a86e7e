// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Queue errors.
var (
	// ErrQueueFull is returned by Send when the backlog is at capacity.
	ErrQueueFull = errors.New("mail queue full")
	// ErrQueueClosed is returned by Send after Close.
	ErrQueueClosed = errors.New("mail queue closed")
)

// Message is one outbound mail.
type Message struct {
	ID       string    `json:"id"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(to, subject, body string) Message {
	return Message{
		ID:       ulid.Make().String(),
		To:       strings.TrimSpace(to),
		Subject:  subject,
		Body:     body,
		QueuedAt: time.Now().UTC(),
	}
}
