// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authtest

import (
	"context"
	"sync"

	"github.com/holomush/gatekeeper/internal/auth"
)

// Event is an event captured by RecordingClient.
type Event struct {
	Name    string
	Payload any
}

// RecordingClient is an auth.Client that keeps every event it is sent.
type RecordingClient struct {
	mu     sync.Mutex
	events []Event
}

var _ auth.Client = (*RecordingClient)(nil)

// Send implements auth.Client.
func (c *RecordingClient) Send(_ context.Context, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{Name: event, Payload: payload})
	return nil
}

// Events returns a copy of the recorded events in order.
func (c *RecordingClient) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Names returns the recorded event names in order.
func (c *RecordingClient) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.events))
	for i, e := range c.events {
		names[i] = e.Name
	}
	return names
}

// Mail is a message captured by RecordingMailer.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer is an auth.Mailer that keeps every message it accepts.
// When Err is set, Send returns it and records nothing.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []Mail
	err      error
}

var _ auth.Mailer = (*RecordingMailer)(nil)

// FailWith makes later Send calls return err. A nil err clears it.
func (m *RecordingMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Send implements auth.Mailer.
func (m *RecordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, Mail{To: to, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of the accepted messages in order.
func (m *RecordingMailer) Messages() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.messages...)
}
