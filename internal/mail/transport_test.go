// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestNewSMTPTransport_Validation(t *testing.T) {
	_, err := NewSMTPTransport(SMTPConfig{Addr: "no-port", From: "gk@x.com"})
	errutil.AssertErrorCode(t, err, "SMTP_CONFIG_INVALID")

	_, err = NewSMTPTransport(SMTPConfig{Addr: "localhost:25"})
	errutil.AssertErrorCode(t, err, "SMTP_CONFIG_INVALID")

	_, err = NewSMTPTransport(SMTPConfig{Addr: "localhost:25", From: "gk@x.com"})
	require.NoError(t, err)
}

func TestSMTPTransport_Deliver(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{
		Addr:     "mail.example.com:587",
		From:     "gk@example.com",
		Username: "user",
		Password: "secret",
	})
	require.NoError(t, err)

	var (
		gotAddr string
		gotAuth smtp.Auth
		gotFrom string
		gotTo   []string
		gotBody []byte
	)
	tr.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotBody = addr, a, from, to, msg
		return nil
	}

	msg := NewMessage("a@x.com", "Password Reset Request", "Code: abc\nbye")
	require.NoError(t, tr.Deliver(context.Background(), msg))

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "gk@example.com", gotFrom)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	body := string(gotBody)
	assert.Contains(t, body, "Subject: Password Reset Request\r\n")
	assert.Contains(t, body, "To: a@x.com\r\n")
	assert.True(t, strings.HasSuffix(body, "\r\n\r\nCode: abc\r\nbye\r\n"))
}

func TestSMTPTransport_DeliverErrors(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{Addr: "localhost:25", From: "gk@x.com"})
	require.NoError(t, err)

	called := false
	tr.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return errors.New("connection refused")
	}
	err = tr.Deliver(context.Background(), NewMessage("a@x.com", "s", "b"))
	errutil.AssertErrorCode(t, err, "SMTP_SEND_FAILED")
	assert.True(t, called)

	called = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tr.Deliver(ctx, NewMessage("a@x.com", "s", "b"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called, "cancelled delivery must not dial")
}

func TestFormatMessage_StripsHeaderInjection(t *testing.T) {
	msg := NewMessage("a@x.com", "hi\r\nBcc: evil@x.com", "body")
	out := string(formatMessage("gk@x.com", msg))
	assert.NotContains(t, out, "\r\nBcc:")
}

func TestLogTransport_Deliver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tr := NewLogTransport(logger)

	require.NoError(t, tr.Deliver(context.Background(), NewMessage("a@x.com", "Welcome.", "secret body")))
	out := buf.String()
	assert.Contains(t, out, `"to":"a@x.com"`)
	assert.Contains(t, out, `"subject":"Welcome."`)
	assert.NotContains(t, out, "secret body", "body is only logged at debug")
}
