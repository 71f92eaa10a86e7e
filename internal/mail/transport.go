// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Transport delivers a single message.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogTransport writes messages to a logger instead of sending them.
// Useful in development where no SMTP relay exists.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogTransport{logger: logger}
}

// Deliver logs the message envelope. The body is logged at debug level only.
func (t *LogTransport) Deliver(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "mail delivered to log",
		"message_id", msg.ID,
		"to", msg.To,
		"subject", msg.Subject)
	t.logger.DebugContext(ctx, "mail body", "message_id", msg.ID, "body", msg.Body)
	return nil
}

// SMTPConfig configures an SMTPTransport.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

// SMTPTransport relays messages through an SMTP server.
type SMTPTransport struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPTransport creates an SMTPTransport. PLAIN auth is used when a
// username is configured.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("addr", cfg.Addr).Wrap(err)
	}
	if cfg.From == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("from address is required")
	}
	return &SMTPTransport{cfg: cfg, send: smtp.SendMail}, nil
}

// Deliver sends msg. net/smtp has no context support, so ctx only
// short-circuits delivery that has not started yet.
func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context error passthrough
	}

	var auth smtp.Auth
	if t.cfg.Username != "" {
		host, _, _ := net.SplitHostPort(t.cfg.Addr)
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, host)
	}

	if err := t.send(t.cfg.Addr, auth, t.cfg.From, []string{msg.To}, formatMessage(t.cfg.From, msg)); err != nil {
		return oops.Code("SMTP_SEND_FAILED").
			With("message_id", msg.ID).
			With("addr", t.cfg.Addr).
			Wrap(err)
	}
	return nil
}

// formatMessage renders a minimal RFC 5322 text message.
func formatMessage(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", stripCRLF(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", msg.QueuedAt.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@gatekeeper>\r\n", msg.ID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func stripCRLF(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
