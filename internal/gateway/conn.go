// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// conn is one client connection. It is the auth.Client the service sends
// events to. Requests are handled one at a time, so session is only
// touched by the serving goroutine.
type conn struct {
	nc           net.Conn
	authority    Authority
	logger       *slog.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex
	enc     *json.Encoder

	session auth.ClientSession
}

var _ auth.Client = (*conn)(nil)

func newConn(nc net.Conn, authority Authority, logger *slog.Logger, writeTimeout time.Duration) *conn {
	return &conn{
		nc:           nc,
		authority:    authority,
		logger:       logger,
		writeTimeout: writeTimeout,
		enc:          json.NewEncoder(nc),
	}
}

// Send implements auth.Client.
func (c *conn) Send(_ context.Context, name string, payload any) error {
	return c.write(event{Event: name, Payload: payload})
}

func (c *conn) reply(r reply) {
	if err := c.write(r); err != nil {
		c.logger.Debug("reply write failed", "error", err)
	}
}

func (c *conn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return oops.Code("GATEWAY_WRITE_FAILED").Wrap(err)
		}
	}
	if err := c.enc.Encode(v); err != nil {
		return oops.Code("GATEWAY_WRITE_FAILED").Wrap(err)
	}
	return nil
}

// serve runs the connection until the client disconnects or ctx is done.
func (c *conn) serve(ctx context.Context) {
	defer func() {
		if err := c.nc.Close(); err != nil {
			c.logger.Debug("error closing connection", "error", err)
		}
	}()

	uid, err := auth.NewSessionUID()
	if err != nil {
		c.logger.Error("issuing session uid failed", "error", err)
		return
	}
	c.session = auth.NewClientSession(uid)
	c.logger = c.logger.With("uid", uid)

	if err := c.Send(ctx, auth.EventWelcome, welcomePayload{UID: uid}); err != nil {
		c.logger.Debug("welcome write failed", "error", err)
		return
	}
	c.logger.Debug("connection opened")

	lineCh := make(chan []byte)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		scanner := bufio.NewScanner(c.nc)
		scanner.Buffer(make([]byte, 0, 4096), maxRequestBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lineCh <- line:
			case <-done:
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		errCh <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if errors.Is(err, bufio.ErrTooLong) {
				c.reply(reply{Error: errLineTooLong})
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("connection read error", "error", err)
			}
			c.logger.Debug("connection closed")
			return

		case line := <-lineCh:
			if len(line) == 0 {
				continue
			}
			c.handleLine(ctx, line)
		}
	}
}

func (c *conn) handleLine(ctx context.Context, line []byte) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil || req.Op == "" {
		Requests.WithLabelValues("unknown", StatusInvalid).Inc()
		c.reply(reply{ID: req.ID, Error: errMalformed})
		return
	}
	c.dispatch(ctx, req)
}
