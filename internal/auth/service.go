// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

var tracer = otel.Tracer("gatekeeper/auth")

// Mail subjects and bodies.
const (
	welcomeSubject      = "Welcome."
	welcomeBody         = "Thanks for registering."
	resetRequestSubject = "Password Reset Request"
	resetDoneSubject    = "Password Reset"
	resetDoneBody       = "Success"
)

// Service implements the authentication operations: challenge-response
// verification, registration, the password reset workflow and role changes.
// It is safe for concurrent use; all state lives in the store.
type Service struct {
	members  MemberRepository
	roles    RoleRepository
	resets   PasswordResetRepository
	tx       Transactor
	mailer   Mailer
	throttle Throttle
	logger   *slog.Logger

	resetTokenBytes int
	resetTokenTTL   time.Duration
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithThrottle replaces the failure throttle. Defaults to a FixedThrottle
// of DefaultThrottleDelay.
func WithThrottle(t Throttle) Option {
	return func(s *Service) {
		if t != nil {
			s.throttle = t
		}
	}
}

// WithResetTokenBytes sets the random byte count of reset tokens.
func WithResetTokenBytes(n int) Option {
	return func(s *Service) {
		s.resetTokenBytes = n
	}
}

// WithResetTokenTTL sets how long a reset token stays redeemable.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.resetTokenTTL = ttl
	}
}

// WithClock overrides the time source used for reset expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. All collaborators are required.
func NewService(
	members MemberRepository,
	roles RoleRepository,
	resets PasswordResetRepository,
	tx Transactor,
	mailer Mailer,
	opts ...Option,
) (*Service, error) {
	if members == nil {
		return nil, oops.Errorf("member repository is required")
	}
	if roles == nil {
		return nil, oops.Errorf("role repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("password reset repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}

	s := &Service{
		members:         members,
		roles:           roles,
		resets:          resets,
		tx:              tx,
		mailer:          mailer,
		throttle:        NewFixedThrottle(DefaultThrottleDelay),
		logger:          slog.New(slog.DiscardHandler),
		resetTokenBytes: DefaultResetTokenBytes,
		resetTokenTTL:   DefaultResetTokenTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.resetTokenBytes < MinResetTokenBytes || s.resetTokenBytes > MaxResetTokenBytes {
		return nil, oops.With("token_bytes", s.resetTokenBytes).
			Errorf("reset token bytes must be between %d and %d", MinResetTokenBytes, MaxResetTokenBytes)
	}
	if s.resetTokenTTL <= 0 {
		return nil, oops.With("token_ttl", s.resetTokenTTL.String()).
			Errorf("reset token ttl must be positive")
	}
	return s, nil
}

// Authenticate verifies a challenge digest for the member with email.
//
// The digest must equal hex(SHA256(session.UID || stored password hash)).
// Every failure, including unknown email, banned member and store errors,
// is delayed by the throttle before the client is told. The client receives
// auth.banned (banned members only), then auth.authenticate, then auth.info
// on success. The returned session reflects the outcome.
func (s *Service) Authenticate(ctx context.Context, client Client, session ClientSession, email, digest string) (ClientSession, bool) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "auth.authenticate")
	defer span.End()

	profile, result := s.verify(ctx, client, session.UID, email, digest)
	ok := result == AuthResultSuccess
	if ok {
		session = session.WithAuthenticated(profile)
		span.SetAttributes(attribute.String("member.id", profile.ID.String()))
	} else {
		s.throttle.Wait(ctx)
		session = session.WithoutAuthentication()
	}

	span.SetAttributes(attribute.String("auth.result", result))
	recordAuthAttempt(result, time.Since(start))

	s.send(ctx, client, EventAuthenticate, ok)
	if ok {
		s.send(ctx, client, EventInfo, profile)
	}
	return session, ok
}

// verify checks the credentials and returns the member profile and the
// attempt's result label.
func (s *Service) verify(ctx context.Context, client Client, uid, email, digest string) (Profile, string) {
	email = strings.TrimSpace(email)
	if uid == "" || email == "" || digest == "" {
		s.logger.DebugContext(ctx, "authentication rejected: missing credentials")
		return Profile{}, AuthResultFailure
	}

	member, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "authentication failed: unknown email")
			return Profile{}, AuthResultFailure
		}
		errutil.LogError(ctx, s.logger, "authentication lookup failed",
			oops.Code("AUTH_LOOKUP_FAILED").With("operation", "get member by email").Wrap(err))
		return Profile{}, AuthResultError
	}

	if !VerifyChallenge(uid, member.PasswordHash, digest) {
		s.logger.DebugContext(ctx, "authentication failed: digest mismatch",
			"member_id", member.ID.String())
		return Profile{}, AuthResultFailure
	}

	if member.Roles.Has(RoleBanned) {
		s.logger.InfoContext(ctx, "authentication refused for banned member",
			"member_id", member.ID.String())
		s.send(ctx, client, EventBanned, nil)
		return Profile{}, AuthResultBanned
	}

	return member.Profile(), AuthResultSuccess
}

// Register creates a member account.
//
// handle, email and passwordHash must be non-empty; passwordHash is stored
// as given. On success the session carries the new member id but is not
// authenticated, and a welcome mail is queued. The client always receives
// exactly one auth.register event.
func (s *Service) Register(ctx context.Context, client Client, session ClientSession, handle, email, passwordHash string) (ClientSession, bool) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer span.End()

	ok := false
	result := RegisterResultCreated
	member, err := NewMember(handle, email, passwordHash)
	switch {
	case err != nil:
		result = RegisterResultInvalid
		s.logger.DebugContext(ctx, "registration rejected", "error", err.Error())
	default:
		err = s.members.Create(ctx, member)
		switch {
		case err == nil:
			ok = true
			session = session.WithMember(member.ID)
			s.mail(ctx, member.Email, welcomeSubject, welcomeBody)
			s.logger.InfoContext(ctx, "member registered", "member_id", member.ID.String())
		case errors.Is(err, ErrConflict):
			result = RegisterResultConflict
			s.logger.InfoContext(ctx, "registration conflict", "handle", member.Handle)
		default:
			result = RegisterResultError
			errutil.LogError(ctx, s.logger, "registration failed",
				oops.Code("AUTH_REGISTER_FAILED").With("operation", "create member").Wrap(err))
		}
	}

	span.SetAttributes(attribute.String("auth.result", result))
	recordRegistration(result)
	s.send(ctx, client, EventRegister, ok)
	return session, ok
}

// send delivers an event to client. Delivery failures mean the connection
// is gone and are only logged.
func (s *Service) send(ctx context.Context, client Client, event string, payload any) {
	if client == nil {
		return
	}
	if err := client.Send(ctx, event, payload); err != nil {
		s.logger.DebugContext(ctx, "event delivery failed", "event", event, "error", err.Error())
	}
}

// mail queues a message and reports whether it was accepted.
func (s *Service) mail(ctx context.Context, to, subject, body string) bool {
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		errutil.LogWarn(ctx, s.logger, "mail not queued",
			oops.Code("MAIL_ENQUEUE_FAILED").With("subject", subject).Wrap(err))
		return false
	}
	return true
}
