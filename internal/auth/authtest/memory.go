// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory implementations of the auth
// repositories and collaborators for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// Store operation names accepted by FailOn.
const (
	OpGetByEmail      = "GetByEmail"
	OpCreateMember    = "Create"
	OpReplacePassword = "ReplacePasswordWithToken"
	OpGrant           = "Grant"
	OpRevoke          = "Revoke"
	OpListByMember    = "ListByMember"
	OpEnsureRole      = "Ensure"
	OpCreateReset     = "CreateForEmail"
	OpDeleteByMember  = "DeleteByMember"
	OpDeleteExpired   = "DeleteExpired"
)

// Store is an in-memory credential store. It implements
// auth.MemberRepository, auth.RoleRepository, auth.PasswordResetRepository
// and auth.Transactor. Transactions are serialized and roll back by
// restoring a snapshot.
type Store struct {
	txMu sync.Mutex

	mu      sync.Mutex
	members map[ulid.ULID]auth.Member
	grants  map[ulid.ULID]auth.RoleSet
	roles   auth.RoleSet
	resets  map[ulid.ULID]auth.PasswordReset
	failOn  map[string]error
	calls   int
}

var (
	_ auth.MemberRepository        = (*Store)(nil)
	_ auth.RoleRepository          = (*Store)(nil)
	_ auth.PasswordResetRepository = (*Store)(nil)
	_ auth.Transactor              = (*Store)(nil)
)

// NewStore returns an empty store that knows the Operator and Banned roles.
func NewStore() *Store {
	return &Store{
		members: make(map[ulid.ULID]auth.Member),
		grants:  make(map[ulid.ULID]auth.RoleSet),
		roles:   auth.NewRoleSet(auth.RoleOperator, auth.RoleBanned),
		resets:  make(map[ulid.ULID]auth.PasswordReset),
		failOn:  make(map[string]error),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

// Calls returns the number of repository calls made so far.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// AddMember stores a member directly, bypassing uniqueness checks.
func (s *Store) AddMember(handle, email, passwordHash string, roles ...auth.Role) auth.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	m := auth.Member{
		ID:           ulid.Make(),
		Handle:       handle,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.members[m.ID] = m
	s.grants[m.ID] = auth.NewRoleSet(roles...)
	m.Roles = s.grants[m.ID].Clone()
	return m
}

// Member returns the stored member with its current roles.
func (s *Store) Member(id ulid.ULID) (auth.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return auth.Member{}, false
	}
	m.Roles = s.grants[id].Clone()
	return m, true
}

// MemberCount returns the number of stored members.
func (s *Store) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// ResetsFor returns the outstanding reset requests of a member.
func (s *Store) ResetsFor(id ulid.ULID) []auth.PasswordReset {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.PasswordReset
	for _, r := range s.resets {
		if r.MemberID == id {
			out = append(out, r)
		}
	}
	return out
}

// enter counts a call and returns the injected error for op, if any.
// Callers must hold mu.
func (s *Store) enter(op string) error {
	s.calls++
	if err := s.failOn[op]; err != nil {
		return oops.With("operation", op).Wrap(err)
	}
	return nil
}

func (s *Store) findByEmail(email string) (auth.Member, bool) {
	for _, m := range s.members {
		if strings.EqualFold(m.Email, email) {
			return m, true
		}
	}
	return auth.Member{}, false
}

// GetByEmail implements auth.MemberRepository.
func (s *Store) GetByEmail(_ context.Context, email string) (*auth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetByEmail); err != nil {
		return nil, err
	}
	m, ok := s.findByEmail(email)
	if !ok {
		return nil, oops.Code("MEMBER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	m.Roles = s.grants[m.ID].Clone()
	return &m, nil
}

// Create implements auth.MemberRepository.
func (s *Store) Create(_ context.Context, member *auth.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateMember); err != nil {
		return err
	}
	for _, m := range s.members {
		if m.Handle == member.Handle || strings.EqualFold(m.Email, member.Email) {
			return oops.Code("MEMBER_CONFLICT").With("handle", member.Handle).Wrap(auth.ErrConflict)
		}
	}
	stored := *member
	stored.Roles = nil
	s.members[member.ID] = stored
	s.grants[member.ID] = auth.RoleSet{}
	return nil
}

// ReplacePasswordWithToken implements auth.MemberRepository.
func (s *Store) ReplacePasswordWithToken(_ context.Context, email, tokenHash, passwordHash string, now time.Time) (ulid.ULID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpReplacePassword); err != nil {
		return ulid.ULID{}, err
	}
	m, ok := s.findByEmail(email)
	if !ok {
		return ulid.ULID{}, oops.Code("MEMBER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	for _, r := range s.resets {
		if r.MemberID == m.ID && r.TokenHash == tokenHash && !r.IsExpiredAt(now) {
			m.PasswordHash = passwordHash
			m.UpdatedAt = now
			s.members[m.ID] = m
			return m.ID, nil
		}
	}
	return ulid.ULID{}, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Grant implements auth.RoleRepository.
func (s *Store) Grant(_ context.Context, memberID ulid.ULID, role auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGrant); err != nil {
		return err
	}
	if _, ok := s.members[memberID]; !ok || !s.roles.Has(role) {
		return oops.Code("MEMBER_ROLE_NOT_FOUND").
			With("member_id", memberID.String()).
			With("role", string(role)).
			Wrap(auth.ErrNotFound)
	}
	s.grants[memberID][role] = struct{}{}
	return nil
}

// Revoke implements auth.RoleRepository.
func (s *Store) Revoke(_ context.Context, memberID ulid.ULID, role auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpRevoke); err != nil {
		return err
	}
	if set, ok := s.grants[memberID]; ok {
		delete(set, role)
	}
	return nil
}

// ListByMember implements auth.RoleRepository.
func (s *Store) ListByMember(_ context.Context, memberID ulid.ULID) (auth.RoleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListByMember); err != nil {
		return nil, err
	}
	return s.grants[memberID].Clone(), nil
}

// Ensure implements auth.RoleRepository.
func (s *Store) Ensure(_ context.Context, role auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpEnsureRole); err != nil {
		return err
	}
	s.roles[role] = struct{}{}
	return nil
}

// CreateForEmail implements auth.PasswordResetRepository.
func (s *Store) CreateForEmail(_ context.Context, email string, reset *auth.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateReset); err != nil {
		return err
	}
	m, ok := s.findByEmail(email)
	if !ok {
		return oops.Code("MEMBER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	reset.MemberID = m.ID
	s.resets[reset.ID] = *reset
	return nil
}

// DeleteByMember implements auth.PasswordResetRepository.
func (s *Store) DeleteByMember(_ context.Context, memberID ulid.ULID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDeleteByMember); err != nil {
		return 0, err
	}
	var n int64
	for id, r := range s.resets {
		if r.MemberID == memberID {
			delete(s.resets, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired implements auth.PasswordResetRepository.
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDeleteExpired); err != nil {
		return 0, err
	}
	var n int64
	for id, r := range s.resets {
		if r.IsExpiredAt(now) {
			delete(s.resets, id)
			n++
		}
	}
	return n, nil
}

type snapshot struct {
	members map[ulid.ULID]auth.Member
	grants  map[ulid.ULID]auth.RoleSet
	resets  map[ulid.ULID]auth.PasswordReset
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		members: make(map[ulid.ULID]auth.Member, len(s.members)),
		grants:  make(map[ulid.ULID]auth.RoleSet, len(s.grants)),
		resets:  make(map[ulid.ULID]auth.PasswordReset, len(s.resets)),
	}
	for k, v := range s.members {
		snap.members[k] = v
	}
	for k, v := range s.grants {
		snap.grants[k] = v.Clone()
	}
	for k, v := range s.resets {
		snap.resets[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = snap.members
	s.grants = snap.grants
	s.resets = snap.resets
}

// InTransaction implements auth.Transactor.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}
