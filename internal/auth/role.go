// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Role is a named permission tag granted to a member.
type Role string

// Well-known roles.
const (
	// RoleOperator confers administrative capability (ban/unban).
	RoleOperator Role = "Operator"

	// RoleBanned blocks authentication even with valid credentials.
	RoleBanned Role = "Banned"
)

// RoleSet is an unordered set of roles. A nil RoleSet is a valid empty set.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles. Empty names are skipped.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// ParseRoleList splits a comma-joined role list as produced by the store's
// aggregate query. Whitespace around names is ignored.
func ParseRoleList(list string) RoleSet {
	set := RoleSet{}
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		set[Role(name)] = struct{}{}
	}
	return set
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Len returns the number of roles.
func (s RoleSet) Len() int {
	return len(s)
}

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Equal reports whether both sets contain exactly the same roles.
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}

// Sorted returns the roles in lexical order.
func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array so payloads are stable.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // encoding/json passthrough
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of role names.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []Role
	if err := json.Unmarshal(data, &names); err != nil {
		return err //nolint:wrapcheck // encoding/json passthrough
	}
	*s = NewRoleSet(names...)
	return nil
}

// RoleRepository manages role grants.
type RoleRepository interface {
	// Grant associates the named role with a member. Granting a role the
	// member already holds is not an error.
	// Returns ErrNotFound if the member does not exist.
	Grant(ctx context.Context, memberID ulid.ULID, role Role) error

	// Revoke removes the named role from a member. Revoking a role the
	// member does not hold is not an error.
	Revoke(ctx context.Context, memberID ulid.ULID, role Role) error

	// ListByMember returns the roles currently granted to a member.
	ListByMember(ctx context.Context, memberID ulid.ULID) (RoleSet, error)

	// Ensure creates the role if it does not exist yet.
	Ensure(ctx context.Context, role Role) error
}
