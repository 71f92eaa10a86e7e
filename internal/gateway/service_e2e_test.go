// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/authtest"
)

func newAuthService(t *testing.T) (*auth.Service, *authtest.Store, *authtest.RecordingMailer) {
	t.Helper()
	store := authtest.NewStore()
	mailer := &authtest.RecordingMailer{}
	svc, err := auth.NewService(store, store, store, store, mailer,
		auth.WithThrottle(auth.NewFixedThrottle(time.Millisecond)))
	require.NoError(t, err)
	return svc, store, mailer
}

func TestGateway_RegisterThenAuthenticate(t *testing.T) {
	svc, _, _ := newAuthService(t)
	c := pipe(t, svc)

	c.request(1, OpRegister, registerArgs{Handle: "alice", Email: "alice@example.com", Password: "H1"})
	ev := c.next()
	assert.Equal(t, auth.EventRegister, ev.Event)
	assert.JSONEq(t, `true`, string(ev.Payload))

	digest := strings.ToUpper(auth.ChallengeDigest(c.uid, "H1"))
	c.request(2, OpAuthenticate, authenticateArgs{Email: "ALICE@example.com", Password: digest})

	ev = c.next()
	assert.Equal(t, auth.EventAuthenticate, ev.Event)
	assert.JSONEq(t, `true`, string(ev.Payload))

	ev = c.next()
	require.Equal(t, auth.EventInfo, ev.Event)
	var profile auth.Profile
	require.NoError(t, json.Unmarshal(ev.Payload, &profile))
	assert.Equal(t, "alice", profile.Handle)
	assert.Equal(t, 0, profile.Roles.Len())
}

func TestGateway_BanRequiresOperatorSession(t *testing.T) {
	svc, store, _ := newAuthService(t)
	store.AddMember("root", "root@example.com", "HR", auth.RoleOperator)
	target := store.AddMember("bob", "bob@example.com", "HB")

	c := pipe(t, svc)

	// Anonymous connections are refused.
	c.request(1, OpBan, memberArgs{MemberID: target.ID.String()})
	assert.Equal(t, errForbidden, c.next().Error)

	c.request(2, OpAuthenticate, authenticateArgs{
		Email:    "root@example.com",
		Password: auth.ChallengeDigest(c.uid, "HR"),
	})
	assert.Equal(t, auth.EventAuthenticate, c.next().Event)
	assert.Equal(t, auth.EventInfo, c.next().Event)

	c.request(3, OpBan, memberArgs{MemberID: target.ID.String()})
	rep := c.next()
	assert.JSONEq(t, `true`, string(rep.Result))

	m, ok := store.Member(target.ID)
	require.True(t, ok)
	assert.True(t, m.Roles.Has(auth.RoleBanned))

	// The banned member is told so on its own connection.
	bob := pipe(t, svc)
	bob.request(1, OpAuthenticate, authenticateArgs{
		Email:    "bob@example.com",
		Password: auth.ChallengeDigest(bob.uid, "HB"),
	})
	assert.Equal(t, auth.EventBanned, bob.next().Event)
	ev := bob.next()
	assert.Equal(t, auth.EventAuthenticate, ev.Event)
	assert.JSONEq(t, `false`, string(ev.Payload))
}

func TestGateway_MalformedBanFromNonOperatorIsForbidden(t *testing.T) {
	svc, store, _ := newAuthService(t)
	c := pipe(t, svc)

	forbidden := auth.RoleChanges.WithLabelValues("ban", auth.RoleChangeForbidden)
	before := testutil.ToFloat64(forbidden)
	calls := store.Calls()

	c.sendLine(`{"id":1,"op":"ban","args":{"member_id":"not-a-ulid"}}`)
	rep := c.next()
	assert.JSONEq(t, `1`, string(rep.ID))
	assert.Equal(t, errForbidden, rep.Error)

	assert.InDelta(t, before+1, testutil.ToFloat64(forbidden), 0)
	assert.Equal(t, calls, store.Calls(), "store must not be touched")
}
