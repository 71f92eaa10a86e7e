// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

// TB is the part of testing.TB the assertions use.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// asOops fails t unless err carries an oops error.
func asOops(t TB, err error) (oops.OopsError, bool) {
	t.Helper()
	if err == nil {
		t.Errorf("expected an error, got nil")
		t.FailNow()
		return oops.OopsError{}, false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		t.Errorf("expected oops error, got %T: %v", err, err)
		t.FailNow()
	}
	return oopsErr, ok
}

// AssertErrorCode asserts that err is an oops error whose code is code.
// oops reports the innermost code of a wrapped chain.
func AssertErrorCode(t TB, err error, code string) {
	t.Helper()
	if oopsErr, ok := asOops(t, err); ok {
		assert.Equal(t, code, oopsErr.Code(), "error code of %q", err.Error())
	}
}

// AssertErrorContext asserts that err carries key=value in its oops context.
func AssertErrorContext(t TB, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := asOops(t, err)
	if !ok {
		return
	}
	ctx := oopsErr.Context()
	if assert.Contains(t, ctx, key, "error context of %q", err.Error()) {
		assert.Equal(t, value, ctx[key], "error context %q", key)
	}
}
