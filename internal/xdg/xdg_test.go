// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/gatekeeper", got)
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config/gatekeeper", got)
}

func TestConfigDir_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	_, err := ConfigDir()
	errutil.AssertErrorCode(t, err, "XDG_NO_HOME")
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/gatekeeper/config.yaml", got)
}
