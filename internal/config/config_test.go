// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	require := require.New(t)

	cfg, err := Load("")
	require.NoError(err)
	require.Equal("0.0.0.0:7946", cfg.ListenAddress)
	require.Equal(300, cfg.PeerDeadThresholdSeconds)
	require.Equal(60, cfg.PeerCleanupIntervalSeconds)
}

func TestEnvOverridesDefault(t *testing.T) {
	require := require.New(t)

	t.Setenv("NODE_LISTEN_ADDRESS", "127.0.0.1:9999")
	cfg, err := Load("")
	require.NoError(err)
	require.Equal("127.0.0.1:9999", cfg.ListenAddress)
}

func TestDurationHelpers(t *testing.T) {
	require := require.New(t)

	cfg, err := Load("")
	require.NoError(err)
	require.Equal(float64(300), cfg.PeerDeadThreshold().Seconds())
}
