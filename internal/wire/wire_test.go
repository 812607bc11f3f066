// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseMethodForward(t *testing.T) {
	require := require.New(t)

	m := ParseMethod("node-abc:coordination/ping")
	require.Equal(MethodForward, m.Kind)
	require.Equal("node-abc", m.NodeID)
	require.Equal("coordination", m.AgentID)
	require.Equal("ping", m.Op)
}

func TestParseMethodLocal(t *testing.T) {
	require := require.New(t)

	m := ParseMethod("coordination/ping")
	require.Equal(MethodLocal, m.Kind)
	require.Equal("coordination", m.AgentID)
	require.Equal("ping", m.Op)
}

func TestParseMethodReserved(t *testing.T) {
	require := require.New(t)

	for _, raw := range []string{"node/list_peers", "tools/list", "resources/list", "prompts/list", "llm_get_config"} {
		m := ParseMethod(raw)
		require.Equalf(MethodReserved, m.Kind, "method %q", raw)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	require := require.New(t)

	req, err := NewRequest("req-1", "coordination/ping", map[string]string{"echo": "hi"})
	require.NoError(err)
	require.True(req.IsRequest())

	data, err := Encode(req)
	require.NoError(err)

	decoded, err := Decode(data)
	require.NoError(err)
	require.Equal(req.Method, decoded.Method)
	require.Equal(*req.ID, *decoded.ID)
}

func TestDecodeAnyBatch(t *testing.T) {
	require := require.New(t)

	req1, err := NewRequest("1", "a/op", nil)
	require.NoError(err)
	req2, err := NewRequest("2", "b/op", nil)
	require.NoError(err)

	data, err := EncodeBatch(Batch{req1, req2})
	require.NoError(err)

	batch, err := DecodeAny(data)
	require.NoError(err)
	require.Len(batch, 2)
}

func TestCorrelatorCompletesOnMatchingResponse(t *testing.T) {
	require := require.New(t)

	c := NewCorrelator()
	ch := c.Register("req-1", time.Second)

	resp, err := NewResult("req-1", map[string]string{"ok": "true"})
	require.NoError(err)

	require.True(c.Complete(resp))

	select {
	case got := <-ch:
		require.Equal("req-1", *got.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for correlated response")
	}
	require.Equal(0, c.Pending())
}

func TestCorrelatorTimesOut(t *testing.T) {
	require := require.New(t)

	c := NewCorrelator()
	ch := c.Register("req-2", 10*time.Millisecond)

	select {
	case got := <-ch:
		require.NotNil(got.Error)
		require.Equal(CodeInternalError, got.Error.Code)
	case <-time.After(time.Second):
		t.Fatal("expected timeout frame")
	}
}

func TestCorrelatorCompleteUnknownIDReturnsFalse(t *testing.T) {
	require := require.New(t)

	c := NewCorrelator()
	resp, err := NewResult("unknown", nil)
	require.NoError(err)
	require.False(c.Complete(resp))
}
