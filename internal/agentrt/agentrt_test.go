// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package agentrt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterToolValidatesArgs(t *testing.T) {
	require := require.New(t)

	a := NewAgent("test-agent", "Test")
	schema := []byte(`{"type":"object","properties":{"n":{"type":"integer"}},"required":["n"]}`)
	err := a.RegisterTool("double", "doubles n", schema, func(_ context.Context, args json.RawMessage) (interface{}, error) {
		var in struct{ N int }
		require.NoError(json.Unmarshal(args, &in))
		return in.N * 2, nil
	})
	require.NoError(err)

	result, err := a.CallTool(context.Background(), "double", json.RawMessage(`{"n":21}`))
	require.NoError(err)
	require.Equal(42, result)

	_, err = a.CallTool(context.Background(), "double", json.RawMessage(`{}`))
	require.Error(err)
}

func TestCallUnknownTool(t *testing.T) {
	require := require.New(t)

	a := NewAgent("test-agent", "Test")
	_, err := a.CallTool(context.Background(), "missing", nil)
	require.ErrorIs(err, ErrUnknownTool)
}

func TestRenderPromptSubstitution(t *testing.T) {
	require := require.New(t)

	a := NewAgent("test-agent", "Test")
	a.RegisterPrompt("greet", "", "Hi {{name}}, welcome to {{place}}!", []string{"name", "place"})

	out, err := a.RenderPrompt("greet", map[string]string{"name": "Ada", "place": "Dawn"})
	require.NoError(err)
	require.Equal("Hi Ada, welcome to Dawn!", out)
}

func TestRenderPromptLeavesUnknownPlaceholder(t *testing.T) {
	require := require.New(t)

	a := NewAgent("test-agent", "Test")
	a.RegisterPrompt("greet", "", "Hi {{name}}!", nil)

	out, err := a.RenderPrompt("greet", map[string]string{})
	require.NoError(err)
	require.Equal("Hi {{name}}!", out)
}

func TestCoordinationAgentPing(t *testing.T) {
	require := require.New(t)

	a, err := NewCoordinationAgent("node-a")
	require.NoError(err)

	result, err := a.CallTool(context.Background(), "ping", json.RawMessage(`{"echo":"hi"}`))
	require.NoError(err)

	m := result.(map[string]string)
	require.Equal("hi", m["echo"])
	require.Equal("node-a", m["node_id"])
}

func TestChatUnsupportedByDefault(t *testing.T) {
	require := require.New(t)

	a := NewAgent("test-agent", "Test")
	_, err := a.Converse(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.ErrorIs(err, ErrChatUnsupported)
}
