// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/luxfi/version"

	"github.com/rpretzer/dawn/internal/config"
	"github.com/rpretzer/dawn/internal/identity"
	"github.com/rpretzer/dawn/internal/transport"
	"github.com/rpretzer/dawn/internal/wire"
)

// cliAppVersion is what operator CLI commands (peers, agents) advertise
// when dialing a node. It shares nodeAppVersion's major version so the
// handshake's compatibility check never rejects the CLI against the node
// it ships alongside.
var cliAppVersion = &version.Application{Name: "dawn-node-cli", Major: nodeAppVersion.Major, Minor: 0, Patch: 0}

// callNode opens a short-lived session to the configured node's own
// listen address and issues a single reserved-method request, for CLI
// commands that inspect a running node (peers, agents). Ephemeral
// identities are used for these client connections: the operator CLI
// doesn't need a persistent node_id of its own.
func callNode(configPath, method string, params interface{}) (json.RawMessage, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	clientID, err := identity.New()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := transport.Dial(ctx, cfg.ListenAddress, clientID, cliAppVersion)
	if err != nil {
		return nil, errors.Wrap(err, "client: dial node")
	}
	defer sess.Close()

	req, err := wire.NewRequest(uuid.NewString(), method, params)
	if err != nil {
		return nil, err
	}
	payload, err := wire.Encode(req)
	if err != nil {
		return nil, err
	}
	if err := sess.Send(payload); err != nil {
		return nil, err
	}

	respPayload, err := sess.Receive()
	if err != nil {
		return nil, err
	}
	resp, err := wire.Decode(respPayload)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, errors.Newf("client: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	return resp.Result, nil
}
