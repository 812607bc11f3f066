// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package discovery finds other nodes in the mesh three ways: an explicit
// bootstrap address list dialed with retry backoff, local-network
// multicast advertisement/browsing, and periodic gossip exchange with
// already-known peers.
package discovery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"
)

// DialFunc attempts to connect to a bootstrap address, returning the
// remote's node_id on success. Supplied by the router so discovery stays
// decoupled from the transport package.
type DialFunc func(ctx context.Context, address string) (nodeID string, err error)

// Bootstrap dials a fixed list of seed addresses with exponential backoff,
// stopping each address's retry loop once it succeeds once (subsequent
// reachability is then peer registry's and gossip's job).
type Bootstrap struct {
	addresses []string
	dial      DialFunc
	log       log.Logger
}

// NewBootstrap constructs a Bootstrap over the given seed addresses.
func NewBootstrap(addresses []string, dial DialFunc, logger log.Logger) *Bootstrap {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Bootstrap{addresses: addresses, dial: dial, log: logger}
}

// Run attempts every configured address concurrently, each with its own
// exponential backoff (1s initial interval, 60s max interval, no max
// elapsed time — it keeps trying until ctx is cancelled or it succeeds).
// Run blocks until every address has either succeeded or ctx is done.
func (b *Bootstrap) Run(ctx context.Context) {
	done := make(chan struct{}, len(b.addresses))
	for _, addr := range b.addresses {
		addr := addr
		go func() {
			b.runOne(ctx, addr)
			done <- struct{}{}
		}()
	}
	for range b.addresses {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bootstrap) runOne(ctx context.Context, address string) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0 // retry forever until ctx is cancelled
	bctx := backoff.WithContext(bo, ctx)

	op := func() error {
		nodeID, err := b.dial(ctx, address)
		if err != nil {
			b.log.Debug("bootstrap dial failed", log.String("address", address), log.Err(err))
			return err
		}
		b.log.Info("bootstrap dial succeeded", log.String("address", address), log.String("node_id", nodeID))
		return nil
	}

	_ = backoff.Retry(op, bctx)
}
