// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/luxfi/log"
	"github.com/luxfi/version"
	"github.com/spf13/cobra"

	"github.com/rpretzer/dawn/internal/config"
	"github.com/rpretzer/dawn/internal/discovery"
	"github.com/rpretzer/dawn/internal/identity"
	"github.com/rpretzer/dawn/internal/router"
	"github.com/rpretzer/dawn/internal/transport"
)

// nodeAppVersion is the protocol/application version this build of
// dawn-node advertises in the transport handshake. Peers reject a Hello
// whose major version is incompatible; see version.Application.Compatible.
var nodeAppVersion = &version.Application{Name: "dawn-node", Major: 1, Minor: 0, Patch: 0}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run this node, joining the mesh via bootstrap/multicast/gossip discovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.NewLogger("dawn-node")

	id, err := loadOrCreateIdentity(cfg.IdentityPath)
	if err != nil {
		return errors.Wrap(err, "serve: load identity")
	}
	logger.Info("node identity ready", log.String("node_id", id.NodeID()))

	sessions := newSessionManager(logger)
	node, err := router.NewNode(id, sessions.send,
		router.WithLogger(logger),
		router.WithRequestTimeout(cfg.RequestTimeout()),
		router.WithMetrics(nil),
		router.WithAddress(cfg.ListenAddress),
	)
	if err != nil {
		return errors.Wrap(err, "serve: build node")
	}
	sessions.node = node

	listener := transport.NewListener(id, nodeAppVersion, sessions.onInboundSession)
	mux := http.NewServeMux()
	mux.Handle("/dawn/v1", listener.Handler())
	server := &http.Server{Addr: cfg.ListenAddress, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener stopped", log.Err(err))
		}
	}()
	logger.Info("listening", log.String("address", cfg.ListenAddress))

	tasks := router.NewTasks(node)
	tasks.SetPeerCleanupInterval(cfg.PeerCleanupInterval())
	tasks.Start()

	var stopMulticast func()
	if cfg.DiscoveryMulticast {
		mc := discovery.NewMulticast(id.NodeID(), "", portFromAddress(cfg.ListenAddress), logger)
		stop, err := mc.Advertise()
		if err != nil {
			logger.Warn("multicast advertise failed", log.Err(err))
		} else {
			stopMulticast = stop
		}
	}

	if len(cfg.BootstrapPeers) > 0 {
		bs := discovery.NewBootstrap(cfg.BootstrapPeers, sessions.dial, logger)
		go bs.Run(context.Background())
	}

	// A peer that gossip reports stale is removed from the registry
	// outright; it is not first marked Dead.
	gossip := discovery.NewGossip(id.NodeID(), cfg.GossipInterval(), sessions.gossipSend, sessions.knownPeerSamples, node.Peers.Remove, logger)
	gossip.Start()

	waitForShutdown()

	gossip.Stop()
	tasks.Stop()
	if stopMulticast != nil {
		stopMulticast()
	}
	return server.Close()
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func loadOrCreateIdentity(path string) (*identity.Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return identity.Load(data)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	id, err := identity.New()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, id.Save(), 0o600); err != nil {
		return nil, err
	}
	return id, nil
}

func portFromAddress(address string) int {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == ':' {
			port := 0
			for _, c := range address[i+1:] {
				if c < '0' || c > '9' {
					return 0
				}
				port = port*10 + int(c-'0')
			}
			return port
		}
	}
	return 0
}
