// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config assembles a node's Config from defaults, an optional YAML
// file, and environment variable overrides, in that priority order, and
// hands back a single immutable value threaded through the rest of the
// process at startup.
package config

import (
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config is every externally tunable setting a node reads at startup.
type Config struct {
	ListenAddress        string        `mapstructure:"listen_address"`
	IdentityPath          string        `mapstructure:"identity_path"`
	BootstrapPeers        []string      `mapstructure:"bootstrap_peers"`
	DiscoveryMulticast    bool          `mapstructure:"discovery_multicast"`
	GossipIntervalSeconds int           `mapstructure:"gossip_interval_s"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	PeerDeadThresholdSeconds    int `mapstructure:"peer_dead_threshold_s"`
	PeerCleanupIntervalSeconds  int `mapstructure:"peer_cleanup_interval_s"`
	RequestTimeoutSeconds       int `mapstructure:"request_timeout_s"`
}

// GossipInterval, PeerDeadThreshold, PeerCleanupInterval, and
// RequestTimeout convert the integer-seconds config fields into
// time.Duration for the packages that consume them.
func (c Config) GossipInterval() time.Duration {
	return time.Duration(c.GossipIntervalSeconds) * time.Second
}

func (c Config) PeerDeadThreshold() time.Duration {
	return time.Duration(c.PeerDeadThresholdSeconds) * time.Second
}

func (c Config) PeerCleanupInterval() time.Duration {
	return time.Duration(c.PeerCleanupIntervalSeconds) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func defaults() Config {
	return Config{
		ListenAddress:              "0.0.0.0:7946",
		IdentityPath:               "dawn-identity.bin",
		BootstrapPeers:             nil,
		DiscoveryMulticast:         true,
		GossipIntervalSeconds:      60,
		LogLevel:                   "info",
		LogFormat:                  "console",
		PeerDeadThresholdSeconds:   300,
		PeerCleanupIntervalSeconds: 60,
		RequestTimeoutSeconds:      30,
	}
}

// Load builds a Config from defaults, an optional YAML file at path (skipped
// if empty or missing), and environment variables prefixed NODE_.
func Load(path string) (Config, error) {
	v := viper.New()
	d := defaults()
	v.SetDefault("listen_address", d.ListenAddress)
	v.SetDefault("identity_path", d.IdentityPath)
	v.SetDefault("bootstrap_peers", d.BootstrapPeers)
	v.SetDefault("discovery_multicast", d.DiscoveryMulticast)
	v.SetDefault("gossip_interval_s", d.GossipIntervalSeconds)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("peer_dead_threshold_s", d.PeerDeadThresholdSeconds)
	v.SetDefault("peer_cleanup_interval_s", d.PeerCleanupIntervalSeconds)
	v.SetDefault("request_timeout_s", d.RequestTimeoutSeconds)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, errors.Wrap(err, "config: read config file")
			}
		}
	}

	v.SetEnvPrefix("NODE")
	v.AutomaticEnv()
	for _, key := range []string{
		"listen_address", "identity_path", "bootstrap_peers", "discovery_multicast",
		"gossip_interval_s", "log_level", "log_format", "peer_dead_threshold_s",
		"peer_cleanup_interval_s", "request_timeout_s",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}
