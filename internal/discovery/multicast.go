// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"strconv"

	"github.com/grandcat/zeroconf"
	"github.com/luxfi/log"
)

// serviceName is the mDNS/zeroconf service type nodes advertise under.
const serviceName = "_dawn._tcp"
const serviceDomain = "local."

// Found describes one peer discovered via local multicast.
type Found struct {
	NodeID      string
	PublicKey   string
	Address     string
	Port        int
}

// Multicast advertises this node's presence on the local network and
// browses for others, via mDNS TXT records carrying node_id and
// public_key.
type Multicast struct {
	nodeID    string
	publicKey string
	port      int
	log       log.Logger

	server *zeroconf.Server
}

// NewMulticast constructs a Multicast advertiser/browser for this node.
func NewMulticast(nodeID, publicKeyB64 string, port int, logger log.Logger) *Multicast {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Multicast{nodeID: nodeID, publicKey: publicKeyB64, port: port, log: logger}
}

// Advertise registers this node's mDNS service record. Call Close (via the
// returned stop function) when the node shuts down.
func (m *Multicast) Advertise() (stop func(), err error) {
	txt := []string{"node_id=" + m.nodeID, "public_key=" + m.publicKey}
	server, err := zeroconf.Register(m.nodeID, serviceName, serviceDomain, m.port, txt, nil)
	if err != nil {
		return nil, err
	}
	m.server = server
	return server.Shutdown, nil
}

// Browse searches the local network for other advertised nodes and sends
// each one found on the returned channel until ctx is cancelled.
func (m *Multicast) Browse(ctx context.Context) (<-chan Found, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan Found)

	go func() {
		defer close(found)
		for entry := range entries {
			f, ok := parseEntry(entry)
			if !ok || f.NodeID == m.nodeID {
				continue
			}
			select {
			case found <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, serviceName, serviceDomain, entries); err != nil {
		return nil, err
	}
	return found, nil
}

func parseEntry(entry *zeroconf.ServiceEntry) (Found, bool) {
	var nodeID, pubKey string
	for _, kv := range entry.Text {
		key, val, ok := splitTXT(kv)
		if !ok {
			continue
		}
		switch key {
		case "node_id":
			nodeID = val
		case "public_key":
			pubKey = val
		}
	}
	if nodeID == "" {
		return Found{}, false
	}
	addr := ""
	if len(entry.AddrIPv4) > 0 {
		addr = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		addr = entry.AddrIPv6[0].String()
	}
	if addr == "" {
		return Found{}, false
	}
	return Found{
		NodeID:    nodeID,
		PublicKey: pubKey,
		Address:   addr + ":" + strconv.Itoa(entry.Port),
		Port:      entry.Port,
	}, true
}

func splitTXT(kv string) (key, val string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
