// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package agentreg implements the eventually-consistent, CRDT-backed
// distributed view of which agents exist across the mesh: an OR-Set of
// (node_id, agent_id) pairs, paired with a last-writer-wins descriptor map,
// merged idempotently, commutatively, and associatively across nodes.
package agentreg

import (
	"sort"
	"time"
)

// Tag uniquely identifies one add/remove operation so OR-Set merges can
// tell apart re-additions of the same agent.
type Tag struct {
	NodeID  string
	Counter uint64
}

// Descriptor is the last-writer-wins metadata published for one
// (node_id, agent_id) pair: its capability summary and which node
// currently hosts it.
type Descriptor struct {
	AgentID   string
	NodeID    string
	Name      string
	Tools     []string
	Resources []string
	Prompts   []string
	Chat      bool
	UpdatedAt time.Time
}

// regKey is an agent's full identity: the same agent_id hosted by two
// different nodes is two distinct registry entries.
type regKey struct {
	NodeID  string
	AgentID string
}

// entry is the OR-Set bookkeeping for one (node_id, agent_id) pair: the set
// of live "add" tags (observed-remove: an add is visible unless every one
// of its tags has a matching tombstone) and the set of tombstoned tags.
type entry struct {
	adds      map[Tag]struct{}
	tombstone map[Tag]struct{}
	desc      Descriptor
}

func newEntry() *entry {
	return &entry{adds: make(map[Tag]struct{}), tombstone: make(map[Tag]struct{})}
}

func (e *entry) visible() bool {
	for t := range e.adds {
		if _, dead := e.tombstone[t]; !dead {
			return true
		}
	}
	return false
}

// Registry is one node's replica of the distributed agent set. Safe for
// concurrent use by the router's RPC handlers and the gossip merge loop.
type Registry struct {
	selfNodeID string
	counter    uint64
	entries    map[regKey]*entry
	lastSeen   map[string]time.Time // per-node last contact, for GC
	now        func() time.Time
}

// NewRegistry constructs an empty Registry for selfNodeID.
func NewRegistry(selfNodeID string) *Registry {
	return &Registry{
		selfNodeID: selfNodeID,
		entries:    make(map[regKey]*entry),
		lastSeen:   make(map[string]time.Time),
		now:        time.Now,
	}
}

// LocalAdd publishes an agent this node hosts, minting a fresh Tag.
func (r *Registry) LocalAdd(desc Descriptor) {
	r.counter++
	tag := Tag{NodeID: r.selfNodeID, Counter: r.counter}
	desc.NodeID = r.selfNodeID
	desc.UpdatedAt = r.now()

	key := regKey{NodeID: r.selfNodeID, AgentID: desc.AgentID}
	e, ok := r.entries[key]
	if !ok {
		e = newEntry()
		r.entries[key] = e
	}
	e.adds[tag] = struct{}{}
	e.desc = desc
	r.lastSeen[r.selfNodeID] = desc.UpdatedAt
}

// LocalRemove retracts an agent this node previously added, tombstoning
// every add-tag currently observed for it.
func (r *Registry) LocalRemove(agentID string) {
	key := regKey{NodeID: r.selfNodeID, AgentID: agentID}
	e, ok := r.entries[key]
	if !ok {
		return
	}
	for t := range e.adds {
		e.tombstone[t] = struct{}{}
	}
}

// Delta is the wire-transmissible snapshot of one (node_id, agent_id)
// pair's CRDT state, used to sync updates between nodes.
type Delta struct {
	NodeID    string
	AgentID   string
	Adds      []Tag
	Tombstone []Tag
	Desc      Descriptor
}

// Snapshot exports the full registry state as a slice of Deltas, suitable
// for periodic sync or initial full-state sync with a newly connected peer.
func (r *Registry) Snapshot() []Delta {
	out := make([]Delta, 0, len(r.entries))
	for key, e := range r.entries {
		out = append(out, Delta{
			NodeID:    key.NodeID,
			AgentID:   key.AgentID,
			Adds:      tagSlice(e.adds),
			Tombstone: tagSlice(e.tombstone),
			Desc:      e.desc,
		})
	}
	return out
}

func tagSlice(m map[Tag]struct{}) []Tag {
	out := make([]Tag, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	return out
}

// Merge applies a remote Delta. Merge is idempotent (applying the same
// delta twice is a no-op beyond the first), commutative, and associative:
// it only ever unions add-tag sets and tombstone-tag sets, and the
// descriptor update is last-writer-wins by UpdatedAt.
func (r *Registry) Merge(d Delta) {
	key := regKey{NodeID: d.NodeID, AgentID: d.AgentID}
	e, ok := r.entries[key]
	if !ok {
		e = newEntry()
		r.entries[key] = e
	}
	for _, t := range d.Adds {
		e.adds[t] = struct{}{}
	}
	for _, t := range d.Tombstone {
		e.tombstone[t] = struct{}{}
	}
	if d.Desc.UpdatedAt.After(e.desc.UpdatedAt) {
		e.desc = d.Desc
	}
	if d.NodeID != "" {
		if t, ok := r.lastSeen[d.NodeID]; !ok || d.Desc.UpdatedAt.After(t) {
			r.lastSeen[d.NodeID] = d.Desc.UpdatedAt
		}
	}
}

// Touch records that nodeID was heard from (e.g. via gossip or a session
// heartbeat), resetting its GC eviction clock independent of any agent
// descriptor update.
func (r *Registry) Touch(nodeID string, at time.Time) {
	if t, ok := r.lastSeen[nodeID]; !ok || at.After(t) {
		r.lastSeen[nodeID] = at
	}
}

// FindAgent returns the descriptor for agentID if any node currently hosts
// a visible entry for it. An agent_id is not globally unique: when more
// than one node hosts it, the entry whose NodeID sorts lexicographically
// first wins, giving a stable, deterministic choice across replicas.
func (r *Registry) FindAgent(agentID string) (Descriptor, bool) {
	var best Descriptor
	found := false
	for key, e := range r.entries {
		if key.AgentID != agentID || !e.visible() {
			continue
		}
		if !found || key.NodeID < best.NodeID {
			best = e.desc
			found = true
		}
	}
	return best, found
}

// ListAll returns descriptors for every currently visible agent across
// every node, ordered by node_id then agent_id for deterministic output.
func (r *Registry) ListAll() []Descriptor {
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.visible() {
			out = append(out, e.desc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

// DefaultEvictionAge is the no-contact duration after which a node's
// agents are dropped from the registry.
const DefaultEvictionAge = 24 * time.Hour

// GC evicts agents belonging to nodes not heard from within
// DefaultEvictionAge of now, removing both their entries and the
// per-node lastSeen bookkeeping.
func (r *Registry) GC(now time.Time) {
	stale := make(map[string]struct{})
	for nodeID, seen := range r.lastSeen {
		if nodeID == r.selfNodeID {
			continue
		}
		if now.Sub(seen) >= DefaultEvictionAge {
			stale[nodeID] = struct{}{}
			delete(r.lastSeen, nodeID)
		}
	}
	if len(stale) == 0 {
		return
	}
	for key := range r.entries {
		if _, dead := stale[key.NodeID]; dead {
			delete(r.entries, key)
		}
	}
}
