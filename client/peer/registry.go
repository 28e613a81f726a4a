/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package peer tracks the set of TCNet nodes reachable on the local
// segment: who they are, where to send them a unicast request, and how
// long it's been since they were last heard from.
package peer

import (
	"net"
	"sync"
	"time"

	"github.com/tcnet-go/tcnet/protocol"
)

// Peer is everything the client knows about another node on the segment,
// derived from its most recent OptIn.
type Peer struct {
	NodeID       uint16
	NodeName     string
	NodeType     protocol.NodeType
	VendorName   string
	AppName      string
	ListenerPort uint16
	RemoteIP     net.IP
	Uptime       uint16
	LastSeen     time.Time
}

// Addr is the unicast destination a request to this peer must be sent to.
func (p *Peer) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: p.RemoteIP, Port: int(p.ListenerPort)}
}

// Registry is the mutex-protected set of currently-live peers, keyed by
// nodeID. Safe for concurrent use by the transport's receive loops and by
// the client's request API.
type Registry struct {
	mu    sync.Mutex
	peers map[uint16]*Peer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{peers: map[uint16]*Peer{}}
}

// Touch creates or updates the peer entry for nodeID from a freshly
// received OptIn, stamping LastSeen with now. Returns the peer and
// whether this is a newly observed node (for peer-added notifications).
func (r *Registry) Touch(nodeID uint16, remoteIP net.IP, in *protocol.OptIn, now time.Time) (p *Peer, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, found := r.peers[nodeID]
	if !found {
		existing = &Peer{NodeID: nodeID}
		r.peers[nodeID] = existing
	}
	existing.NodeName = in.NodeName
	existing.NodeType = in.NodeType
	existing.VendorName = in.VendorName
	existing.AppName = in.AppName
	existing.ListenerPort = in.ListenerPort
	existing.Uptime = in.Uptime
	existing.RemoteIP = remoteIP
	existing.LastSeen = now
	return existing, !found
}

// Refresh bumps LastSeen for nodeID without altering any other field, used
// for any non-OptIn packet received from a known peer.
func (r *Registry) Refresh(nodeID uint16, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[nodeID]; ok {
		p.LastSeen = now
	}
}

// Remove deletes the peer entry for nodeID, if any, and reports whether
// one existed.
func (r *Registry) Remove(nodeID uint16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, found := r.peers[nodeID]
	delete(r.peers, nodeID)
	return found
}

// Get returns the peer entry for nodeID, if any.
func (r *Registry) Get(nodeID uint16) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[nodeID]
	return p, ok
}

// All returns a snapshot slice of every currently-known peer.
func (r *Registry) All() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Master returns the first peer whose NodeType is Master, falling back to
// any peer if none advertises that role. Returns false if the registry is
// empty.
func (r *Registry) Master() (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fallback *Peer
	for _, p := range r.peers {
		if p.NodeType == protocol.NodeTypeMaster {
			return p, true
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback == nil {
		return nil, false
	}
	return fallback, true
}

// Sweep removes every peer whose LastSeen is older than idleThreshold,
// relative to now, and returns the nodeIDs it evicted so the caller can
// cancel their pending requests with PeerGone.
func (r *Registry) Sweep(now time.Time, idleThreshold time.Duration) []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []uint16
	for id, p := range r.peers {
		if now.Sub(p.LastSeen) > idleThreshold {
			evicted = append(evicted, id)
			delete(r.peers, id)
		}
	}
	return evicted
}

// Len reports the number of currently-tracked peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}
