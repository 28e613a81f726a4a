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

package client

import (
	"sync"

	"github.com/tcnet-go/tcnet/protocol"
)

// pendingKey identifies a single in-flight request. At most one entry
// exists per key at a time (spec.md §3, Pending request invariant).
type pendingKey struct {
	peerNodeID uint16
	dataType   protocol.DataSubType
	layer      uint8
}

type pendingResult struct {
	payload protocol.Packet
	err     error
}

// pendingEntry is the one-shot completion sink a request waits on. done is
// closed exactly once, by whichever of complete/cancel runs first;
// result is only valid for readers after done is closed.
type pendingEntry struct {
	key    pendingKey
	done   chan struct{}
	result pendingResult
}

// pendingTable tracks every in-flight request, coalescing duplicate
// callers for the same (peer, dataType, layer) onto a single on-wire
// request, per spec.md §4.5.
type pendingTable struct {
	mu      sync.Mutex
	entries map[pendingKey]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: map[pendingKey]*pendingEntry{}}
}

// register returns the pending entry for key, creating one if none
// exists. created reports whether this call is the one responsible for
// actually sending the request on the wire; coalesced callers (created
// == false) only need to wait on the returned entry.
func (t *pendingTable) register(key pendingKey) (entry *pendingEntry, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		return e, false
	}
	e := &pendingEntry{key: key, done: make(chan struct{})}
	t.entries[key] = e
	return e, true
}

// complete finds the entry for key, if any, fills in its result and wakes
// every waiter. A no-op if no entry is pending (e.g. a late duplicate
// reply after the entry was already completed), matching spec.md's "never
// delivered to a cancelled waiter" rule.
func (t *pendingTable) complete(key pendingKey, payload protocol.Packet, err error) bool {
	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	e.result = pendingResult{payload: payload, err: err}
	close(e.done)
	return true
}

// cancel removes and completes the entry for key with err, if one exists.
func (t *pendingTable) cancel(key pendingKey, err error) {
	t.complete(key, nil, err)
}

// completeAnyLayer completes the first pending entry addressed to
// (peerNodeID, dataType), regardless of which layer it was registered
// under. Used for the Data reply shapes that carry no LayerID field of
// their own (Metrics, MetaData, Mixer) and so can't be matched by exact
// key the way CueData and Waveform replies are.
func (t *pendingTable) completeAnyLayer(peerNodeID uint16, dataType protocol.DataSubType, payload protocol.Packet, err error) bool {
	t.mu.Lock()
	var found *pendingEntry
	var foundKey pendingKey
	for k, e := range t.entries {
		if k.peerNodeID == peerNodeID && k.dataType == dataType {
			found, foundKey = e, k
			break
		}
	}
	if found != nil {
		delete(t.entries, foundKey)
	}
	t.mu.Unlock()
	if found == nil {
		return false
	}
	found.result = pendingResult{payload: payload, err: err}
	close(found.done)
	return true
}

// cancelPeer completes, with err, every pending entry addressed to
// peerNodeID, and reports the keys it cancelled so callers can clean up
// any other per-key state (e.g. a waveformAssembler's partial fragments).
// Used when a peer is evicted from the registry.
func (t *pendingTable) cancelPeer(peerNodeID uint16, err error) []pendingKey {
	t.mu.Lock()
	var matched []*pendingEntry
	var keys []pendingKey
	for k, e := range t.entries {
		if k.peerNodeID == peerNodeID {
			matched = append(matched, e)
			keys = append(keys, k)
			delete(t.entries, k)
		}
	}
	t.mu.Unlock()
	for _, e := range matched {
		e.result = pendingResult{err: err}
		close(e.done)
	}
	return keys
}

// cancelAll completes every currently pending entry with err and reports
// the keys it cancelled. Used on Disconnect to fail outstanding requests
// with Shutdown.
func (t *pendingTable) cancelAll(err error) []pendingKey {
	t.mu.Lock()
	all := make([]*pendingEntry, 0, len(t.entries))
	keys := make([]pendingKey, 0, len(t.entries))
	for k, e := range t.entries {
		all = append(all, e)
		keys = append(keys, k)
		delete(t.entries, k)
	}
	t.mu.Unlock()
	for _, e := range all {
		e.result = pendingResult{err: err}
		close(e.done)
	}
	return keys
}

// has reports whether a request is currently pending for key, without
// affecting it. Used to decide whether an unsolicited Waveform fragment
// belongs to anything this client asked for.
func (t *pendingTable) has(key pendingKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// len reports the number of currently pending entries.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
