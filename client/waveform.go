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

// waveformAssembler accumulates the fragments of an in-flight waveform
// reply (spec.md §4.6: "the reply may arrive as multiple fragments"),
// ordering them by packetNumber and completing once the last one arrives.
type waveformAssembler struct {
	mu       sync.Mutex
	inFlight map[pendingKey]map[uint32][]protocol.WaveformSample
	total    map[pendingKey]uint32
}

func newWaveformAssembler() *waveformAssembler {
	return &waveformAssembler{
		inFlight: map[pendingKey]map[uint32][]protocol.WaveformSample{},
		total:    map[pendingKey]uint32{},
	}
}

// addFragment records wf under key and reports the fully assembled sample
// slice once every fragment 0..totalPacket-1 has arrived.
func (a *waveformAssembler) addFragment(key pendingKey, wf *protocol.Waveform) (samples []protocol.WaveformSample, done bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	frags, ok := a.inFlight[key]
	if !ok {
		frags = map[uint32][]protocol.WaveformSample{}
		a.inFlight[key] = frags
	}
	frags[wf.PacketNumber] = wf.Samples
	a.total[key] = wf.TotalPacket

	total := a.total[key]
	if uint32(len(frags)) < total {
		return nil, false
	}
	var out []protocol.WaveformSample
	for i := uint32(0); i < total; i++ {
		piece, ok := frags[i]
		if !ok {
			return nil, false
		}
		out = append(out, piece...)
	}
	delete(a.inFlight, key)
	delete(a.total, key)
	return out, true
}

// discard drops any partial assembly for key, used when the request that
// started it is cancelled, evicted, or times out.
func (a *waveformAssembler) discard(key pendingKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, key)
	delete(a.total, key)
}

// discardKeys drops any partial assembly for each of keys, the batch form
// of discard used when a whole peer is evicted or the client shuts down.
func (a *waveformAssembler) discardKeys(keys []pendingKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, key := range keys {
		delete(a.inFlight, key)
		delete(a.total, key)
	}
}
