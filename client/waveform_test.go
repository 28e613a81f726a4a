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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcnet-go/tcnet/protocol"
)

func TestAddFragmentAssemblesOutOfOrderFragments(t *testing.T) {
	a := newWaveformAssembler()
	key := pendingKey{peerNodeID: 1, dataType: protocol.DataSubTypeSmallWaveForm, layer: 1}

	_, done := a.addFragment(key, &protocol.Waveform{
		TotalPacket: 2, PacketNumber: 1,
		Samples: []protocol.WaveformSample{{Level: 9}},
	})
	assert.False(t, done)

	samples, done := a.addFragment(key, &protocol.Waveform{
		TotalPacket: 2, PacketNumber: 0,
		Samples: []protocol.WaveformSample{{Level: 1}, {Level: 2}},
	})
	require.True(t, done)
	require.Len(t, samples, 3)
	assert.Equal(t, uint8(1), samples[0].Level)
	assert.Equal(t, uint8(2), samples[1].Level)
	assert.Equal(t, uint8(9), samples[2].Level)
}

func TestAddFragmentSingleFragmentCompletesImmediately(t *testing.T) {
	a := newWaveformAssembler()
	key := pendingKey{peerNodeID: 2, dataType: protocol.DataSubTypeBigWaveForm, layer: 0}

	samples, done := a.addFragment(key, &protocol.Waveform{
		TotalPacket: 1, PacketNumber: 0,
		Samples: []protocol.WaveformSample{{Level: 5}},
	})
	require.True(t, done)
	assert.Len(t, samples, 1)
}

func TestDiscardDropsPartialAssembly(t *testing.T) {
	a := newWaveformAssembler()
	key := pendingKey{peerNodeID: 3, dataType: protocol.DataSubTypeSmallWaveForm, layer: 1}
	a.addFragment(key, &protocol.Waveform{TotalPacket: 3, PacketNumber: 0, Samples: []protocol.WaveformSample{{Level: 1}}})

	a.discard(key)

	_, done := a.addFragment(key, &protocol.Waveform{TotalPacket: 3, PacketNumber: 1, Samples: []protocol.WaveformSample{{Level: 2}}})
	assert.False(t, done, "discard should have dropped fragment 0, so only 1 of 3 is present")
}

func TestDiscardKeysDropsEachPartialAssembly(t *testing.T) {
	a := newWaveformAssembler()
	keyA := pendingKey{peerNodeID: 4, dataType: protocol.DataSubTypeSmallWaveForm, layer: 1}
	keyB := pendingKey{peerNodeID: 5, dataType: protocol.DataSubTypeBigWaveForm, layer: 2}
	a.addFragment(keyA, &protocol.Waveform{TotalPacket: 2, PacketNumber: 0, Samples: []protocol.WaveformSample{{Level: 1}}})
	a.addFragment(keyB, &protocol.Waveform{TotalPacket: 2, PacketNumber: 0, Samples: []protocol.WaveformSample{{Level: 2}}})

	a.discardKeys([]pendingKey{keyA, keyB})

	_, doneA := a.addFragment(keyA, &protocol.Waveform{TotalPacket: 2, PacketNumber: 1, Samples: []protocol.WaveformSample{{Level: 3}}})
	_, doneB := a.addFragment(keyB, &protocol.Waveform{TotalPacket: 2, PacketNumber: 1, Samples: []protocol.WaveformSample{{Level: 4}}})
	assert.False(t, doneA, "discardKeys should have dropped keyA's fragment 0")
	assert.False(t, doneB, "discardKeys should have dropped keyB's fragment 0")
}
