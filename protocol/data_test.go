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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func dataHeader(b []byte, subType DataSubType) {
	b[2] = ProtocolMajorVersion
	b[4], b[5], b[6] = 'T', 'C', 'N'
	b[7] = uint8(MessageData)
	b[24] = uint8(subType)
}

func TestMetadataRoundTrip(t *testing.T) {
	b := make([]byte, MetadataLength)
	dataHeader(b, DataSubTypeMetaData)
	require.NoError(t, WriteUtf16LE(b, 29, 256, "Artist"))
	require.NoError(t, WriteUtf16LE(b, 285, 256, "Song"))
	require.NoError(t, WriteU16LE(b, 541, 5))
	require.NoError(t, WriteU32LE(b, 543, 42))

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	md, ok := decoded.(*Metadata)
	require.True(t, ok)
	require.Equal(t, "Artist", md.TrackArtist)
	require.Equal(t, "Song", md.TrackTitle)
	require.Equal(t, uint16(5), md.TrackKey)
	require.Equal(t, uint32(42), md.TrackID)
}

func TestMetricsDecode(t *testing.T) {
	b := make([]byte, MetricsLength)
	dataHeader(b, DataSubTypeMetrics)
	b[27] = 1 // State
	require.NoError(t, WriteU32LE(b, 32, 180000))
	require.NoError(t, WriteU32LE(b, 36, 5000))
	require.NoError(t, WriteU32LE(b, 112, 12800))
	require.NoError(t, WriteU32LE(b, 118, 7))

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	m, ok := decoded.(*Metrics)
	require.True(t, ok)
	require.Equal(t, uint8(1), m.State)
	require.Equal(t, uint32(180000), m.TrackLength)
	require.Equal(t, uint32(5000), m.Position)
	require.Equal(t, uint32(12800), m.BPM)
	require.Equal(t, uint32(7), m.TrackID)
}

func TestCueDataAdaptiveCueCount(t *testing.T) {
	// Only 2 full cues are present, well short of MaxCues; decode must
	// take what's there instead of requiring a fixed 436-byte body.
	b := make([]byte, cuesOffset+2*cueStride)
	dataHeader(b, DataSubTypeCUE)
	b[25] = 1 // LayerID
	require.NoError(t, WriteU32LE(b, 42, 1000))
	require.NoError(t, WriteU32LE(b, 46, 2000))
	b[cuesOffset] = 1
	require.NoError(t, WriteU32LE(b, cuesOffset+2, 100))
	require.NoError(t, WriteU32LE(b, cuesOffset+6, 200))

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	cd, ok := decoded.(*CueData)
	require.True(t, ok)
	require.Equal(t, uint8(1), cd.LayerID)
	require.Len(t, cd.Cues, 2)
	require.Equal(t, uint8(1), cd.Cues[0].CueType)
	require.Equal(t, uint32(100), cd.Cues[0].InTime)
	require.Equal(t, uint32(200), cd.Cues[0].OutTime)
}

func TestWaveformDecodesAvailableSamples(t *testing.T) {
	const nSamples = 10
	b := make([]byte, waveformSamplesOffset+nSamples*2)
	dataHeader(b, DataSubTypeSmallWaveForm)
	b[25] = 3 // LayerID
	require.NoError(t, WriteU32LE(b, 30, 1))
	require.NoError(t, WriteU32LE(b, 34, 0))
	for i := 0; i < nSamples; i++ {
		off := waveformSamplesOffset + i*2
		b[off] = byte(i)
		b[off+1] = byte(i * 2)
	}

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	wf, ok := decoded.(*Waveform)
	require.True(t, ok)
	require.Equal(t, uint8(3), wf.LayerID)
	require.Len(t, wf.Samples, nSamples)
	require.Equal(t, uint8(4), wf.Samples[4].Level)
	require.Equal(t, uint8(8), wf.Samples[4].Color)
}

func TestMixerDataChannels(t *testing.T) {
	b := make([]byte, MixerDataLength)
	dataHeader(b, DataSubTypeMixer)
	b[25] = 1 // MixerID
	// Channel 3 (offset 173): Source byte.
	b[173] = 9
	b[173+11] = 1 // CueA

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	mx, ok := decoded.(*MixerData)
	require.True(t, ok)
	require.Equal(t, uint8(1), mx.MixerID)
	require.Equal(t, uint8(9), mx.Channels[2].Source)
	require.True(t, mx.Channels[2].CueA)
}

func TestBeatGridUnsupported(t *testing.T) {
	b := make([]byte, HeaderSize+1)
	dataHeader(b, DataSubTypeBeatGrid)

	_, err := DecodePacket(b)
	require.Error(t, err)
	var uerr *UnsupportedError
	require.ErrorAs(t, err, &uerr)
}
