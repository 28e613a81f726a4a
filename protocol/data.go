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

// Every type in this file is a Data (200) message; its shape is selected
// by the sub-type byte immediately following the header (offset 24).

// Metrics carries the transport/playback metrics for a layer.
type Metrics struct {
	Header
	SubType     DataSubType
	State       uint8
	SyncMaster  uint8
	BeatMarker  uint8
	TrackLength uint32 // milliseconds
	Position    uint32 // milliseconds
	Speed       uint32
	BeatNumber  uint32
	BPM         uint32 // scaled x100
	PitchBend   uint16
	TrackID     uint32
}

// MetricsLength is the fixed wire length of a Metrics data packet.
const MetricsLength = 122

// UnmarshalBinary decodes b into a Metrics packet.
func (p *Metrics) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, MetricsLength, "Metrics"); err != nil {
		return err
	}
	subType, err := ReadU8(b, 24)
	if err != nil {
		return err
	}
	p.SubType = DataSubType(subType)
	if p.State, err = ReadU8(b, 27); err != nil {
		return err
	}
	if p.SyncMaster, err = ReadU8(b, 29); err != nil {
		return err
	}
	if p.BeatMarker, err = ReadU8(b, 31); err != nil {
		return err
	}
	if p.TrackLength, err = ReadU32LE(b, 32); err != nil {
		return err
	}
	if p.Position, err = ReadU32LE(b, 36); err != nil {
		return err
	}
	if p.Speed, err = ReadU32LE(b, 40); err != nil {
		return err
	}
	if p.BeatNumber, err = ReadU32LE(b, 57); err != nil {
		return err
	}
	if p.BPM, err = ReadU32LE(b, 112); err != nil {
		return err
	}
	if p.PitchBend, err = ReadU16LE(b, 116); err != nil {
		return err
	}
	if p.TrackID, err = ReadU32LE(b, 118); err != nil {
		return err
	}
	return nil
}

// Metadata carries the artist/title/key/trackID for a layer.
type Metadata struct {
	Header
	SubType     DataSubType
	TrackArtist string
	TrackTitle  string
	TrackKey    uint16
	TrackID     uint32
}

// MetadataLength is the fixed wire length of a Metadata data packet.
const MetadataLength = 548

// UnmarshalBinary decodes b into a Metadata packet.
func (p *Metadata) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, MetadataLength, "Metadata"); err != nil {
		return err
	}
	subType, err := ReadU8(b, 24)
	if err != nil {
		return err
	}
	p.SubType = DataSubType(subType)
	if p.TrackArtist, err = ReadUtf16LE(b, 29, 256); err != nil {
		return err
	}
	if p.TrackTitle, err = ReadUtf16LE(b, 285, 256); err != nil {
		return err
	}
	if p.TrackKey, err = ReadU16LE(b, 541); err != nil {
		return err
	}
	if p.TrackID, err = ReadU32LE(b, 543); err != nil {
		return err
	}
	return nil
}

// RGB is a three-byte color value, as carried by a Cue.
type RGB struct {
	R, G, B uint8
}

// Cue is one of the up to 18 hot cues/loops carried by a CueData packet.
type Cue struct {
	CueType uint8
	InTime  uint32
	OutTime uint32
	Color   RGB
}

const cueStride = 22

func unmarshalCue(c *Cue, b []byte, offset int) error {
	if err := need(b, offset, cueStride, "Cue"); err != nil {
		return err
	}
	c.CueType = b[offset]
	var err error
	if c.InTime, err = ReadU32LE(b, offset+2); err != nil {
		return err
	}
	if c.OutTime, err = ReadU32LE(b, offset+6); err != nil {
		return err
	}
	c.Color = RGB{R: b[offset+11], G: b[offset+12], B: b[offset+13]}
	return nil
}

// MaxCues is the maximum number of cues a CueData packet can carry.
const MaxCues = 18

// cuesOffset is where the first Cue begins in a CueData body.
const cuesOffset = 47

// CueData carries the loop points and hot cues for a layer.
type CueData struct {
	Header
	SubType DataSubType
	LayerID uint8
	LoopIn  uint32
	LoopOut uint32
	// Cues holds as many cues as fit in the received datagram, up to
	// MaxCues. The wire-format table's nominal packet length (436 bytes)
	// is a few bytes short of what a full 18-cue payload needs at stride
	// 22 starting at offset 47; rather than hard-fail on that
	// discrepancy, decode takes however many complete cues the datagram
	// actually carries.
	Cues []Cue
}

// UnmarshalBinary decodes b into a CueData packet.
func (p *CueData) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, cuesOffset, "CueData"); err != nil {
		return err
	}
	subType, err := ReadU8(b, 24)
	if err != nil {
		return err
	}
	p.SubType = DataSubType(subType)
	if p.LayerID, err = ReadU8(b, 25); err != nil {
		return err
	}
	if p.LoopIn, err = ReadU32LE(b, 42); err != nil {
		return err
	}
	if p.LoopOut, err = ReadU32LE(b, 46); err != nil {
		return err
	}
	available := (len(b) - cuesOffset) / cueStride
	if available > MaxCues {
		available = MaxCues
	}
	p.Cues = make([]Cue, available)
	for i := 0; i < available; i++ {
		if err := unmarshalCue(&p.Cues[i], b, cuesOffset+i*cueStride); err != nil {
			return err
		}
	}
	return nil
}

// WaveformSample is a single point of overview-waveform data. The
// reference source reads this as alternating level/color bytes; that
// interpretation is preserved here but is flagged as unverified, per the
// spec's Open Questions.
type WaveformSample struct {
	Level uint8
	Color uint8
}

// waveformSamplesOffset is where sample data begins in a Waveform body.
const waveformSamplesOffset = 42

// Waveform carries a (possibly fragmented) overview waveform for a layer.
// Size (Small/Big) only changes the expected total datagram length; the
// decoder itself is size-agnostic.
type Waveform struct {
	Header
	SubType      DataSubType
	LayerID      uint8
	DataSize     uint32
	TotalPacket  uint32
	PacketNumber uint32
	Samples      []WaveformSample
}

// UnmarshalBinary decodes b into a Waveform packet (one fragment).
func (p *Waveform) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, waveformSamplesOffset, "Waveform"); err != nil {
		return err
	}
	subType, err := ReadU8(b, 24)
	if err != nil {
		return err
	}
	p.SubType = DataSubType(subType)
	if p.LayerID, err = ReadU8(b, 25); err != nil {
		return err
	}
	if p.DataSize, err = ReadU32LE(b, 26); err != nil {
		return err
	}
	if p.TotalPacket, err = ReadU32LE(b, 30); err != nil {
		return err
	}
	if p.PacketNumber, err = ReadU32LE(b, 34); err != nil {
		return err
	}
	count := (len(b) - waveformSamplesOffset) / 2
	p.Samples = make([]WaveformSample, count)
	for i := 0; i < count; i++ {
		off := waveformSamplesOffset + i*2
		p.Samples[i] = WaveformSample{Level: b[off], Color: b[off+1]}
	}
	return nil
}

// MixerChannel is one of the six channel strips carried by a MixerData
// packet.
type MixerChannel struct {
	Source           uint8
	AudioLevel       uint8
	Fader            uint8
	Trim             uint8
	Comp             uint8
	EQHi             uint8
	EQHiMid          uint8
	EQLowMid         uint8
	EQLow            uint8
	FilterColor      uint8
	Send             uint8
	CueA             bool
	CueB             bool
	CrossfaderAssign uint8
}

const mixerChannelStride = 14

var mixerChannelOffsets = [6]int{125, 149, 173, 197, 221, 245}

func unmarshalMixerChannel(c *MixerChannel, b []byte, offset int) error {
	if err := need(b, offset, mixerChannelStride, "MixerChannel"); err != nil {
		return err
	}
	c.Source = b[offset]
	c.AudioLevel = b[offset+1]
	c.Fader = b[offset+2]
	c.Trim = b[offset+3]
	c.Comp = b[offset+4]
	c.EQHi = b[offset+5]
	c.EQHiMid = b[offset+6]
	c.EQLowMid = b[offset+7]
	c.EQLow = b[offset+8]
	c.FilterColor = b[offset+9]
	c.Send = b[offset+10]
	c.CueA = b[offset+11] != 0
	c.CueB = b[offset+12] != 0
	c.CrossfaderAssign = b[offset+13]
	return nil
}

// MixerDataLength is the fixed wire length of a MixerData data packet.
const MixerDataLength = 548

// MixerData carries the mixer-wide continuous-control state.
type MixerData struct {
	Header
	SubType             DataSubType
	MixerID             uint8
	MixerType           uint8
	MixerName           string
	MicEQHi             uint8
	MicEQLow            uint8
	MasterAudio         uint8
	MasterFader         uint8
	LinkCueA            uint8
	LinkCueB            uint8
	MasterFilter        uint8
	MasterCueA          uint8
	MasterCueB          uint8
	MasterIsolatorOnOff uint8
	IsoHi               uint8
	IsoMid              uint8
	IsoLow              uint8
	FilterHPF           uint8
	FilterLPF           uint8
	FilterRes           uint8
	SendFxEffect        uint8
	SendFxExt1          uint8
	SendFxExt2          uint8
	SendFxMasterMix     uint8
	SizeFeedback        uint8
	FxTime              uint8
	FxHPF               uint8
	FxLevel             uint8
	SendReturn3Source   uint8
	SendReturn3Type     uint8
	SendReturn3OnOff    uint8
	SendReturn3Level    uint8
	ChFaderCurve        uint8
	XFCurve             uint8
	XFader              uint8
	BeatFxOnOff         uint8
	BeatFxDepth         uint8
	BeatFxChannel       uint8
	BeatFxSelect        uint8
	BeatFxFreqHi        uint8
	BeatFxFreqMid       uint8
	BeatFxFreqLow       uint8
	HPPreEQ             uint8
	HPALevel            uint8
	HPAMix              uint8
	HPBLevel            uint8
	HPBMix              uint8
	BoothLevel          uint8
	BoothEQHi           uint8
	BoothEQLow          uint8
	Channels            [6]MixerChannel
}

// UnmarshalBinary decodes b into a MixerData packet.
func (p *MixerData) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, MixerDataLength, "MixerData"); err != nil {
		return err
	}
	u8 := func(off int) (uint8, error) { return ReadU8(b, off) }

	var err error
	subType, err := u8(24)
	if err != nil {
		return err
	}
	p.SubType = DataSubType(subType)
	if p.MixerID, err = u8(25); err != nil {
		return err
	}
	if p.MixerType, err = u8(26); err != nil {
		return err
	}
	if p.MixerName, err = ReadAscii(b, 29, 16); err != nil {
		return err
	}
	fields := []struct {
		dst *uint8
		off int
	}{
		{&p.MicEQHi, 59}, {&p.MicEQLow, 60}, {&p.MasterAudio, 61}, {&p.MasterFader, 62},
		{&p.LinkCueA, 67}, {&p.LinkCueB, 68}, {&p.MasterFilter, 69},
		{&p.MasterCueA, 71}, {&p.MasterCueB, 72}, {&p.MasterIsolatorOnOff, 74},
		{&p.IsoHi, 75}, {&p.IsoMid, 76}, {&p.IsoLow, 77},
		{&p.FilterHPF, 79}, {&p.FilterLPF, 80}, {&p.FilterRes, 81},
		{&p.SendFxEffect, 84}, {&p.SendFxExt1, 85}, {&p.SendFxExt2, 86}, {&p.SendFxMasterMix, 87},
		{&p.SizeFeedback, 88}, {&p.FxTime, 89}, {&p.FxHPF, 90}, {&p.FxLevel, 91},
		{&p.SendReturn3Source, 92}, {&p.SendReturn3Type, 93}, {&p.SendReturn3OnOff, 94}, {&p.SendReturn3Level, 95},
		{&p.ChFaderCurve, 97}, {&p.XFCurve, 98}, {&p.XFader, 99},
		{&p.BeatFxOnOff, 100}, {&p.BeatFxDepth, 101}, {&p.BeatFxChannel, 102}, {&p.BeatFxSelect, 103},
		{&p.BeatFxFreqHi, 104}, {&p.BeatFxFreqMid, 105}, {&p.BeatFxFreqLow, 106},
		{&p.HPPreEQ, 107}, {&p.HPALevel, 108}, {&p.HPAMix, 109}, {&p.HPBLevel, 110}, {&p.HPBMix, 111},
		{&p.BoothLevel, 112}, {&p.BoothEQHi, 113}, {&p.BoothEQLow, 114},
	}
	for _, f := range fields {
		if *f.dst, err = u8(f.off); err != nil {
			return err
		}
	}
	for i, off := range mixerChannelOffsets {
		if err := unmarshalMixerChannel(&p.Channels[i], b, off); err != nil {
			return err
		}
	}
	return nil
}

// decodeData dispatches a Data (200) message on its sub-type byte.
func decodeData(b []byte) (Packet, error) {
	subType, err := ReadU8(b, HeaderSize)
	if err != nil {
		return nil, err
	}
	switch DataSubType(subType) {
	case DataSubTypeMetrics:
		p := &Metrics{}
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return p, nil
	case DataSubTypeMetaData:
		p := &Metadata{}
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return p, nil
	case DataSubTypeCUE:
		p := &CueData{}
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return p, nil
	case DataSubTypeSmallWaveForm, DataSubTypeBigWaveForm:
		p := &Waveform{}
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return p, nil
	case DataSubTypeMixer:
		p := &MixerData{}
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return p, nil
	case DataSubTypeBeatGrid:
		// Layout is ambiguous in the reference source; recognized but
		// never decoded, per spec.
		return nil, &UnsupportedError{Kind: "BeatGrid"}
	default:
		return nil, &UnsupportedError{Kind: DataSubType(subType).String()}
	}
}
