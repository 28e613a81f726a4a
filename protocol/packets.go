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

import "fmt"

// Packet is implemented by every decoded TCNet message.
type Packet interface {
	MessageType() MessageType
}

// ErrorCode is the code carried by an Error (13) notification.
type ErrorCode uint16

// Error codes defined by the protocol; only RequestResponseOK is not an error.
const (
	ErrorRequestUnknown      ErrorCode = 0
	ErrorRequestNotPossible  ErrorCode = 13
	ErrorRequestDataEmpty    ErrorCode = 14
	ErrorRequestResponseOK   ErrorCode = 255
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorRequestUnknown:
		return "REQUEST_UNKNOWN"
	case ErrorRequestNotPossible:
		return "REQUEST_NOT_POSSIBLE"
	case ErrorRequestDataEmpty:
		return "REQUEST_DATA_EMPTY"
	case ErrorRequestResponseOK:
		return "REQUEST_RESPONSE_OK"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint16(c))
	}
}

// OptIn announces a node joining the segment and advertises where to reach it.
type OptIn struct {
	Header
	NodeCount    uint16
	ListenerPort uint16
	Uptime       uint16
	VendorName   string
	AppName      string
	Major        uint8
	Minor        uint8
	Bug          uint8
}

// OptInLength is the fixed wire length of an OptIn packet.
const OptInLength = 68

// UnmarshalBinary decodes b into an OptIn packet.
func (p *OptIn) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, OptInLength, "OptIn"); err != nil {
		return err
	}
	var err error
	if p.NodeCount, err = ReadU16LE(b, 24); err != nil {
		return err
	}
	if p.ListenerPort, err = ReadU16LE(b, 26); err != nil {
		return err
	}
	if p.Uptime, err = ReadU16LE(b, 28); err != nil {
		return err
	}
	if p.VendorName, err = ReadAscii(b, 32, 16); err != nil {
		return err
	}
	if p.AppName, err = ReadAscii(b, 48, 16); err != nil {
		return err
	}
	if p.Major, err = ReadU8(b, 64); err != nil {
		return err
	}
	if p.Minor, err = ReadU8(b, 65); err != nil {
		return err
	}
	if p.Bug, err = ReadU8(b, 66); err != nil {
		return err
	}
	return nil
}

// MarshalBinary encodes p into a fresh OptInLength-byte buffer.
func (p *OptIn) MarshalBinary() ([]byte, error) {
	b := make([]byte, OptInLength)
	if err := marshalHeader(&p.Header, b); err != nil {
		return nil, err
	}
	_ = WriteU16LE(b, 24, p.NodeCount)
	_ = WriteU16LE(b, 26, p.ListenerPort)
	_ = WriteU16LE(b, 28, p.Uptime)
	if err := WriteAscii(b, 32, 16, p.VendorName, 0x00); err != nil {
		return nil, err
	}
	if err := WriteAscii(b, 48, 16, p.AppName, 0x00); err != nil {
		return nil, err
	}
	_ = WriteU8(b, 64, p.Major)
	_ = WriteU8(b, 65, p.Minor)
	_ = WriteU8(b, 66, p.Bug)
	return b, nil
}

// OptOut announces a node leaving the segment.
type OptOut struct {
	Header
	NodeCount    uint16
	ListenerPort uint16
}

// OptOutLength is the fixed wire length of an OptOut packet.
const OptOutLength = 28

// UnmarshalBinary decodes b into an OptOut packet.
func (p *OptOut) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, OptOutLength, "OptOut"); err != nil {
		return err
	}
	var err error
	if p.NodeCount, err = ReadU16LE(b, 24); err != nil {
		return err
	}
	if p.ListenerPort, err = ReadU16LE(b, 26); err != nil {
		return err
	}
	return nil
}

// MarshalBinary encodes p into a fresh OptOutLength-byte buffer.
func (p *OptOut) MarshalBinary() ([]byte, error) {
	b := make([]byte, OptOutLength)
	if err := marshalHeader(&p.Header, b); err != nil {
		return nil, err
	}
	_ = WriteU16LE(b, 24, p.NodeCount)
	_ = WriteU16LE(b, 26, p.ListenerPort)
	return b, nil
}

// StatusLength is the fixed wire length of a Status packet.
const StatusLength = 300

// Status carries the per-layer snapshot a node broadcasts periodically.
type Status struct {
	Header
	LayerSource     [8]uint8
	LayerStatus     [8]uint8
	TrackID         [8]uint32
	SMPTEMode       uint8
	AutoMasterMode  uint8
	LayerName       [8]string
}

// UnmarshalBinary decodes b into a Status packet.
func (p *Status) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, StatusLength, "Status"); err != nil {
		return err
	}
	var err error
	for i := 0; i < 8; i++ {
		if p.LayerSource[i], err = ReadU8(b, 34+i); err != nil {
			return err
		}
		if p.LayerStatus[i], err = ReadU8(b, 42+i); err != nil {
			return err
		}
		if p.TrackID[i], err = ReadU32LE(b, 50+4*i); err != nil {
			return err
		}
	}
	if p.SMPTEMode, err = ReadU8(b, 83); err != nil {
		return err
	}
	if p.AutoMasterMode, err = ReadU8(b, 84); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		if p.LayerName[i], err = ReadAscii(b, 172+16*i, 16); err != nil {
			return err
		}
	}
	return nil
}

// TimeSyncLength is the fixed wire length of a TimeSync packet.
const TimeSyncLength = 32

// TimeSync carries the time-synchronization handshake step.
//
// The source reads nodeListenerSupport from absolute header offset 2,
// which collides with MinorVersion and is almost certainly a source bug
// (see spec Open Questions); this decoder instead reads it from body
// offset 26, which is otherwise unused in this message.
type TimeSync struct {
	Header
	Step             uint8
	ListenerSupport  uint16
	RemoteTimestamp  uint32
}

// UnmarshalBinary decodes b into a TimeSync packet.
func (p *TimeSync) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, TimeSyncLength, "TimeSync"); err != nil {
		return err
	}
	var err error
	if p.Step, err = ReadU8(b, 24); err != nil {
		return err
	}
	if p.ListenerSupport, err = ReadU16LE(b, 26); err != nil {
		return err
	}
	if p.RemoteTimestamp, err = ReadU32LE(b, 28); err != nil {
		return err
	}
	return nil
}

// ErrorLength is the fixed wire length of an Error packet.
const ErrorLength = 30

// ErrorNotification is sent by a peer in response to a Request it could
// not satisfy.
type ErrorNotification struct {
	Header
	DataType DataSubType
	LayerID  uint8
	Code     ErrorCode
	MsgType  uint16
}

// UnmarshalBinary decodes b into an ErrorNotification packet.
func (p *ErrorNotification) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, ErrorLength, "Error"); err != nil {
		return err
	}
	dt, err := ReadU8(b, 24)
	if err != nil {
		return err
	}
	p.DataType = DataSubType(dt)
	if p.LayerID, err = ReadU8(b, 25); err != nil {
		return err
	}
	code, err := ReadU16LE(b, 26)
	if err != nil {
		return err
	}
	p.Code = ErrorCode(code)
	if p.MsgType, err = ReadU16LE(b, 28); err != nil {
		return err
	}
	return nil
}

// RequestLength is the fixed wire length of a Request packet.
const RequestLength = 26

// Request asks a peer for a specific per-layer payload.
type Request struct {
	Header
	DataType DataSubType
	Layer    uint8
}

// UnmarshalBinary decodes b into a Request packet.
func (p *Request) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, RequestLength, "Request"); err != nil {
		return err
	}
	dt, err := ReadU8(b, 24)
	if err != nil {
		return err
	}
	p.DataType = DataSubType(dt)
	if p.Layer, err = ReadU8(b, 25); err != nil {
		return err
	}
	return nil
}

// MarshalBinary encodes p into a fresh RequestLength-byte buffer.
func (p *Request) MarshalBinary() ([]byte, error) {
	b := make([]byte, RequestLength)
	if err := marshalHeader(&p.Header, b); err != nil {
		return nil, err
	}
	_ = WriteU8(b, 24, uint8(p.DataType))
	_ = WriteU8(b, 25, p.Layer)
	return b, nil
}

// TimecodeState is the transport state carried in a Timecode.
type TimecodeState uint8

// Timecode states.
const (
	TimecodeStopped     TimecodeState = 0
	TimecodeRunning     TimecodeState = 1
	TimecodeForceResync TimecodeState = 2
)

// Timecode is the 6-byte SMPTE timecode structure embedded in Time packets.
type Timecode struct {
	Mode    uint8
	State   TimecodeState
	Hours   uint8
	Minutes uint8
	Seconds uint8
	Frames  uint8
}

func unmarshalTimecode(tc *Timecode, b []byte, offset int) error {
	if err := need(b, offset, 6, "Timecode"); err != nil {
		return err
	}
	tc.Mode = b[offset]
	tc.State = TimecodeState(b[offset+1])
	tc.Hours = b[offset+2]
	tc.Minutes = b[offset+3]
	tc.Seconds = b[offset+4]
	tc.Frames = b[offset+5]
	return nil
}

// TimeLength is the fixed wire length of a Time packet.
const TimeLength = 154

// TimePacket carries per-layer transport time and SMPTE timecode state.
type TimePacket struct {
	Header
	LayerCurrentTime [8]uint32
	LayerTotalTime   [8]uint32
	BeatMarker       [8]uint8
	State            [8]uint8
	SMPTEMode        uint8
	Timecode         [8]Timecode
}

// UnmarshalBinary decodes b into a TimePacket.
func (p *TimePacket) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, TimeLength, "Time"); err != nil {
		return err
	}
	var err error
	for i := 0; i < 8; i++ {
		if p.LayerCurrentTime[i], err = ReadU32LE(b, 24+4*i); err != nil {
			return err
		}
		if p.LayerTotalTime[i], err = ReadU32LE(b, 56+4*i); err != nil {
			return err
		}
		if p.BeatMarker[i], err = ReadU8(b, 88+i); err != nil {
			return err
		}
		if p.State[i], err = ReadU8(b, 96+i); err != nil {
			return err
		}
	}
	if p.SMPTEMode, err = ReadU8(b, 105); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		if err := unmarshalTimecode(&p.Timecode[i], b, 106+6*i); err != nil {
			return err
		}
	}
	return nil
}

// Control is an opaque control-channel message; the reference source does
// not define its payload precisely enough to decode further than the header.
type Control struct {
	Header
	Payload []byte
}

// UnmarshalBinary decodes b into a Control packet, keeping everything past
// the header as an opaque payload.
func (p *Control) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	payload, err := ReadBytes(b, HeaderSize, len(b)-HeaderSize)
	if err != nil {
		return err
	}
	p.Payload = payload
	return nil
}

// Text carries an operator-visible message.
type Text struct {
	Header
	Message string
}

// UnmarshalBinary decodes b into a Text packet. The body is a single ASCII
// run to the end of the datagram, NUL-truncated like any other string field.
func (p *Text) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	msg, err := ReadAscii(b, HeaderSize, len(b)-HeaderSize)
	if err != nil {
		return err
	}
	p.Message = msg
	return nil
}

// Keyboard carries a remote keypress. The reference source declares a
// DataSize field and then hard-codes a 2-byte payload regardless of its
// value; per spec this decoder records both without trying to reconcile
// them.
type Keyboard struct {
	Header
	DataSize uint16
	Payload  []byte
}

// KeyboardHeaderLength is the length of the fixed portion before Payload.
const KeyboardHeaderLength = HeaderSize + 2

// UnmarshalBinary decodes b into a Keyboard packet.
func (p *Keyboard) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := need(b, 0, KeyboardHeaderLength, "Keyboard"); err != nil {
		return err
	}
	size, err := ReadU16LE(b, HeaderSize)
	if err != nil {
		return err
	}
	p.DataSize = size
	payload, err := ReadBytes(b, HeaderSize+2, 2)
	if err != nil {
		return err
	}
	p.Payload = payload
	return nil
}

// File is a generic file-transport message. The reference source's file
// transport is ambiguous enough that only the header and an opaque payload
// are kept.
type File struct {
	Header
	Payload []byte
}

// UnmarshalBinary decodes b into a File packet, keeping the body opaque.
func (p *File) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	payload, err := ReadBytes(b, HeaderSize, len(b)-HeaderSize)
	if err != nil {
		return err
	}
	p.Payload = payload
	return nil
}

// DecodePacket validates the management header and dispatches to the
// matching packet shape, the single entry point for turning a raw
// datagram into a typed Packet.
func DecodePacket(b []byte) (Packet, error) {
	if err := need(b, 0, HeaderSize, "Header"); err != nil {
		return nil, err
	}
	if b[4] != magic[0] || b[5] != magic[1] || b[6] != magic[2] {
		return nil, &HeaderError{Kind: BadMagic}
	}
	if b[2] != ProtocolMajorVersion {
		return nil, &HeaderError{Kind: BadVersion}
	}
	msgType := MessageType(b[7])
	var p interface {
		UnmarshalBinary([]byte) error
		MessageType() MessageType
	}
	switch msgType {
	case MessageOptIn:
		p = &OptIn{}
	case MessageOptOut:
		p = &OptOut{}
	case MessageStatus:
		p = &Status{}
	case MessageTimeSync:
		p = &TimeSync{}
	case MessageError:
		p = &ErrorNotification{}
	case MessageRequest:
		p = &Request{}
	case MessageTime:
		p = &TimePacket{}
	case MessageControl:
		p = &Control{}
	case MessageText:
		p = &Text{}
	case MessageKeyboard:
		p = &Keyboard{}
	case MessageFile:
		p = &File{}
	case MessageData:
		return decodeData(b)
	default:
		return nil, &UnsupportedError{Kind: msgType.String()}
	}
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}
