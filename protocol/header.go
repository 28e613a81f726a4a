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

// HeaderSize is the fixed length of the management header that prefixes
// every TCNet datagram.
const HeaderSize = 24

// ProtocolMajorVersion is the only major version this client speaks.
const ProtocolMajorVersion uint8 = 3

var magic = [3]byte{'T', 'C', 'N'}

// NodeType is the role a node advertises in its OptIn.
type NodeType uint8

// Node types as carried in the management header.
const (
	NodeTypeAuto     NodeType = 1
	NodeTypeMaster   NodeType = 2
	NodeTypeSlave    NodeType = 4
	NodeTypeRepeater NodeType = 8
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeAuto:
		return "Auto"
	case NodeTypeMaster:
		return "Master"
	case NodeTypeSlave:
		return "Slave"
	case NodeTypeRepeater:
		return "Repeater"
	default:
		return "Unknown"
	}
}

// MessageType identifies the shape of the body that follows the header.
type MessageType uint8

// Message types, per the byte at header offset 7.
const (
	MessageOptIn           MessageType = 2
	MessageOptOut          MessageType = 3
	MessageStatus          MessageType = 5
	MessageTimeSync        MessageType = 10
	MessageError           MessageType = 13
	MessageRequest         MessageType = 20
	MessageApplicationData MessageType = 30
	MessageControl         MessageType = 101
	MessageText            MessageType = 128
	MessageKeyboard        MessageType = 132
	MessageData            MessageType = 200
	MessageFile            MessageType = 204
	MessageTime            MessageType = 254
)

var messageTypeNames = map[MessageType]string{
	MessageOptIn:           "OptIn",
	MessageOptOut:          "OptOut",
	MessageStatus:          "Status",
	MessageTimeSync:        "TimeSync",
	MessageError:           "Error",
	MessageRequest:         "Request",
	MessageApplicationData: "ApplicationData",
	MessageControl:         "Control",
	MessageText:            "Text",
	MessageKeyboard:        "Keyboard",
	MessageData:            "Data",
	MessageFile:            "File",
	MessageTime:            "Time",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// DataSubType selects the payload shape of a Data (200) message, carried
// in the byte immediately following the header.
type DataSubType uint8

// Data sub-types, per the byte at offset 24 of any Data packet.
const (
	DataSubTypeMetrics       DataSubType = 2
	DataSubTypeMetaData      DataSubType = 4
	DataSubTypeBeatGrid      DataSubType = 8
	DataSubTypeCUE           DataSubType = 12
	DataSubTypeSmallWaveForm DataSubType = 16
	DataSubTypeBigWaveForm   DataSubType = 32
	DataSubTypeMixer         DataSubType = 150
)

var dataSubTypeNames = map[DataSubType]string{
	DataSubTypeMetrics:       "Metrics",
	DataSubTypeMetaData:      "MetaData",
	DataSubTypeBeatGrid:      "BeatGrid",
	DataSubTypeCUE:           "CUE",
	DataSubTypeSmallWaveForm: "SmallWaveForm",
	DataSubTypeBigWaveForm:   "BigWaveForm",
	DataSubTypeMixer:         "Mixer",
}

func (t DataSubType) String() string {
	if name, ok := dataSubTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Header is the 24-byte management header prefixing every TCNet datagram.
type Header struct {
	NodeID       uint16
	MajorVersion uint8
	MinorVersion uint8
	Type         MessageType
	NodeName     string
	Sequence     uint8
	NodeType     NodeType
	NodeOptions  uint16
	Timestamp    uint32
}

// MessageType returns the header's message type. Lets any struct embedding
// Header satisfy the Packet interface for free.
func (h *Header) MessageType() MessageType {
	return h.Type
}

// SetSequence sets the header's sequence number.
func (h *Header) SetSequence(seq uint8) {
	h.Sequence = seq
}

// SourceNodeID returns the header's node id. Named distinctly from the
// NodeID field (Go forbids a method and field sharing a name) so client
// code can identify a decoded packet's sender without a type switch over
// every packet shape.
func (h *Header) SourceNodeID() uint16 {
	return h.NodeID
}

// unmarshalHeader decodes and validates the 24-byte header prefix of b. It
// is not Header.UnmarshalBinary so that embedding Header doesn't silently
// give every packet type a (wrong, header-only) encoding.BinaryUnmarshaler.
func unmarshalHeader(h *Header, b []byte) error {
	if err := need(b, 0, HeaderSize, "Header"); err != nil {
		return err
	}
	nodeID, _ := ReadU16LE(b, 0)
	major, _ := ReadU8(b, 2)
	minor, _ := ReadU8(b, 3)
	if b[4] != magic[0] || b[5] != magic[1] || b[6] != magic[2] {
		return &HeaderError{Kind: BadMagic}
	}
	if major != ProtocolMajorVersion {
		return &HeaderError{Kind: BadVersion}
	}
	msgType, _ := ReadU8(b, 7)
	name, err := ReadAscii(b, 8, 8)
	if err != nil {
		return err
	}
	seq, _ := ReadU8(b, 16)
	nodeType, _ := ReadU8(b, 17)
	opts, _ := ReadU16LE(b, 18)
	ts, _ := ReadU32LE(b, 20)

	h.NodeID = nodeID
	h.MajorVersion = major
	h.MinorVersion = minor
	h.Type = MessageType(msgType)
	h.NodeName = name
	h.Sequence = seq
	h.NodeType = NodeType(nodeType)
	h.NodeOptions = opts
	h.Timestamp = ts
	return nil
}

// marshalHeader encodes h into the first HeaderSize bytes of b.
func marshalHeader(h *Header, b []byte) error {
	if err := need(b, 0, HeaderSize, "Header"); err != nil {
		return err
	}
	_ = WriteU16LE(b, 0, h.NodeID)
	_ = WriteU8(b, 2, h.MajorVersion)
	_ = WriteU8(b, 3, h.MinorVersion)
	copy(b[4:7], magic[:])
	_ = WriteU8(b, 7, uint8(h.Type))
	if err := WriteAscii(b, 8, 8, h.NodeName, 0x00); err != nil {
		return err
	}
	_ = WriteU8(b, 16, h.Sequence)
	_ = WriteU8(b, 17, uint8(h.NodeType))
	_ = WriteU16LE(b, 18, h.NodeOptions)
	_ = WriteU32LE(b, 20, h.Timestamp)
	return nil
}
