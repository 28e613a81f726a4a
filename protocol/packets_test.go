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

func testHeader(mt MessageType) Header {
	return Header{
		NodeID:       7,
		MajorVersion: ProtocolMajorVersion,
		MinorVersion: 2,
		Type:         mt,
		NodeName:     "player-1",
		Sequence:     1,
		NodeType:     NodeTypeMaster,
		NodeOptions:  0,
		Timestamp:    123456,
	}
}

func TestOptInRoundTrip(t *testing.T) {
	p := &OptIn{
		Header:       testHeader(MessageOptIn),
		NodeCount:    4,
		ListenerPort: 60000,
		Uptime:       99,
		VendorName:   "Pioneer",
		AppName:      "rekordbox",
		Major:        3,
		Minor:        1,
		Bug:          0,
	}
	b, err := p.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, OptInLength)

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	got, ok := decoded.(*OptIn)
	require.True(t, ok)
	require.Equal(t, p.NodeID, got.NodeID)
	require.Equal(t, p.VendorName, got.VendorName)
	require.Equal(t, p.AppName, got.AppName)
	require.Equal(t, p.ListenerPort, got.ListenerPort)
	require.Equal(t, MessageOptIn, got.MessageType())
}

func TestOptOutRoundTrip(t *testing.T) {
	p := &OptOut{
		Header:       testHeader(MessageOptOut),
		NodeCount:    1,
		ListenerPort: 60001,
	}
	b, err := p.MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	got, ok := decoded.(*OptOut)
	require.True(t, ok)
	require.Equal(t, p.ListenerPort, got.ListenerPort)
}

func TestRequestRoundTrip(t *testing.T) {
	p := &Request{
		Header:   testHeader(MessageRequest),
		DataType: DataSubTypeMetrics,
		Layer:    2,
	}
	b, err := p.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, RequestLength)

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	got, ok := decoded.(*Request)
	require.True(t, ok)
	require.Equal(t, DataSubTypeMetrics, got.DataType)
	require.Equal(t, uint8(2), got.Layer)
}

func TestDecodePacketShortBuffer(t *testing.T) {
	_, err := DecodePacket(make([]byte, 4))
	require.Error(t, err)
	var herr *CodecError
	require.ErrorAs(t, err, &herr)
}

func TestDecodePacketBadMagic(t *testing.T) {
	b := make([]byte, HeaderSize)
	b[2] = ProtocolMajorVersion
	b[4], b[5], b[6] = 'X', 'X', 'X'
	_, err := DecodePacket(b)
	require.Error(t, err)
	var herr *HeaderError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, BadMagic, herr.Kind)
}

func TestDecodePacketBadVersion(t *testing.T) {
	b := make([]byte, HeaderSize)
	b[2] = 9
	b[4], b[5], b[6] = 'T', 'C', 'N'
	_, err := DecodePacket(b)
	require.Error(t, err)
	var herr *HeaderError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, BadVersion, herr.Kind)
}

func TestDecodePacketUnsupportedMessageType(t *testing.T) {
	b := make([]byte, HeaderSize)
	b[2] = ProtocolMajorVersion
	b[4], b[5], b[6] = 'T', 'C', 'N'
	b[7] = 250 // no such message type
	_, err := DecodePacket(b)
	require.Error(t, err)
	var uerr *UnsupportedError
	require.ErrorAs(t, err, &uerr)
}

func TestErrorNotificationDecode(t *testing.T) {
	b := make([]byte, ErrorLength)
	b[2] = ProtocolMajorVersion
	b[4], b[5], b[6] = 'T', 'C', 'N'
	b[7] = uint8(MessageError)
	b[24] = uint8(DataSubTypeCUE)
	b[25] = 3
	require.NoError(t, WriteU16LE(b, 26, uint16(ErrorRequestNotPossible)))

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	got, ok := decoded.(*ErrorNotification)
	require.True(t, ok)
	require.Equal(t, DataSubTypeCUE, got.DataType)
	require.Equal(t, uint8(3), got.LayerID)
	require.Equal(t, ErrorRequestNotPossible, got.Code)
}

func TestTextDecode(t *testing.T) {
	body := "hello booth"
	b := make([]byte, HeaderSize+len(body))
	b[2] = ProtocolMajorVersion
	b[4], b[5], b[6] = 'T', 'C', 'N'
	b[7] = uint8(MessageText)
	copy(b[HeaderSize:], body)

	decoded, err := DecodePacket(b)
	require.NoError(t, err)
	got, ok := decoded.(*Text)
	require.True(t, ok)
	require.Equal(t, body, got.Message)
}
