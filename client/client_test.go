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
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tcnet-go/tcnet/client/peer"
	"github.com/tcnet-go/tcnet/protocol"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	return New(cfg)
}

func TestHandlePacketOptInAddsPeerAndSignalsFirst(t *testing.T) {
	c := testClient(t)
	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 60000}
	in := &protocol.OptIn{Header: protocol.Header{NodeID: 42, NodeType: protocol.NodeTypeMaster}, ListenerPort: 61000}

	c.handlePacket(in, from)

	p, ok := c.peers.Get(42)
	require.True(t, ok)
	assert.Equal(t, uint16(61000), p.ListenerPort)

	select {
	case <-c.firstPeerCh:
	default:
		t.Fatal("expected firstPeerCh to be closed after first OptIn")
	}
}

func TestHandlePacketOptOutRemovesPeerAndCancelsPending(t *testing.T) {
	c := testClient(t)
	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 60000}
	c.handlePacket(&protocol.OptIn{Header: protocol.Header{NodeID: 7}}, from)

	key := pendingKey{peerNodeID: 7, dataType: protocol.DataSubTypeMetrics, layer: 1}
	entry, _ := c.pending.register(key)

	c.handlePacket(&protocol.OptOut{Header: protocol.Header{NodeID: 7}}, from)

	_, ok := c.peers.Get(7)
	assert.False(t, ok)
	<-entry.done
	assert.Error(t, entry.result.err)
}

func TestHandlePacketCompletesPendingMetricsAnyLayer(t *testing.T) {
	c := testClient(t)
	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 60000}
	key := pendingKey{peerNodeID: 3, dataType: protocol.DataSubTypeMetrics, layer: 1}
	entry, _ := c.pending.register(key)

	m := &protocol.Metrics{Header: protocol.Header{NodeID: 3}, SubType: protocol.DataSubTypeMetrics, BPM: 12000}
	c.handlePacket(m, from)

	<-entry.done
	require.NoError(t, entry.result.err)
	assert.Same(t, protocol.Packet(m), entry.result.payload)
}

func TestHandlePacketPublishesUnmatchedMetricsToSubscribers(t *testing.T) {
	c := testClient(t)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 60000}
	m := &protocol.Metrics{Header: protocol.Header{NodeID: 9}, SubType: protocol.DataSubTypeMetrics}
	c.handlePacket(m, from)

	select {
	case ev := <-events:
		assert.Same(t, protocol.Packet(m), ev.Packet)
	case <-time.After(time.Second):
		t.Fatal("expected the unmatched Metrics packet to reach the event stream")
	}
}

func TestHandlePacketAssemblesWaveformBeforeCompleting(t *testing.T) {
	c := testClient(t)
	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 60000}
	key := pendingKey{peerNodeID: 5, dataType: protocol.DataSubTypeSmallWaveForm, layer: 1}
	entry, _ := c.pending.register(key)

	c.handlePacket(&protocol.Waveform{
		Header: protocol.Header{NodeID: 5}, SubType: protocol.DataSubTypeSmallWaveForm, LayerID: 1,
		TotalPacket: 2, PacketNumber: 0, Samples: []protocol.WaveformSample{{Level: 1}},
	}, from)

	select {
	case <-entry.done:
		t.Fatal("entry should not complete until every fragment has arrived")
	default:
	}

	c.handlePacket(&protocol.Waveform{
		Header: protocol.Header{NodeID: 5}, SubType: protocol.DataSubTypeSmallWaveForm, LayerID: 1,
		TotalPacket: 2, PacketNumber: 1, Samples: []protocol.WaveformSample{{Level: 2}},
	}, from)

	<-entry.done
	require.NoError(t, entry.result.err)
	wf := entry.result.payload.(*protocol.Waveform)
	assert.Len(t, wf.Samples, 2)
}

func TestHandlePacketForwardsUnmatchedWaveformFragmentInsteadOfBuffering(t *testing.T) {
	c := testClient(t)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 60000}
	key := pendingKey{peerNodeID: 6, dataType: protocol.DataSubTypeSmallWaveForm, layer: 1}
	wf := &protocol.Waveform{
		Header: protocol.Header{NodeID: 6}, SubType: protocol.DataSubTypeSmallWaveForm, LayerID: 1,
		TotalPacket: 2, PacketNumber: 0, Samples: []protocol.WaveformSample{{Level: 7}},
	}

	c.handlePacket(wf, from)

	select {
	case ev := <-events:
		assert.Same(t, protocol.Packet(wf), ev.Packet)
	case <-time.After(time.Second):
		t.Fatal("expected the unsolicited Waveform fragment to reach the event stream")
	}

	c.waveforms.mu.Lock()
	_, buffered := c.waveforms.inFlight[key]
	c.waveforms.mu.Unlock()
	assert.False(t, buffered, "an unmatched fragment should not have been retained by the assembler")
}

func TestHandlePacketErrorNotificationFailsPendingRequest(t *testing.T) {
	c := testClient(t)
	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 60000}
	key := pendingKey{peerNodeID: 11, dataType: protocol.DataSubTypeCUE, layer: 2}
	entry, _ := c.pending.register(key)

	c.handlePacket(&protocol.ErrorNotification{
		Header: protocol.Header{NodeID: 11}, DataType: protocol.DataSubTypeCUE, LayerID: 2, Code: protocol.ErrorRequestNotPossible,
	}, from)

	<-entry.done
	var protoErr *ProtocolError
	require.ErrorAs(t, entry.result.err, &protoErr)
	assert.Equal(t, protocol.ErrorRequestNotPossible, protoErr.Code)
}

func TestRequestFromPeerCoalescesConcurrentCallers(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := NewMockUDPConn(ctrl)
	conn.EXPECT().WriteTo(gomock.Any(), gomock.Any()).Return(0, nil).Times(1)

	c := testClient(t)
	c.transport = &transport{unicast: conn, unicastPort: 61000, inChan: make(chan *inPacket, 1)}
	pr := &peer.Peer{NodeID: 1, RemoteIP: net.ParseIP("10.0.0.1"), ListenerPort: 61001}

	var wg sync.WaitGroup
	results := make([]protocol.Packet, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pkt, err := c.requestFromPeer(context.Background(), pr, protocol.DataSubTypeMetaData, 1)
			require.NoError(t, err)
			results[i] = pkt
		}(i)
	}

	// Give both goroutines a chance to register before completing the
	// request out from under the dispatch loop (which isn't running here).
	time.Sleep(20 * time.Millisecond)
	reply := &protocol.Metadata{Header: protocol.Header{NodeID: 1}, SubType: protocol.DataSubTypeMetaData, TrackArtist: "Artist"}
	ok := c.pending.completeAnyLayer(1, protocol.DataSubTypeMetaData, reply, nil)
	require.True(t, ok)

	wg.Wait()
	assert.Same(t, protocol.Packet(reply), results[0])
	assert.Same(t, protocol.Packet(reply), results[1])
}

func TestRequestFromPeerTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := NewMockUDPConn(ctrl)
	conn.EXPECT().WriteTo(gomock.Any(), gomock.Any()).Return(0, nil).Times(1)

	c := testClient(t)
	c.transport = &transport{unicast: conn, unicastPort: 61000, inChan: make(chan *inPacket, 1)}
	pr := &peer.Peer{NodeID: 2, RemoteIP: net.ParseIP("10.0.0.2"), ListenerPort: 61002}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.requestFromPeer(ctx, pr, protocol.DataSubTypeMetrics, 1)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}
