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

// Package client implements a TCNet client: it announces itself on the
// broadcast segment, tracks the peers it hears from, and lets callers
// request per-layer track metadata, metrics, cue points, waveforms, and
// mixer state, or subscribe to the raw decoded packet stream.
package client

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tcnet-go/tcnet/client/peer"
	"github.com/tcnet-go/tcnet/protocol"
)

// WaveformSize selects which of the two waveform resolutions to request.
type WaveformSize int

// Waveform resolutions a peer can be asked for.
const (
	WaveformSmall WaveformSize = iota
	WaveformBig
)

// TrackInfo is the façade's view of a MetaData reply.
type TrackInfo struct {
	TrackArtist string
	TrackTitle  string
	TrackKey    uint16
	TrackID     uint32
}

// LayerMetrics is the façade's view of a Metrics reply.
type LayerMetrics struct {
	State       uint8
	BeatNumber  uint32
	BPM         uint32
	Position    uint32
	TrackLength uint32
	Speed       uint32
	PitchBend   uint16
	TrackID     uint32
}

// sourcedPacket is satisfied by every Packet whose Header is reachable,
// which is all of them; used to refresh a peer's LastSeen generically
// instead of type-switching over every packet shape.
type sourcedPacket interface {
	protocol.Packet
	SourceNodeID() uint16
}

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateShutdown
)

// Client is a connected TCNet session.
type Client struct {
	cfg *Config

	mu        sync.Mutex
	state     runState
	nodeID    uint16
	seq       uint8
	startedAt time.Time

	transport *transport
	peers     *peer.Registry
	pending   *pendingTable
	waveforms *waveformAssembler
	events    *eventBus
	metrics   *Metrics

	cancel context.CancelFunc
	eg     *errgroup.Group

	firstPeerOnce sync.Once
	firstPeerCh   chan struct{}
}

// New constructs a Client from cfg without opening any sockets; call
// Connect to actually join the segment.
func New(cfg *Config) *Client {
	return &Client{
		cfg:         cfg,
		nodeID:      randomNodeID(),
		peers:       peer.NewRegistry(),
		pending:     newPendingTable(),
		waveforms:   newWaveformAssembler(),
		events:      newEventBus(cfg.EventBufferSize),
		metrics:     NewMetrics(),
		firstPeerCh: make(chan struct{}),
	}
}

func randomNodeID() uint16 {
	// Node id 0 is reserved for "no source" in a handful of fields
	// elsewhere in the protocol; keep our own id out of that range.
	return uint16(1 + rand.Intn(0xFFFE))
}

// Connect opens the client's UDP endpoints, starts its background loops,
// and sends its first OptIn announcement.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return fmt.Errorf("tcnet: client already connected")
	}
	t, err := setupTransport(c.cfg)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.transport = t
	c.startedAt = time.Now()
	c.state = stateRunning
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(runCtx)
	c.cancel = cancel
	c.eg = eg

	t.run(egCtx, eg)
	eg.Go(func() error { return c.dispatchLoop(egCtx) })
	eg.Go(func() error { return c.announceLoop(egCtx) })

	if err := c.sendOptIn(); err != nil {
		log.Warnf("tcnet: initial OptIn failed: %v", err)
	}
	return nil
}

// Disconnect announces departure, cancels every background loop, fails
// any still-pending request with ShutdownError, and releases sockets.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state != stateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = stateShutdown
	t := c.transport
	c.mu.Unlock()

	if err := c.sendOptOut(); err != nil {
		log.Warnf("tcnet: OptOut failed: %v", err)
	}
	c.cancel()
	_ = c.eg.Wait()
	cancelled := c.pending.cancelAll(&ShutdownError{})
	c.waveforms.discardKeys(cancelled)
	t.close()
	c.events.closeAll()
	return nil
}

// Subscribe returns a channel of every decoded packet the client sees
// that wasn't consumed by a matching in-flight request, and a function
// to stop receiving them.
func (c *Client) Subscribe() (<-chan Event, func()) {
	return c.events.Subscribe()
}

// Peers returns a snapshot of every currently tracked peer.
func (c *Client) Peers() []*peer.Peer {
	return c.peers.All()
}

// NodeID is this client's own randomly assigned node id.
func (c *Client) NodeID() uint16 {
	return c.nodeID
}

// Metrics returns the client's own Prometheus collectors, so a caller can
// serve them on /metrics without losing track of which Client they belong
// to (see client/metrics.go).
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

func (c *Client) nextSeq() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.seq
	c.seq++
	return s
}

func (c *Client) buildHeader(mt protocol.MessageType) protocol.Header {
	return protocol.Header{
		NodeID:       c.nodeID,
		MajorVersion: protocol.ProtocolMajorVersion,
		MinorVersion: 0,
		Type:         mt,
		NodeName:     c.cfg.NodeName,
		Sequence:     c.nextSeq(),
		NodeType:     protocol.NodeTypeSlave,
		Timestamp:    uint32(time.Now().UnixMilli()),
	}
}

func (c *Client) sendOptIn() error {
	p := &protocol.OptIn{
		Header:       c.buildHeader(protocol.MessageOptIn),
		NodeCount:    1,
		ListenerPort: c.transport.unicastPort,
		Uptime:       uint16(time.Since(c.startedAt).Seconds()),
		VendorName:   c.cfg.VendorName,
		AppName:      c.cfg.AppName,
	}
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	c.logSent(p.MessageType(), "node=%d listenerPort=%d", c.nodeID, p.ListenerPort)
	return c.transport.sendBroadcast(b)
}

func (c *Client) sendOptOut() error {
	p := &protocol.OptOut{
		Header:       c.buildHeader(protocol.MessageOptOut),
		NodeCount:    1,
		ListenerPort: c.transport.unicastPort,
	}
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	c.logSent(p.MessageType(), "node=%d", c.nodeID)
	return c.transport.sendBroadcast(b)
}

// announceLoop re-sends OptIn on cfg.OptInInterval and sweeps peers that
// have gone quiet for longer than the configured idle threshold.
func (c *Client) announceLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.OptInInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.sendOptIn(); err != nil {
				log.Warnf("tcnet: OptIn failed: %v", err)
			}
			evicted := c.peers.Sweep(time.Now(), c.cfg.PeerIdleTimeout())
			for _, nodeID := range evicted {
				cancelled := c.pending.cancelPeer(nodeID, &PeerGoneError{requestContext: requestContext{PeerNodeID: nodeID}})
				c.waveforms.discardKeys(cancelled)
				c.metrics.PeersEvicted.Inc()
			}
		}
	}
}

// dispatchLoop reads raw datagrams off the transport, decodes them, and
// routes each packet: discovery bookkeeping, pending-request completion,
// or, failing both, the subscriber event stream.
func (c *Client) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-c.transport.inChan:
			pkt, err := protocol.DecodePacket(in.data)
			if err != nil {
				log.Debugf("tcnet: dropping undecodable packet from %v: %v", in.from, err)
				c.metrics.DecodeErrors.Inc()
				continue
			}
			c.logReceive(pkt.MessageType(), "from=%v", in.from)
			c.handlePacket(pkt, in.from)
		}
	}
}

func (c *Client) handlePacket(pkt protocol.Packet, from *net.UDPAddr) {
	now := time.Now()
	forward := true

	switch p := pkt.(type) {
	case *protocol.OptIn:
		_, added := c.peers.Touch(p.NodeID, from.IP, p, now)
		if added {
			c.metrics.PeersKnown.Set(float64(c.peers.Len()))
			c.signalFirstPeer()
		}
	case *protocol.OptOut:
		if c.peers.Remove(p.NodeID) {
			cancelled := c.pending.cancelPeer(p.NodeID, &PeerGoneError{requestContext: requestContext{PeerNodeID: p.NodeID}})
			c.waveforms.discardKeys(cancelled)
			c.metrics.PeersKnown.Set(float64(c.peers.Len()))
		}
	case *protocol.ErrorNotification:
		c.peers.Refresh(p.NodeID, now)
		key := pendingKey{peerNodeID: p.NodeID, dataType: p.DataType, layer: p.LayerID}
		protoErr := &ProtocolError{requestContext: requestContext{PeerNodeID: p.NodeID, DataType: p.DataType, Layer: p.LayerID}, Code: p.Code}
		if c.pending.complete(key, nil, protoErr) || c.pending.completeAnyLayer(p.NodeID, p.DataType, nil, protoErr) {
			forward = false
		}
	case *protocol.Metrics:
		c.peers.Refresh(p.NodeID, now)
		if c.pending.completeAnyLayer(p.NodeID, p.SubType, p, nil) {
			forward = false
		}
	case *protocol.Metadata:
		c.peers.Refresh(p.NodeID, now)
		if c.pending.completeAnyLayer(p.NodeID, p.SubType, p, nil) {
			forward = false
		}
	case *protocol.MixerData:
		c.peers.Refresh(p.NodeID, now)
		if c.pending.completeAnyLayer(p.NodeID, p.SubType, p, nil) {
			forward = false
		}
	case *protocol.CueData:
		c.peers.Refresh(p.NodeID, now)
		key := pendingKey{peerNodeID: p.NodeID, dataType: p.SubType, layer: p.LayerID}
		if c.pending.complete(key, p, nil) {
			forward = false
		}
	case *protocol.Waveform:
		c.peers.Refresh(p.NodeID, now)
		key := pendingKey{peerNodeID: p.NodeID, dataType: p.SubType, layer: p.LayerID}
		// Only buffer fragments for a request this client actually made;
		// an unsolicited waveform (no matching pending entry) is forwarded
		// as-is rather than accumulated forever in the assembler.
		if !c.pending.has(key) {
			break
		}
		samples, done := c.waveforms.addFragment(key, p)
		forward = false
		if done {
			assembled := &protocol.Waveform{
				Header:       p.Header,
				SubType:      p.SubType,
				LayerID:      p.LayerID,
				DataSize:     p.DataSize,
				TotalPacket:  p.TotalPacket,
				PacketNumber: p.TotalPacket - 1,
				Samples:      samples,
			}
			if !c.pending.complete(key, assembled, nil) {
				c.events.publish(Event{Packet: assembled, From: from})
			}
		}
	default:
		if sp, ok := pkt.(sourcedPacket); ok {
			c.peers.Refresh(sp.SourceNodeID(), now)
		}
	}

	if forward {
		c.events.publish(Event{Packet: pkt, From: from})
	}
}

func (c *Client) signalFirstPeer() {
	c.firstPeerOnce.Do(func() { close(c.firstPeerCh) })
}

// WaitForPeer blocks until at least one peer has been discovered or ctx
// is done, whichever comes first.
func (c *Client) WaitForPeer(ctx context.Context) error {
	if c.peers.Len() > 0 {
		return nil
	}
	select {
	case <-c.firstPeerCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestData is the low-level request primitive: it picks the current
// master (falling back to any known peer), sends a Request for
// (dataType, layer) if one isn't already in flight, and waits for the
// matching reply or ctx's deadline.
func (c *Client) RequestData(ctx context.Context, dataType protocol.DataSubType, layer uint8) (protocol.Packet, error) {
	pr, ok := c.peers.Master()
	if !ok {
		return nil, &NoPeerError{DataType: dataType, Layer: layer}
	}
	return c.requestFromPeer(ctx, pr, dataType, layer)
}

func (c *Client) requestFromPeer(ctx context.Context, pr *peer.Peer, dataType protocol.DataSubType, layer uint8) (protocol.Packet, error) {
	key := pendingKey{peerNodeID: pr.NodeID, dataType: dataType, layer: layer}
	entry, created := c.pending.register(key)
	if created {
		req := &protocol.Request{
			Header:   c.buildHeader(protocol.MessageRequest),
			DataType: dataType,
			Layer:    layer,
		}
		b, err := req.MarshalBinary()
		if err != nil {
			c.pending.cancel(key, err)
			return nil, err
		}
		c.logSent(req.MessageType(), "peer=%d dataType=%s layer=%d", pr.NodeID, dataType, layer)
		if err := c.transport.sendUnicast(b, pr.Addr()); err != nil {
			c.pending.cancel(key, err)
			c.waveforms.discard(key)
			return nil, err
		}
		c.metrics.RequestsSent.Inc()
	}

	select {
	case <-entry.done:
		return entry.result.payload, entry.result.err
	default:
	}
	select {
	case <-entry.done:
		return entry.result.payload, entry.result.err
	case <-ctx.Done():
		timeoutErr := &TimeoutError{requestContext: requestContext{PeerNodeID: pr.NodeID, DataType: dataType, Layer: layer}}
		c.pending.cancel(key, timeoutErr)
		c.waveforms.discard(key)
		c.metrics.RequestsTimedOut.Inc()
		return nil, timeoutErr
	}
}

func (c *Client) requestTimeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

// TrackInfo requests the artist/title/key/id metadata for layer.
func (c *Client) TrackInfo(ctx context.Context, layer uint8) (*TrackInfo, error) {
	ctx, cancel := c.requestTimeoutCtx(ctx)
	defer cancel()
	pkt, err := c.RequestData(ctx, protocol.DataSubTypeMetaData, layer)
	if err != nil {
		return nil, err
	}
	md, ok := pkt.(*protocol.Metadata)
	if !ok {
		return nil, fmt.Errorf("tcnet: unexpected reply type %T for MetaData request", pkt)
	}
	return &TrackInfo{TrackArtist: md.TrackArtist, TrackTitle: md.TrackTitle, TrackKey: md.TrackKey, TrackID: md.TrackID}, nil
}

// LayerMetrics requests the transport/playback metrics for layer.
func (c *Client) LayerMetrics(ctx context.Context, layer uint8) (*LayerMetrics, error) {
	ctx, cancel := c.requestTimeoutCtx(ctx)
	defer cancel()
	pkt, err := c.RequestData(ctx, protocol.DataSubTypeMetrics, layer)
	if err != nil {
		return nil, err
	}
	m, ok := pkt.(*protocol.Metrics)
	if !ok {
		return nil, fmt.Errorf("tcnet: unexpected reply type %T for Metrics request", pkt)
	}
	return &LayerMetrics{
		State:       m.State,
		BeatNumber:  m.BeatNumber,
		BPM:         m.BPM,
		Position:    m.Position,
		TrackLength: m.TrackLength,
		Speed:       m.Speed,
		PitchBend:   m.PitchBend,
		TrackID:     m.TrackID,
	}, nil
}

// CueData requests the hot cue/loop table for layer.
func (c *Client) CueData(ctx context.Context, layer uint8) (*protocol.CueData, error) {
	ctx, cancel := c.requestTimeoutCtx(ctx)
	defer cancel()
	pkt, err := c.RequestData(ctx, protocol.DataSubTypeCUE, layer)
	if err != nil {
		return nil, err
	}
	cd, ok := pkt.(*protocol.CueData)
	if !ok {
		return nil, fmt.Errorf("tcnet: unexpected reply type %T for CueData request", pkt)
	}
	return cd, nil
}

// MixerState requests the current mixer snapshot.
func (c *Client) MixerState(ctx context.Context) (*protocol.MixerData, error) {
	ctx, cancel := c.requestTimeoutCtx(ctx)
	defer cancel()
	pkt, err := c.RequestData(ctx, protocol.DataSubTypeMixer, 0)
	if err != nil {
		return nil, err
	}
	mx, ok := pkt.(*protocol.MixerData)
	if !ok {
		return nil, fmt.Errorf("tcnet: unexpected reply type %T for MixerData request", pkt)
	}
	return mx, nil
}

// Waveform requests the small or big waveform for layer, reassembling
// every fragment of the reply before returning.
func (c *Client) Waveform(ctx context.Context, layer uint8, size WaveformSize) (*protocol.Waveform, error) {
	ctx, cancel := c.requestTimeoutCtx(ctx)
	defer cancel()
	dataType := protocol.DataSubTypeSmallWaveForm
	if size == WaveformBig {
		dataType = protocol.DataSubTypeBigWaveForm
	}
	pkt, err := c.RequestData(ctx, dataType, layer)
	if err != nil {
		return nil, err
	}
	wf, ok := pkt.(*protocol.Waveform)
	if !ok {
		return nil, fmt.Errorf("tcnet: unexpected reply type %T for Waveform request", pkt)
	}
	return wf, nil
}

func (c *Client) logSent(mt protocol.MessageType, format string, args ...interface{}) {
	log.Debugf("%s %s", color.GreenString("-> %s", mt), fmt.Sprintf(format, args...))
}

func (c *Client) logReceive(mt protocol.MessageType, format string, args ...interface{}) {
	log.Debugf("%s %s", color.CyanString("<- %s", mt), fmt.Sprintf(format, args...))
}
