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
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// UDPConn describes what functionality the transport needs from a UDP
// socket; narrow enough to be mocked in tests.
type UDPConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
}

// inPacket is a raw datagram read off one of the two receiving sockets
// (broadcast-recv or unicast), tagged with which one it arrived on.
type inPacket struct {
	data []byte
	from *net.UDPAddr
	sock socketKind
}

type socketKind int

const (
	socketBroadcastRecv socketKind = iota
	socketUnicast
)

// interfaceIPv4 returns iface's own IPv4 address and the network it sits
// on, the two ingredients broadcastAddr and the broadcast-send bind both
// need.
func interfaceIPv4(iface string) (net.IP, *net.IPNet, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up interface %q: %w", iface, err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, nil, fmt.Errorf("reading addresses of %q: %w", iface, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		return ip4, ipnet, nil
	}
	return nil, nil, fmt.Errorf("interface %q has no IPv4 address", iface)
}

// broadcastAddr computes the directed broadcast address of a network:
// (localIP & netmask) | ^netmask, per spec.md §6.
func broadcastAddr(ip net.IP, ipnet *net.IPNet) net.IP {
	bcast := make(net.IP, net.IPv4len)
	for i := range ip {
		bcast[i] = ip[i] | ^ipnet.Mask[i]
	}
	return bcast
}

// enableBroadcast sets SO_BROADCAST on conn's underlying file descriptor.
// Without it, WriteTo to a directed-broadcast address (x.x.x.255) fails
// with EACCES on Linux; net.ListenUDP never sets this option itself,
// following timestamp.ConnFd's SyscallConn-then-setsockopt idiom for
// reaching into a *net.UDPConn's fd.
func enableBroadcast(conn *net.UDPConn) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// transport owns the three UDP endpoints spec.md §4.3 calls for: a
// broadcast receiver bound to the wildcard address, a broadcast sender
// bound on the selected interface, and a unicast socket used both to send
// requests and to receive their replies.
type transport struct {
	broadcastRecv UDPConn
	broadcastSend UDPConn
	unicast       UDPConn

	broadcastDst *net.UDPAddr
	unicastPort  uint16

	inChan chan *inPacket
}

func setupTransport(cfg *Config) (*transport, error) {
	localIP, ipnet, err := interfaceIPv4(cfg.BroadcastInterface)
	if err != nil {
		return nil, &IoError{Op: "resolve broadcast interface", Err: err}
	}

	broadcastRecv, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.BroadcastPort})
	if err != nil {
		return nil, &IoError{Op: "listen broadcast-recv", Err: err}
	}
	// Bound to the selected interface's own address, per spec.md §4.3, so
	// outbound OptIn frames carry a source address on the announced segment.
	broadcastSend, err := net.ListenUDP("udp4", &net.UDPAddr{IP: localIP, Port: 0})
	if err != nil {
		broadcastRecv.Close()
		return nil, &IoError{Op: "listen broadcast-send", Err: err}
	}
	if err := enableBroadcast(broadcastSend); err != nil {
		broadcastRecv.Close()
		broadcastSend.Close()
		return nil, &IoError{Op: "enable SO_BROADCAST", Err: err}
	}
	unicast, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		broadcastRecv.Close()
		broadcastSend.Close()
		return nil, &IoError{Op: "listen unicast", Err: err}
	}
	bcastIP := broadcastAddr(localIP, ipnet)
	return &transport{
		broadcastRecv: broadcastRecv,
		broadcastSend: broadcastSend,
		unicast:       unicast,
		broadcastDst:  &net.UDPAddr{IP: bcastIP, Port: cfg.BroadcastPort},
		unicastPort:   uint16(unicast.LocalAddr().(*net.UDPAddr).Port),
		inChan:        make(chan *inPacket, 256),
	}, nil
}

// run starts the two receive loops (broadcast-recv and unicast) under eg,
// each pushing raw, still undecoded datagrams onto inChan until ctx is
// cancelled.
func (t *transport) run(ctx context.Context, eg *errgroup.Group) {
	t.receiveLoop(ctx, eg, t.broadcastRecv, socketBroadcastRecv)
	t.receiveLoop(ctx, eg, t.unicast, socketUnicast)
}

func (t *transport) receiveLoop(ctx context.Context, eg *errgroup.Group, conn UDPConn, kind socketKind) {
	eg.Go(func() error {
		doneChan := make(chan error, 1)
		go func() {
			for {
				buf := make([]byte, 4096)
				n, addr, err := conn.ReadFromUDP(buf)
				if err != nil {
					doneChan <- err
					return
				}
				log.Debugf("received %d bytes on socket %d from %v", n, kind, addr)
				t.inChan <- &inPacket{data: buf[:n], from: addr, sock: kind}
			}
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-doneChan:
			return &IoError{Op: "receive", Err: err}
		}
	})
}

func (t *transport) sendBroadcast(b []byte) error {
	_, err := t.broadcastSend.WriteTo(b, t.broadcastDst)
	if err != nil {
		return &IoError{Op: "send broadcast", Err: err}
	}
	return nil
}

func (t *transport) sendUnicast(b []byte, addr *net.UDPAddr) error {
	_, err := t.unicast.WriteTo(b, addr)
	if err != nil {
		return &IoError{Op: "send unicast", Err: err}
	}
	return nil
}

func (t *transport) close() {
	t.broadcastRecv.Close()
	t.broadcastSend.Close()
	t.unicast.Close()
}
