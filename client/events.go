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
	"net"
	"sync"

	"github.com/tcnet-go/tcnet/protocol"
)

// Event is a decoded packet handed to event-stream subscribers, tagged
// with where it came from.
type Event struct {
	Packet protocol.Packet
	From   *net.UDPAddr
}

// eventBus fans out decoded packets to subscribers without ever blocking
// the receive loop that produces them: a subscriber whose buffer is full
// loses its oldest buffered event rather than stalling publish (spec.md
// §4.7's best-effort, bounded-buffer policy).
type eventBus struct {
	mu       sync.Mutex
	nextID   int
	capacity int
	subs     map[int]chan Event
}

func newEventBus(capacity int) *eventBus {
	return &eventBus{capacity: capacity, subs: map[int]chan Event{}}
}

// Subscribe returns a channel of future events and an unsubscribe func.
func (b *eventBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.capacity)
	b.subs[id] = ch
	return ch, func() { b.unsubscribe(id) }
}

func (b *eventBus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// publish delivers ev to every current subscriber, dropping the oldest
// queued event for any subscriber whose channel is full.
func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// closeAll unsubscribes every current subscriber, used on Disconnect.
func (b *eventBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
