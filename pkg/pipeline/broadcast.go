// Copyright 2025 The Alumet Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"sync"

	"github.com/alumet-dev/alumet-go/pkg/measurement"
)

// broadcast fans measurement buffers out to async output consumers. Publish
// never blocks: a consumer that falls more than the ring capacity behind
// misses buffers and gets a *LaggedError on its next receive. Only async
// outputs can observe lag; blocking lanes use plain bounded channels and
// exert backpressure instead.
type broadcast struct {
	mu       sync.Mutex
	capacity uint64
	ring     []*measurement.Buffer
	head     uint64 // sequence number of the next published buffer
	closed   bool
	notify   chan struct{}
}

func newBroadcast(capacity int) *broadcast {
	if capacity < 1 {
		capacity = 1
	}
	return &broadcast{
		capacity: uint64(capacity),
		ring:     make([]*measurement.Buffer, capacity),
		notify:   make(chan struct{}),
	}
}

// publish appends a buffer to the ring, overwriting the oldest entry when
// the ring is full, and wakes all waiting subscribers.
func (b *broadcast) publish(buf *measurement.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.ring[b.head%b.capacity] = buf
	b.head++

	close(b.notify)
	b.notify = make(chan struct{})
}

// close marks the end of the stream and wakes all waiting subscribers.
func (b *broadcast) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// subscribe creates a consumer positioned at the current head: it only sees
// buffers published after this call.
func (b *broadcast) subscribe() *broadcastSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &broadcastSub{b: b, next: b.head}
}

// broadcastSub is one async consumer of a broadcast. It implements
// BufferStream.
type broadcastSub struct {
	b    *broadcast
	next uint64
}

var _ BufferStream = &broadcastSub{}

// Recv returns the next buffer. It returns ErrClosed once the upstream is
// closed and drained, and *LaggedError when this consumer has missed buffers.
func (s *broadcastSub) Recv(ctx context.Context) (*measurement.Buffer, error) {
	b := s.b
	b.mu.Lock()

	for {
		oldest := uint64(0)
		if b.head > b.capacity {
			oldest = b.head - b.capacity
		}

		if s.next < oldest {
			missed := oldest - s.next
			s.next = oldest
			b.mu.Unlock()
			return nil, &LaggedError{Missed: missed}
		}

		if s.next < b.head {
			buf := b.ring[s.next%b.capacity]
			s.next++
			b.mu.Unlock()
			return buf, nil
		}

		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}

		notify := b.notify
		b.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, ErrClosed
		}

		b.mu.Lock()
	}
}
