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
	"fmt"
	"sync"
	"sync/atomic"
)

// TaskState is the advisory run state of a managed pipeline element. It is
// written by the control router and observed by the element's loop at its
// safe checkpoints.
type TaskState int32

const (
	// Run lets the element run normally.
	Run TaskState = iota
	// Pause suspends the element until set back to Run.
	Pause
	// Stop terminates the element. Stop is terminal: once set, the state
	// never changes again.
	Stop
)

// String returns the name of the task state.
func (s TaskState) String() string {
	switch s {
	case Run:
		return "run"
	case Pause:
		return "pause"
	case Stop:
		return "stop"
	}
	return fmt.Sprintf("<invalid task state %d>", int32(s))
}

// stateCell is an atomically observable TaskState with a change notifier.
// There is a single writer (the control router); element loops read the value
// with relaxed semantics and suspend on the notifier channel.
type stateCell struct {
	value    atomic.Int32
	mu       sync.Mutex
	notifier chan struct{}
}

func newStateCell() *stateCell {
	return &stateCell{notifier: make(chan struct{})}
}

// get returns the current state.
func (c *stateCell) get() TaskState {
	return TaskState(c.value.Load())
}

// set transitions the cell to the given state and wakes all waiters.
// Transitions out of Stop are ignored: Stop is monotonic.
func (c *stateCell) set(s TaskState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if TaskState(c.value.Load()) == Stop {
		return
	}
	if TaskState(c.value.Load()) == s {
		return
	}

	c.value.Store(int32(s))
	close(c.notifier)
	c.notifier = make(chan struct{})
}

// poke wakes all waiters without changing the state. Used by the control
// router to make a loop re-check its command channels.
func (c *stateCell) poke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.notifier)
	c.notifier = make(chan struct{})
}

// changed returns a channel closed at the next state change. A loop that saw
// an uninteresting state selects on this channel to suspend without polling.
func (c *stateCell) changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifier
}
