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
	"time"

	"golang.org/x/sys/unix"
)

// TriggerKind selects the trigger variant of a managed source.
type TriggerKind int

const (
	// TimeInterval polls the source on an absolute periodic schedule.
	TimeInterval TriggerKind = iota
	// Manual polls the source only on an explicit control request.
	Manual
	// Readiness polls the source when a file descriptor becomes readable.
	Readiness
)

// TriggerSpec defines when a managed source is polled.
type TriggerSpec struct {
	Kind TriggerKind

	// Period and Phase define the schedule of TimeInterval triggers.
	Period time.Duration
	Phase  time.Duration

	// FlushInterval, when non-zero, decouples the poll rate from the rate
	// at which buffers are handed downstream: points accumulate locally and
	// are flushed on FlushInterval boundaries, or earlier once
	// FlushThreshold points have accumulated.
	FlushInterval  time.Duration
	FlushThreshold int

	// FD is the descriptor observed by Readiness triggers.
	FD int
}

// TimeTrigger returns an interval trigger with the given period.
func TimeTrigger(period time.Duration) TriggerSpec {
	return TriggerSpec{Kind: TimeInterval, Period: period}
}

// ManualTrigger returns a trigger that only fires on control requests.
func ManualTrigger() TriggerSpec {
	return TriggerSpec{Kind: Manual}
}

// ReadinessTrigger returns a trigger that fires when fd becomes readable.
func ReadinessTrigger(fd int) TriggerSpec {
	return TriggerSpec{Kind: Readiness, FD: fd}
}

// WithPhase offsets the first fire of an interval trigger.
func (s TriggerSpec) WithPhase(phase time.Duration) TriggerSpec {
	s.Phase = phase
	return s
}

// WithFlush sets the flush interval and threshold of an interval trigger.
func (s TriggerSpec) WithFlush(interval time.Duration, threshold int) TriggerSpec {
	s.FlushInterval = interval
	s.FlushThreshold = threshold
	return s
}

// waitOutcome tells a source loop why its trigger wait returned.
type waitOutcome int

const (
	// outcomeFired means the trigger fired; poll now.
	outcomeFired waitOutcome = iota
	// outcomeInterrupted means the task state changed; re-check it.
	outcomeInterrupted
	// outcomeCancelled means the pipeline is going away.
	outcomeCancelled
)

// trigger is the runtime side of a TriggerSpec.
type trigger interface {
	// wait blocks until the trigger fires, a manual fire is requested, the
	// task state changes, or the context is cancelled. On outcomeFired it
	// returns the fire time and the number of schedule ticks skipped to
	// catch up with drift.
	wait(ctx context.Context, manual <-chan struct{}, changed <-chan struct{}) (time.Time, uint64, waitOutcome)
}

// newTrigger builds the runtime trigger for a spec. The schedule of interval
// triggers is anchored at the given start time.
func newTrigger(spec TriggerSpec, start time.Time) trigger {
	switch spec.Kind {
	case Manual:
		return &manualTrigger{}
	case Readiness:
		return &readinessTrigger{fd: spec.FD}
	default:
		t := &intervalTrigger{period: spec.Period}
		if spec.Phase > 0 {
			t.next = start.Add(spec.Phase)
		} else {
			t.next = start.Add(spec.Period)
		}
		return t
	}
}

// intervalTrigger fires on an absolute monotonic schedule. When the loop has
// drifted by one period or more, missed ticks are skipped and counted; fires
// are never coalesced or doubled up.
type intervalTrigger struct {
	period  time.Duration
	next    time.Time
	pending uint64 // ticks skipped while suspended, reported with the next fire
}

func (t *intervalTrigger) wait(ctx context.Context, manual <-chan struct{}, changed <-chan struct{}) (time.Time, uint64, waitOutcome) {
	// Fast-forward over ticks missed while paused or behind: the schedule
	// stays absolute, missed ticks are skipped and counted, never polled
	// late in a burst.
	for now := time.Now(); now.Sub(t.next) >= t.period; {
		t.next = t.next.Add(t.period)
		t.pending++
	}

	timer := time.NewTimer(time.Until(t.next))
	defer timer.Stop()

	select {
	case <-timer.C:
		fire := t.next
		skipped := t.pending
		t.pending = 0
		t.next = t.next.Add(t.period)
		return fire, skipped, outcomeFired

	case <-manual:
		// An explicit fire does not disturb the schedule.
		return time.Now(), 0, outcomeFired

	case <-changed:
		return time.Time{}, 0, outcomeInterrupted

	case <-ctx.Done():
		return time.Time{}, 0, outcomeCancelled
	}
}

// manualTrigger fires only on explicit control requests.
type manualTrigger struct{}

func (t *manualTrigger) wait(ctx context.Context, manual <-chan struct{}, changed <-chan struct{}) (time.Time, uint64, waitOutcome) {
	select {
	case <-manual:
		return time.Now(), 0, outcomeFired
	case <-changed:
		return time.Time{}, 0, outcomeInterrupted
	case <-ctx.Done():
		return time.Time{}, 0, outcomeCancelled
	}
}

// readinessTrigger fires when its descriptor becomes readable. The poll runs
// with a short timeout so the loop still observes state changes and
// cancellation with bounded delay.
type readinessTrigger struct {
	fd int
}

const readinessPollTimeout = 200 // milliseconds

func (t *readinessTrigger) wait(ctx context.Context, manual <-chan struct{}, changed <-chan struct{}) (time.Time, uint64, waitOutcome) {
	for {
		select {
		case <-manual:
			return time.Now(), 0, outcomeFired
		case <-changed:
			return time.Time{}, 0, outcomeInterrupted
		case <-ctx.Done():
			return time.Time{}, 0, outcomeCancelled
		default:
		}

		fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, readinessPollTimeout)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			// Treat a broken descriptor like a fire; the poll itself
			// reports the error with proper classification.
			return time.Now(), 0, outcomeFired
		}
		if n > 0 {
			return time.Now(), 0, outcomeFired
		}
	}
}
