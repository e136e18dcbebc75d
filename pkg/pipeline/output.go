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
	"runtime/debug"
	"time"

	"github.com/pkg/errors"

	logger "github.com/alumet-dev/alumet-go/pkg/log"
	"github.com/alumet-dev/alumet-go/pkg/measurement"
)

// RetryPolicy bounds the exponential backoff used for transient write
// failures. Each retry doubles the delay up to Cap; after MaxRetries the
// failure turns fatal for the output.
type RetryPolicy struct {
	Initial    time.Duration
	Cap        time.Duration
	MaxRetries int
}

// DefaultRetryPolicy is the write retry policy used unless an output
// overrides it.
var DefaultRetryPolicy = RetryPolicy{
	Initial:    100 * time.Millisecond,
	Cap:        30 * time.Second,
	MaxRetries: 8,
}

// backoff is the retry state for one write: attempts so far and the next
// delay.
type backoff struct {
	policy   RetryPolicy
	attempts int
	delay    time.Duration
}

func newBackoff(policy RetryPolicy) backoff {
	return backoff{policy: policy, delay: policy.Initial}
}

// next returns the delay to sleep before the next attempt, or false when the
// retry budget is exhausted.
func (b *backoff) next() (time.Duration, bool) {
	if b.attempts >= b.policy.MaxRetries {
		return 0, false
	}
	b.attempts++

	delay := b.delay
	b.delay *= 2
	if b.delay > b.policy.Cap {
		b.delay = b.policy.Cap
	}
	return delay, true
}

// outputLane is the bounded channel feeding one blocking output. A slow
// output fills its lane and exerts backpressure on the producers sharing it.
type outputLane struct {
	name ElementName
	ch   chan *measurement.Buffer
}

// outputTask drives one blocking output on its own task.
type outputTask struct {
	name   ElementName
	output Output
	state  *stateCell
	lane   *outputLane
	retry  RetryPolicy
	octx   *OutputContext

	super  chan<- supervisorEvent
	onExit func(ElementName)
	stats  *pipelineStats
	log    logger.Logger
}

func (t *outputTask) run(ctx context.Context) {
	t.log.Debug("output %s starting", t.name)

	defer t.onExit(t.name)
	// Keep the lane drained after exit so the dispatcher can never block on
	// a dead output. The drainer ends when the lane is closed at shutdown.
	defer func() {
		go func() {
			for range t.lane.ch {
			}
		}()
	}()

	for {
		// Checkpoint: state is observed between writes.
		if t.state.get() == Stop {
			t.log.Info("output %s: output.stopped{requested}", t.name)
			return
		}

		var buf *measurement.Buffer
		var ok bool
		select {
		case buf, ok = <-t.lane.ch:
			if !ok {
				t.log.Info("output %s: upstream closed, stopping", t.name)
				return
			}
		case <-t.state.changed():
			continue
		case <-ctx.Done():
			return
		}

		if t.state.get() == Pause {
			// A disabled output consumes and discards so that its lane
			// does not stall the pipeline.
			t.log.Debug("output %s: disabled, discarding buffer of %d point(s)",
				t.name, buf.Len())
			continue
		}

		if !t.writeWithRetry(ctx, buf) {
			return
		}
	}
}

// writeWithRetry writes one buffer, retrying transient failures with
// exponential backoff. False means the output is done for.
func (t *outputTask) writeWithRetry(ctx context.Context, buf *measurement.Buffer) bool {
	b := newBackoff(t.retry)

	for {
		err := t.write(buf)
		if err == nil {
			return true
		}

		werr := asWriteError(err)
		if !werr.CanRetry() {
			t.reportFatal(ctx, werr)
			return false
		}

		delay, ok := b.next()
		if !ok {
			t.reportFatal(ctx, errors.Wrapf(werr, "giving up after %d retries", b.attempts))
			return false
		}

		t.stats.outputRetried(t.name)
		t.log.Warn("output %s: write failed, retry %d in %s: %v", t.name, b.attempts, delay, werr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false
		}
	}
}

// write invokes the output once with panics contained to it.
func (t *outputTask) write(buf *measurement.Buffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FatalWriteError(errors.Errorf("panic in output %s: %v\n%s",
				t.name, r, debug.Stack()))
		}
	}()
	return t.output.Write(buf, t.octx)
}

func (t *outputTask) reportFatal(ctx context.Context, cause error) {
	t.log.Error("output %s: output.stopped{fatal}: %v", t.name, cause)
	select {
	case t.super <- supervisorEvent{element: t.name, err: &FatalElementError{Element: t.name, Cause: cause}}:
	case <-ctx.Done():
	}
}

// asWriteError normalizes arbitrary errors returned by a Write into the
// WriteError taxonomy. Unknown errors are fatal.
func asWriteError(err error) *WriteError {
	werr := &WriteError{}
	if errors.As(err, &werr) {
		return werr
	}
	return FatalWriteError(err)
}

// asyncOutputTask hosts an async output driving its own loop on the shared
// runtime, fed by a broadcast subscription.
type asyncOutputTask struct {
	name   ElementName
	output AsyncOutput
	state  *stateCell
	sub    *broadcastSub
	octx   *OutputContext

	super  chan<- supervisorEvent
	onExit func(ElementName)
	stats  *pipelineStats
	log    logger.Logger
}

func (t *asyncOutputTask) run(ctx context.Context) {
	t.log.Debug("async output %s starting", t.name)

	defer t.onExit(t.name)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			if t.state.get() == Stop {
				cancel()
				return
			}
			select {
			case <-t.state.changed():
			case <-cctx.Done():
				return
			}
		}
	}()

	stream := &countingStream{inner: t.sub, task: t}
	err := t.runContained(cctx, stream)
	if err != nil && !errors.Is(err, ErrClosed) {
		t.reportFatal(ctx, err)
		return
	}

	t.log.Info("output %s: output.stopped{normal}", t.name)
}

func (t *asyncOutputTask) runContained(ctx context.Context, stream BufferStream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FatalWriteError(errors.Errorf("panic in output %s: %v\n%s",
				t.name, r, debug.Stack()))
		}
	}()
	return t.output.Run(ctx, stream, t.octx)
}

func (t *asyncOutputTask) reportFatal(ctx context.Context, cause error) {
	t.log.Error("output %s: output.stopped{fatal}: %v", t.name, cause)
	select {
	case t.super <- supervisorEvent{element: t.name, err: &FatalElementError{Element: t.name, Cause: cause}}:
	case <-ctx.Done():
	}
}

// countingStream wraps a broadcast subscription to account for buffers lost
// to lag. Lag is surfaced to this consumer only.
type countingStream struct {
	inner *broadcastSub
	task  *asyncOutputTask
}

func (s *countingStream) Recv(ctx context.Context) (*measurement.Buffer, error) {
	buf, err := s.inner.Recv(ctx)

	lagged := &LaggedError{}
	if errors.As(err, &lagged) {
		s.task.stats.outputLagged(s.task.name, lagged.Missed)
		s.task.log.Warn("output %s: buffers-dropped: %d (slow async consumer)",
			s.task.name, lagged.Missed)
	}

	return buf, err
}
