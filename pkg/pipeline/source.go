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

// sourceTask drives one managed source: it awaits the source's trigger,
// polls it with a realtime priority boost, and delivers the accumulated
// buffers downstream with backpressure.
type sourceTask struct {
	name     ElementName
	source   Source
	spec     TriggerSpec
	state    *stateCell
	manual   chan struct{}    // TriggerNow pokes, capacity 1
	reconf   chan TriggerSpec // SetTrigger pushes, capacity 1
	blocking bool             // poll on a dedicated, lockable OS thread

	out    chan<- *measurement.Buffer
	super  chan<- supervisorEvent
	onExit func(ElementName)
	stats  *pipelineStats
	log    logger.Logger
}

func (t *sourceTask) run(ctx context.Context) {
	if t.blocking {
		defer lockThread()()
	}

	t.log.Debug("source %s starting", t.name)

	trig := newTrigger(t.spec, time.Now())
	buf := measurement.NewBuffer()
	lastFlush := time.Now()
	boostDenied := false

	defer t.onExit(t.name)

	for {
		// Checkpoint: exactly one state observation per iteration.
		switch t.state.get() {
		case Stop:
			t.flush(ctx, buf)
			t.log.Info("source %s: source.stopped{requested}", t.name)
			return
		case Pause:
			select {
			case <-t.state.changed():
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case spec := <-t.reconf:
			t.spec = spec
			trig = newTrigger(spec, time.Now())
			continue
		default:
		}

		fire, skipped, outcome := trig.wait(ctx, t.manual, t.state.changed())
		switch outcome {
		case outcomeInterrupted:
			continue
		case outcomeCancelled:
			return
		}

		if skipped > 0 {
			t.stats.sourceSkips(t.name, skipped)
			t.log.Warn("source %s: behind schedule, skipped %d tick(s)", t.name, skipped)
		}

		err := t.poll(buf, fire, &boostDenied)
		t.stats.sourcePolled(t.name, time.Since(fire))

		if err != nil {
			perr := asPollError(err)
			switch {
			case perr.IsNormalStop():
				t.flush(ctx, buf)
				t.log.Info("source %s: source.stopped{normal}", t.name)
				return
			case perr.CanRetry():
				t.log.Warn("source %s: poll failed, will retry next tick: %v", t.name, perr)
				continue
			default:
				t.reportFatal(ctx, perr)
				return
			}
		}

		if t.shouldFlush(fire, lastFlush, buf) {
			if !t.flush(ctx, buf) {
				return
			}
			buf = measurement.NewBuffer()
			lastFlush = fire
		}
	}
}

// poll invokes the source once, boosted to realtime priority, with panics
// contained to this source.
func (t *sourceTask) poll(buf *measurement.Buffer, fire time.Time, boostDenied *bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FatalPollError(errors.Errorf("panic in source %s: %v\n%s",
				t.name, r, debug.Stack()))
		}
	}()

	restore, ok := rtBoost()
	if !ok && !*boostDenied {
		*boostDenied = true
		t.log.Warn("source %s: realtime priority boost denied, polling unboosted", t.name)
	}
	defer restore()

	return t.source.Poll(measurement.NewAccumulator(buf), fire)
}

// shouldFlush decides if the accumulated buffer is handed downstream now.
func (t *sourceTask) shouldFlush(fire, lastFlush time.Time, buf *measurement.Buffer) bool {
	if buf.Len() == 0 {
		return false
	}
	if t.spec.FlushInterval <= 0 {
		return true
	}
	if t.spec.FlushThreshold > 0 && buf.Len() >= t.spec.FlushThreshold {
		return true
	}
	return fire.Sub(lastFlush) >= t.spec.FlushInterval
}

// flush delivers the buffer downstream, taking part in backpressure. False
// means the pipeline went away under us.
func (t *sourceTask) flush(ctx context.Context, buf *measurement.Buffer) bool {
	if buf.Len() == 0 {
		return true
	}
	select {
	case t.out <- buf:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *sourceTask) reportFatal(ctx context.Context, cause error) {
	t.log.Error("source %s: source.stopped{fatal}: %v", t.name, cause)
	select {
	case t.super <- supervisorEvent{element: t.name, err: &FatalElementError{Element: t.name, Cause: cause}}:
	case <-ctx.Done():
	}
}

// asPollError normalizes arbitrary errors returned by a Poll into the
// PollError taxonomy.
func asPollError(err error) *PollError {
	perr := &PollError{}
	if errors.As(err, &perr) {
		return perr
	}
	return PollErrorFrom(err)
}

// autonomousTask hosts a self-driving source. The task's only involvement is
// fault containment and translating the Stop state into context cancellation.
type autonomousTask struct {
	name   ElementName
	source AutonomousSource
	state  *stateCell

	out    chan<- *measurement.Buffer
	super  chan<- supervisorEvent
	onExit func(ElementName)
	log    logger.Logger
}

func (t *autonomousTask) run(ctx context.Context) {
	t.log.Debug("autonomous source %s starting", t.name)

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

	err := t.runContained(cctx)
	if err != nil {
		perr := asPollError(err)
		if perr.IsNormalStop() {
			t.log.Info("source %s: source.stopped{normal}", t.name)
			return
		}
		t.reportFatal(ctx, perr)
		return
	}

	t.log.Info("source %s: source.stopped{normal}", t.name)
}

func (t *autonomousTask) runContained(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FatalPollError(errors.Errorf("panic in source %s: %v\n%s",
				t.name, r, debug.Stack()))
		}
	}()
	return t.source.Run(ctx, t.out)
}

func (t *autonomousTask) reportFatal(ctx context.Context, cause error) {
	t.log.Error("source %s: source.stopped{fatal}: %v", t.name, cause)
	select {
	case t.super <- supervisorEvent{element: t.name, err: &FatalElementError{Element: t.name, Cause: cause}}:
	case <-ctx.Done():
	}
}
