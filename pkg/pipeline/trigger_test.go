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
	"testing"
	"time"
)

func TestIntervalTriggerSchedule(t *testing.T) {
	period := 20 * time.Millisecond
	trig := newTrigger(TimeTrigger(period), time.Now())

	ctx := context.Background()
	manual := make(chan struct{})
	changed := make(chan struct{})

	var last time.Time
	for i := 0; i < 5; i++ {
		fire, skipped, outcome := trig.wait(ctx, manual, changed)
		if outcome != outcomeFired {
			t.Fatalf("fire %d: unexpected outcome %d", i, outcome)
		}
		if !last.IsZero() {
			// Fires land on the absolute schedule even if a slow test
			// runner made the trigger skip ticks.
			delta := fire.Sub(last)
			if delta != time.Duration(skipped+1)*period {
				t.Fatalf("fire %d: off schedule, delta %s with %d skip(s)", i, delta, skipped)
			}
		}
		last = fire
	}
}

func TestIntervalTriggerSkipsMissedTicks(t *testing.T) {
	period := 10 * time.Millisecond
	it := &intervalTrigger{period: period, next: time.Now().Add(-5 * period)}

	ctx := context.Background()
	fire, skipped, outcome := it.wait(ctx, make(chan struct{}), make(chan struct{}))
	if outcome != outcomeFired {
		t.Fatalf("unexpected outcome %d", outcome)
	}
	// Five stale ticks: all of them are skipped outright and the wait fires
	// on the tick that is due now, never a burst of catch-up fires.
	if skipped < 4 {
		t.Fatalf("expected at least 4 skipped ticks, got %d", skipped)
	}
	if time.Since(fire) > period {
		t.Fatalf("fired tick is more than one period stale")
	}

	// The schedule stays absolute afterwards.
	fire2, skipped2, _ := it.wait(ctx, make(chan struct{}), make(chan struct{}))
	if skipped2 != 0 {
		t.Fatalf("unexpected skips after recovery: %d", skipped2)
	}
	if got := fire2.Sub(fire); got != period {
		t.Fatalf("schedule not aligned after skip, delta %s", got)
	}
}

func TestManualTrigger(t *testing.T) {
	trig := newTrigger(ManualTrigger(), time.Now())

	ctx := context.Background()
	manual := make(chan struct{}, 1)
	changed := make(chan struct{})

	manual <- struct{}{}
	_, _, outcome := trig.wait(ctx, manual, changed)
	if outcome != outcomeFired {
		t.Fatalf("manual fire not observed, outcome %d", outcome)
	}

	// Without a poke the trigger never fires.
	cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, _, outcome = trig.wait(cctx, manual, changed)
	if outcome != outcomeCancelled {
		t.Fatalf("expected cancellation, outcome %d", outcome)
	}
}

func TestTriggerInterruptedByStateChange(t *testing.T) {
	trig := newTrigger(TimeTrigger(time.Hour), time.Now())

	changed := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(changed)
	}()

	_, _, outcome := trig.wait(context.Background(), make(chan struct{}), changed)
	if outcome != outcomeInterrupted {
		t.Fatalf("expected interruption, outcome %d", outcome)
	}
}
