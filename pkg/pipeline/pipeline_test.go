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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet-go/pkg/measurement"
	"github.com/alumet-dev/alumet-go/pkg/metrics"
)

// countingSource emits one u64 point per poll with a strictly increasing
// counter. failAt, when non-nil, decides the error returned on the n-th
// poll (1-based).
type countingSource struct {
	mu       sync.Mutex
	metric   measurement.MetricID
	resource measurement.Resource
	polls    int
	failAt   func(poll int) error
}

func (s *countingSource) Poll(acc *measurement.Accumulator, ts time.Time) error {
	s.mu.Lock()
	s.polls++
	n := s.polls
	s.mu.Unlock()

	if s.failAt != nil {
		if err := s.failAt(n); err != nil {
			return err
		}
	}

	acc.Push(measurement.NewPoint(ts, s.metric, s.resource,
		measurement.LocalMachineConsumer(), measurement.U64Value(uint64(n))))
	return nil
}

func (s *countingSource) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// doublingTransform multiplies every u64 value by two.
type doublingTransform struct{}

func (doublingTransform) Apply(buf *measurement.Buffer, _ *TransformContext) error {
	points := buf.Points()
	for i, p := range points {
		if p.Value.Kind() == measurement.U64 {
			p.Value = measurement.U64Value(p.Value.AsU64() * 2)
			points[i] = p
		}
	}
	return nil
}

// collectingOutput records everything written to it.
type collectingOutput struct {
	mu      sync.Mutex
	buffers int
	points  []measurement.Point
	failAt  func(write int) error
	writes  int
	when    []time.Time
}

func (o *collectingOutput) Write(buf *measurement.Buffer, _ *OutputContext) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.writes++
	o.when = append(o.when, time.Now())
	if o.failAt != nil {
		if err := o.failAt(o.writes); err != nil {
			return err
		}
	}

	o.buffers++
	o.points = append(o.points, buf.Points()...)
	return nil
}

func (o *collectingOutput) snapshot() (int, []measurement.Point) {
	o.mu.Lock()
	defer o.mu.Unlock()
	points := make([]measurement.Point, len(o.points))
	copy(points, o.points)
	return o.buffers, points
}

func registerTestMetric(t *testing.T, b *Builder) measurement.MetricID {
	t.Helper()
	id, err := b.Metrics().Register(metrics.Metric{
		Name: "cpu_time",
		Unit: metrics.PlainUnit(metrics.Second),
		Type: measurement.U64,
	}, metrics.ByNameAndType)
	require.NoError(t, err)
	return id
}

func startPipeline(t *testing.T, b *Builder) *Pipeline {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		p.Shutdown()
		p.Wait()
	})
	return p
}

func TestPipelineDeliversOrderedBuffers(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	src := &countingSource{metric: id, resource: measurement.LocalMachineResource()}
	out := &collectingOutput{}
	b.AddSource("plugX", "s1", src, TimeTrigger(20*time.Millisecond))
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)

	time.Sleep(300 * time.Millisecond)
	p.Shutdown()
	code := p.Wait()
	require.Equal(t, ExitGraceful, code)

	buffers, points := out.snapshot()
	require.Greater(t, buffers, 5, "too few buffers delivered")
	require.NotEmpty(t, points)

	// Per-source ordering: strictly increasing timestamps and counters.
	for i := 1; i < len(points); i++ {
		require.True(t, points[i].Timestamp.After(points[i-1].Timestamp),
			"timestamps not strictly increasing at %d", i)
		require.Equal(t, points[i-1].Value.AsU64()+1, points[i].Value.AsU64(),
			"points reordered or lost at %d", i)
	}

	// Every point carries the registered value kind of its metric.
	def, ok := p.Metrics().ByID(id)
	require.True(t, ok)
	for _, pt := range points {
		require.Equal(t, def.Type, pt.Value.Kind())
	}
}

func TestPipelineTransformAndFanOut(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	src1 := &countingSource{metric: id, resource: measurement.CpuCoreResource(0)}
	src2 := &countingSource{metric: id, resource: measurement.CpuCoreResource(1)}
	out1 := &collectingOutput{}
	out2 := &collectingOutput{}

	b.AddSource("plugX", "s1", src1, TimeTrigger(20*time.Millisecond))
	b.AddSource("plugX", "s2", src2, TimeTrigger(20*time.Millisecond))
	b.AddTransform("plugX", "double", doublingTransform{})
	b.AddOutput("plugX", "o1", out1)
	b.AddOutput("plugX", "o2", out2)

	p := startPipeline(t, b)
	time.Sleep(250 * time.Millisecond)
	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())

	for _, out := range []*collectingOutput{out1, out2} {
		_, points := out.snapshot()
		require.NotEmpty(t, points)

		// All values doubled, per-source ordering preserved.
		next := map[uint64]uint64{0: 2, 1: 2}
		for _, pt := range points {
			core := uint64(pt.Resource.ID())
			require.Equal(t, uint64(0), pt.Value.AsU64()%2, "value not doubled")
			require.Equal(t, next[core], pt.Value.AsU64(),
				"per-source ordering broken for core %d", core)
			next[core] += 2
		}
	}
}

func TestSourceNormalStop(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	stopping := &countingSource{metric: id, resource: measurement.CpuCoreResource(0),
		failAt: func(poll int) error {
			if poll > 3 {
				return NormalStopError(nil)
			}
			return nil
		}}
	healthy := &countingSource{metric: id, resource: measurement.CpuCoreResource(1)}
	out := &collectingOutput{}

	b.AddSource("plugX", "stopping", stopping, TimeTrigger(15*time.Millisecond))
	b.AddSource("plugX", "healthy", healthy, TimeTrigger(15*time.Millisecond))
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)
	time.Sleep(300 * time.Millisecond)

	// The stopping source ended after its third point; the other one kept
	// going.
	require.Equal(t, 4, stopping.pollCount())
	require.Greater(t, healthy.pollCount(), 6)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	names, err := p.Control().ListElements(ctx, "*/source/*")
	require.NoError(t, err)
	require.Equal(t, []ElementName{
		{Plugin: "plugX", Kind: SourceKind, Element: "healthy"},
	}, names)

	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())
}

func TestSourceFatalIsContained(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	faulty := &countingSource{metric: id, resource: measurement.CpuCoreResource(0),
		failAt: func(poll int) error {
			if poll >= 2 {
				panic("probe exploded")
			}
			return nil
		}}
	healthy := &countingSource{metric: id, resource: measurement.CpuCoreResource(1)}
	out := &collectingOutput{}

	b.AddSource("plugX", "faulty", faulty, TimeTrigger(15*time.Millisecond))
	b.AddSource("plugX", "healthy", healthy, TimeTrigger(15*time.Millisecond))
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)
	time.Sleep(300 * time.Millisecond)

	// The panic was contained to the faulty source.
	require.Equal(t, 2, faulty.pollCount())
	require.Greater(t, healthy.pollCount(), 6)

	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())

	_, points := out.snapshot()
	require.NotEmpty(t, points)
}

func TestOutputRetryWithBackoff(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	src := &countingSource{metric: id, resource: measurement.LocalMachineResource()}
	out := &collectingOutput{failAt: func(write int) error {
		if write <= 3 {
			return RetryWriteError(nil)
		}
		return nil
	}}

	b.AddSource("plugX", "s1", src, ManualTrigger())
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, p.Control().Source(MatchSource("plugX", "s1")).TriggerNow().Do(ctx))

	// Three backoff sleeps: 100 + 200 + 400 ms, then success.
	require.Eventually(t, func() bool {
		buffers, _ := out.snapshot()
		return buffers == 1
	}, 3*time.Second, 10*time.Millisecond)
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 600*time.Millisecond, "backoff sleeps too short")
	require.Less(t, elapsed, 1500*time.Millisecond, "backoff sleeps too long")

	buffers, points := out.snapshot()
	require.Equal(t, 1, buffers, "duplicate or missing writes")
	require.Len(t, points, 1)

	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())
}

func TestPauseAndResumeLosesNothing(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	src := &countingSource{metric: id, resource: measurement.LocalMachineResource()}
	out := &collectingOutput{}
	b.AddSource("plugX", "s1", src, TimeTrigger(15*time.Millisecond))
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Control().Source(MatchSource("plugX", "s1")).Pause().Do(ctx))

	// Polling settles; nothing more is produced while paused.
	time.Sleep(50 * time.Millisecond)
	paused := src.pollCount()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, paused, src.pollCount(), "source polled while paused")

	require.NoError(t, p.Control().Source(MatchSource("plugX", "s1")).Resume().Do(ctx))
	require.Eventually(t, func() bool {
		return src.pollCount() > paused
	}, time.Second, 10*time.Millisecond, "source did not resume")

	// No catch-up burst: the paused span produced no polls at all.
	resumed := src.pollCount()
	require.Less(t, resumed-paused, 4, "resume caught up on missed ticks")

	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())

	// Nothing was lost around the pause: counters are contiguous.
	_, points := out.snapshot()
	for i := 1; i < len(points); i++ {
		require.Equal(t, points[i-1].Value.AsU64()+1, points[i].Value.AsU64())
	}
}

func TestTransformDisableEnableRoundTrip(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	src := &countingSource{metric: id, resource: measurement.LocalMachineResource()}
	out := &collectingOutput{}
	b.AddSource("plugX", "s1", src, TimeTrigger(15*time.Millisecond))
	b.AddTransform("plugX", "double", doublingTransform{})
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, p.Control().Transform(MatchTransform("plugX", "double")).Disable().Do(ctx))
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, p.Control().Transform(MatchTransform("plugX", "double")).Enable().Do(ctx))
	time.Sleep(80 * time.Millisecond)

	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())

	_, points := out.snapshot()
	require.NotEmpty(t, points)

	// Counters are contiguous whether doubled or not: no buffer was lost
	// around the toggles, and both doubled and raw values appear.
	sawRaw, sawDoubled := false, false
	expect := uint64(1)
	for i, pt := range points {
		v := pt.Value.AsU64()
		switch v {
		case expect * 2:
			sawDoubled = true
		case expect:
			sawRaw = true
		default:
			t.Fatalf("point %d: value %d does not match counter %d", i, v, expect)
		}
		expect++
	}
	require.True(t, sawDoubled, "transform never applied")
	require.True(t, sawRaw, "transform never disabled")
}

func TestAutonomousSource(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	out := &collectingOutput{}
	b.AddAutonomousSource("plugX", "auto", autonomousCounter{metric: id})
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)
	require.Eventually(t, func() bool {
		buffers, _ := out.snapshot()
		return buffers >= 3
	}, 2*time.Second, 10*time.Millisecond)

	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())
}

// autonomousCounter drives itself with its own ticker.
type autonomousCounter struct {
	metric measurement.MetricID
}

func (s autonomousCounter) Run(ctx context.Context, out chan<- *measurement.Buffer) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	n := uint64(0)
	for {
		select {
		case <-ticker.C:
			n++
			buf := measurement.NewBuffer()
			buf.Push(measurement.NewPoint(time.Now(), s.metric,
				measurement.LocalMachineResource(), measurement.LocalMachineConsumer(),
				measurement.U64Value(n)))
			select {
			case out <- buf:
			case <-ctx.Done():
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func TestDynamicSourceAddition(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	id := registerTestMetric(t, b)

	out := &collectingOutput{}
	b.AddOutput("plugX", "o1", out)

	p := startPipeline(t, b)

	src := &countingSource{metric: id, resource: measurement.ControlGroupResource("/oar/job123")}
	key := p.AddSource("cgroup", "job123", src, TimeTrigger(15*time.Millisecond))
	require.Equal(t, "cgroup/source/job123", key.Name().String())

	require.Eventually(t, func() bool {
		buffers, _ := out.snapshot()
		return buffers >= 2
	}, 2*time.Second, 10*time.Millisecond)

	p.Shutdown()
	require.Equal(t, ExitGraceful, p.Wait())
}
