/*
Copyright 2025 The Alumet Authors

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

// Package metricsring keeps bounded rings of recent samples with an
// exponentially weighted moving average, used for per-element poll and write
// duration statistics exposed through introspection.
package metricsring

import (
	"sync"
	"time"

	"github.com/VividCortex/ewma"
)

// SampleRing is a bounded ring of float64 samples with an EWMA.
type SampleRing struct {
	mu      sync.Mutex
	samples []float64
	next    int
	count   int
	ma      ewma.MovingAverage
}

// NewSampleRing creates a ring holding the last ringlen samples.
//
// Note: ewma has a warm-up period of 10 samples; with 10 or fewer pushed
// samples EWMA() returns 0.0.
func NewSampleRing(ringlen int) *SampleRing {
	if ringlen < 1 {
		ringlen = 1
	}
	return &SampleRing{
		samples: make([]float64, ringlen),
		ma:      ewma.NewMovingAverage(float64(ringlen)),
	}
}

// Push records a sample.
func (r *SampleRing) Push(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = v
	r.next = (r.next + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
	r.ma.Add(v)
}

// PushDuration records a duration sample in seconds.
func (r *SampleRing) PushDuration(d time.Duration) {
	r.Push(d.Seconds())
}

// EWMA returns the exponentially weighted moving average of the samples.
func (r *SampleRing) EWMA() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ma.Value()
}

// Count returns the number of samples currently held.
func (r *SampleRing) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Last returns the most recent count samples, oldest first.
func (r *SampleRing) Last(count int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if count > r.count {
		count = r.count
	}

	out := make([]float64, 0, count)
	start := r.next - count
	if start < 0 {
		start += len(r.samples)
	}
	for i := 0; i < count; i++ {
		out = append(out, r.samples[(start+i)%len(r.samples)])
	}
	return out
}
