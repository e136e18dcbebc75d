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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alumet-dev/alumet-go/pkg/metricsring"
)

// pollRingLen is the number of recent poll durations kept per source.
const pollRingLen = 64

// pipelineStats is the pipeline's own bookkeeping: prometheus counters for
// polls, skips, retries and lag drops, plus per-source poll duration rings
// for introspection.
type pipelineStats struct {
	polls    *prometheus.CounterVec
	skips    *prometheus.CounterVec
	retries  *prometheus.CounterVec
	lagDrops *prometheus.CounterVec

	mu        sync.Mutex
	pollTimes map[ElementName]*metricsring.SampleRing
}

func newPipelineStats() *pipelineStats {
	s := &pipelineStats{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alumet_source_polls_total",
			Help: "Number of completed source polls.",
		}, []string{"source"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alumet_source_skipped_ticks_total",
			Help: "Number of trigger ticks skipped to catch up with drift.",
		}, []string{"source"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alumet_output_write_retries_total",
			Help: "Number of output write retries.",
		}, []string{"output"}),
		lagDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alumet_output_lagged_buffers_total",
			Help: "Number of buffers missed by slow async outputs.",
		}, []string{"output"}),
		pollTimes: make(map[ElementName]*metricsring.SampleRing),
	}
	return s
}

// register registers the counters with the given prometheus registry.
func (s *pipelineStats) register(reg *prometheus.Registry) {
	reg.MustRegister(s.polls, s.skips, s.retries, s.lagDrops)
}

func (s *pipelineStats) sourcePolled(name ElementName, took time.Duration) {
	s.polls.WithLabelValues(name.String()).Inc()

	s.mu.Lock()
	ring, ok := s.pollTimes[name]
	if !ok {
		ring = metricsring.NewSampleRing(pollRingLen)
		s.pollTimes[name] = ring
	}
	s.mu.Unlock()

	ring.PushDuration(took)
}

func (s *pipelineStats) sourceSkips(name ElementName, skipped uint64) {
	s.skips.WithLabelValues(name.String()).Add(float64(skipped))
}

func (s *pipelineStats) outputRetried(name ElementName) {
	s.retries.WithLabelValues(name.String()).Inc()
}

func (s *pipelineStats) outputLagged(name ElementName, missed uint64) {
	s.lagDrops.WithLabelValues(name.String()).Add(float64(missed))
}

// pollEWMA returns the moving average poll duration of the source, in
// seconds, and false if the source has not been polled yet.
func (s *pipelineStats) pollEWMA(name ElementName) (float64, bool) {
	s.mu.Lock()
	ring, ok := s.pollTimes[name]
	s.mu.Unlock()

	if !ok {
		return 0, false
	}
	return ring.EWMA(), true
}
