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

package instrumentation

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusNamespace(t *testing.T) {
	cases := []struct {
		service string
		expect  string
	}{
		{service: "alumet-agent", expect: "alumet_agent"},
		{service: "Alumet-Agent", expect: "alumet_agent"},
		{service: "plain", expect: "plain"},
	}
	for _, tc := range cases {
		if got := prometheusNamespace(tc.service); got != tc.expect {
			t.Fatalf("prometheusNamespace(%q) = %q, expected %q", tc.service, got, tc.expect)
		}
	}
}

func TestDynamicGatherers(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_events_total",
		Help: "Events seen by the test.",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	RegisterGatherer(reg)

	families, err := dynamicGatherers.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "test_events_total" {
			found = true
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 3 {
				t.Fatalf("unexpected counter value %g", v)
			}
		}
	}
	if !found {
		t.Fatalf("registered gatherer not reachable through the dynamic set")
	}
}
