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
	"time"

	"github.com/alumet-dev/alumet-go/pkg/config"
)

// options captures our configurable instrumentation parameters.
type options struct {
	// HTTPAddress is the address of the metrics/introspection endpoint.
	HTTPAddress string
	// ReportingPeriod is the opencensus view reporting period.
	ReportingPeriod time.Duration
	// Sampling is the trace sampling probability, 0 disables tracing.
	Sampling float64
	// JaegerCollector and JaegerAgent locate the trace sink.
	JaegerCollector string
	JaegerAgent     string
}

// opt holds our options with their defaults.
var opt = options{
	HTTPAddress:     ":8000",
	ReportingPeriod: 5 * time.Second,
}

func init() {
	m := config.Register("instrumentation", "agent self-observability")
	m.StringVar(&opt.HTTPAddress, "http-endpoint", opt.HTTPAddress,
		"Address of the HTTP endpoint for metrics and introspection, empty to disable.")
	m.DurationVar(&opt.ReportingPeriod, "reporting-period", opt.ReportingPeriod,
		"Metrics reporting period.")
	m.Float64Var(&opt.Sampling, "trace-sampling", opt.Sampling,
		"Trace sampling probability in [0,1], 0 to disable tracing.")
	m.StringVar(&opt.JaegerCollector, "jaeger-collector", "",
		"Jaeger HTTP Thrift collector endpoint to export traces to.")
	m.StringVar(&opt.JaegerAgent, "jaeger-agent", "",
		"Jaeger agent address to export traces to.")
}
