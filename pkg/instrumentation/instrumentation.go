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

// Package instrumentation exposes the agent's own observability: an HTTP
// endpoint with the pipeline's Prometheus counters and optional opencensus
// tracing with a Jaeger exporter.
package instrumentation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"contrib.go.opencensus.io/exporter/jaeger"
	"go.opencensus.io/trace"

	logger "github.com/alumet-dev/alumet-go/pkg/log"
)

// ServiceName is the service name reported to tracing backends.
const ServiceName = "alumet-agent"

var log = logger.NewLogger("instrumentation")

// Function to run when shutting down instrumentation.
var shutdown = func() {}

// TracingEnabled returns true if trace sampling is configured on.
func TracingEnabled() bool {
	return opt.Sampling > 0
}

// Start sets up instrumentation: trace sampling, the Jaeger exporter and the
// HTTP endpoint with the Prometheus metrics.
func Start() error {
	if err := startHTTP(); err != nil {
		return err
	}

	if !TracingEnabled() {
		return nil
	}

	cfg := trace.Config{DefaultSampler: trace.ProbabilitySampler(opt.Sampling)}
	if opt.Sampling >= 1.0 {
		cfg = trace.Config{DefaultSampler: trace.AlwaysSample()}
	}
	trace.ApplyConfig(cfg)

	jlog := logger.NewLogger("jaeger/" + ServiceName)
	je, err := jaeger.NewExporter(jaeger.Options{
		ServiceName:       ServiceName,
		CollectorEndpoint: opt.JaegerCollector,
		AgentEndpoint:     opt.JaegerAgent,
		Process:           jaeger.Process{ServiceName: ServiceName},
		OnError:           func(err error) { jlog.Error("%v", err) },
	})
	if err != nil {
		return instrumentationError("failed to create Jaeger exporter: %v", err)
	}
	trace.RegisterExporter(je)

	shutdown = func() {
		je.Flush()
		trace.UnregisterExporter(je)
	}

	log.Info("tracing enabled, sampling %g", opt.Sampling)
	return nil
}

// Stop shuts down instrumentation.
func Stop() {
	shutdown()
	shutdown = func() {}
	stopHTTP()
}

// Span opens a trace span, a no-op unless tracing is enabled.
func Span(name string) func() {
	if !TracingEnabled() {
		return func() {}
	}
	_, span := trace.StartSpan(context.Background(), name)
	start := time.Now()
	return func() {
		span.AddAttributes(trace.Int64Attribute("duration_ms", time.Since(start).Milliseconds()))
		span.End()
	}
}

// prometheusNamespace mutates a service name into a valid Prometheus
// namespace.
func prometheusNamespace(service string) string {
	return strings.ReplaceAll(strings.ToLower(service), "-", "_")
}

// instrumentationError returns a formatted package-specific error.
func instrumentationError(format string, args ...interface{}) error {
	return fmt.Errorf("instrumentation: "+format, args...)
}
