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
	"context"
	"net/http"
	"sync"

	ocprom "contrib.go.opencensus.io/exporter/prometheus"
	pclient "github.com/prometheus/client_golang/prometheus"
	model "github.com/prometheus/client_model/go"
	"go.opencensus.io/stats/view"
)

// PrometheusMetricsPath is the URL path exposing metrics to Prometheus.
const PrometheusMetricsPath = "/metrics"

// Our singleton HTTP server and request multiplexer.
var (
	srv *http.Server
	mux *http.ServeMux
)

// GetHTTPMux returns our singleton HTTP request multiplexer. Introspection
// handlers hook themselves here.
func GetHTTPMux() *http.ServeMux {
	if mux == nil {
		mux = http.NewServeMux()
	}
	return mux
}

// startHTTP sets up the Prometheus exporter on the mux and starts serving.
// An empty address disables the endpoint.
func startHTTP() error {
	if opt.HTTPAddress == "" {
		log.Info("instrumentation HTTP endpoint is disabled")
		return nil
	}

	pe, err := ocprom.NewExporter(ocprom.Options{
		Namespace: prometheusNamespace(ServiceName),
		Gatherer:  pclient.Gatherers{dynamicGatherers},
		OnError:   func(err error) { log.Error("prometheus error: %v", err) },
	})
	if err != nil {
		return instrumentationError("failed to create Prometheus exporter: %v", err)
	}

	m := GetHTTPMux()
	m.Handle(PrometheusMetricsPath, pe)
	view.RegisterExporter(pe)
	view.SetReportingPeriod(opt.ReportingPeriod)

	srv = &http.Server{Addr: opt.HTTPAddress, Handler: m}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("instrumentation HTTP server failed: %v", err)
		}
	}()

	log.Info("serving Prometheus metrics on %s%s", opt.HTTPAddress, PrometheusMetricsPath)
	return nil
}

// stopHTTP does a graceful shutdown of the HTTP server.
func stopHTTP() {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("instrumentation HTTP shutdown failed: %v", err)
	}
	srv = nil
}

// gatherers is a locked wrapper around prometheus Gatherers, so gatherers
// can be registered while serving.
type gatherers struct {
	sync.RWMutex
	gatherers pclient.Gatherers
}

// Our dynamically registered Prometheus gatherers.
var dynamicGatherers = &gatherers{gatherers: pclient.Gatherers{}}

// Gather implements the pclient.Gatherer interface.
func (g *gatherers) Gather() ([]*model.MetricFamily, error) {
	g.RLock()
	defer g.RUnlock()
	return g.gatherers.Gather()
}

// RegisterGatherer registers a new prometheus Gatherer. The pipeline hooks
// its own counters here.
func RegisterGatherer(gatherer pclient.Gatherer) {
	dynamicGatherers.Lock()
	defer dynamicGatherers.Unlock()
	dynamicGatherers.gatherers = append(dynamicGatherers.gatherers, gatherer)
}
