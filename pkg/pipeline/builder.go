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
	"time"

	logger "github.com/alumet-dev/alumet-go/pkg/log"
	"github.com/alumet-dev/alumet-go/pkg/metrics"
)

// Config tunes the pipeline runtime.
type Config struct {
	// ChannelCapacity bounds the merged source to transform channel.
	ChannelCapacity int
	// LaneCapacity bounds each blocking output lane.
	LaneCapacity int
	// BroadcastCapacity sizes the async output broadcast ring.
	BroadcastCapacity int
	// ShutdownTimeout bounds the graceful shutdown join.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ChannelCapacity:   256,
		LaneCapacity:      64,
		BroadcastCapacity: 64,
		ShutdownTimeout:   10 * time.Second,
	}
}

// SourceOptions tune one managed source registration.
type SourceOptions struct {
	// Blocking runs the source on a dedicated OS thread, so CPU-bound
	// polls don't stall the shared runtime and the realtime boost is safe.
	Blocking bool
}

// TransformOptions tune one transform registration.
type TransformOptions struct {
	// SkipOnBadInput bypasses this transform for buffers an earlier chain
	// step flagged as unexpected input.
	SkipOnBadInput bool
}

// OutputOptions tune one output registration.
type OutputOptions struct {
	// Retry overrides the write retry policy.
	Retry *RetryPolicy
}

// pendingSource is a source registered before the pipeline starts.
type pendingSource struct {
	name     ElementName
	source   Source
	auto     AutonomousSource
	spec     TriggerSpec
	blocking bool
}

// pendingTransform is a transform registered before the pipeline starts.
type pendingTransform struct {
	name           ElementName
	transform      Transform
	skipOnBadInput bool
}

// OutputBuilder builds an output lazily, once pipeline facilities exist.
type OutputBuilder func(*OutputContext) (Output, error)

// pendingOutput is an output registered before the pipeline starts.
type pendingOutput struct {
	name    ElementName
	output  Output
	async   AsyncOutput
	builder OutputBuilder
	retry   RetryPolicy
}

// Builder assembles a pipeline. Plugins register their elements through it
// during the startup phase; Build wires the channel fabric and returns the
// runnable pipeline.
type Builder struct {
	log     logger.Logger
	cfg     Config
	metrics *metrics.Registry
	dedups  map[string]*deduplicator

	sources    []*pendingSource
	transforms []*pendingTransform
	outputs    []*pendingOutput
}

// NewBuilder creates a pipeline builder with the given configuration.
func NewBuilder(cfg Config) *Builder {
	if cfg.ChannelCapacity < 1 {
		cfg.ChannelCapacity = DefaultConfig().ChannelCapacity
	}
	if cfg.LaneCapacity < 1 {
		cfg.LaneCapacity = DefaultConfig().LaneCapacity
	}
	if cfg.BroadcastCapacity < 1 {
		cfg.BroadcastCapacity = DefaultConfig().BroadcastCapacity
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	return &Builder{
		log:     logger.NewLogger("pipeline"),
		cfg:     cfg,
		metrics: metrics.NewRegistry(),
		dedups:  make(map[string]*deduplicator),
	}
}

// Metrics returns the metric registry populated during startup.
func (b *Builder) Metrics() *metrics.Registry {
	return b.metrics
}

// uniqueName runs a requested element name through the per-(plugin, kind)
// deduplicator.
func (b *Builder) uniqueName(plugin string, kind ElementKind, element string) ElementName {
	key := plugin + "\x00" + kind.String()
	d, ok := b.dedups[key]
	if !ok {
		d = newDeduplicator()
		b.dedups[key] = d
	}
	return ElementName{Plugin: plugin, Kind: kind, Element: d.insert(element)}
}

// AddSource registers a managed source polled by the given trigger.
func (b *Builder) AddSource(plugin, name string, src Source, spec TriggerSpec, opts ...SourceOptions) SourceKey {
	o := SourceOptions{}
	if len(opts) > 0 {
		o = opts[0]
	}

	n := b.uniqueName(plugin, SourceKind, name)
	b.sources = append(b.sources, &pendingSource{
		name:     n,
		source:   src,
		spec:     spec,
		blocking: o.Blocking,
	})
	b.log.Debug("registered source %s", n)

	return SourceKey{name: n}
}

// AddAutonomousSource registers a self-driving source.
func (b *Builder) AddAutonomousSource(plugin, name string, src AutonomousSource) SourceKey {
	n := b.uniqueName(plugin, SourceKind, name)
	b.sources = append(b.sources, &pendingSource{name: n, auto: src})
	b.log.Debug("registered autonomous source %s", n)

	return SourceKey{name: n}
}

// AddTransform appends a transform to the chain. Chain order is registration
// order.
func (b *Builder) AddTransform(plugin, name string, t Transform, opts ...TransformOptions) TransformKey {
	o := TransformOptions{}
	if len(opts) > 0 {
		o = opts[0]
	}

	n := b.uniqueName(plugin, TransformKind, name)
	b.transforms = append(b.transforms, &pendingTransform{
		name:           n,
		transform:      t,
		skipOnBadInput: o.SkipOnBadInput,
	})
	b.log.Debug("registered transform %s", n)

	return TransformKey{name: n}
}

// AddOutput registers a blocking output.
func (b *Builder) AddOutput(plugin, name string, out Output, opts ...OutputOptions) OutputKey {
	n := b.uniqueName(plugin, OutputKind, name)
	p := &pendingOutput{name: n, output: out, retry: DefaultRetryPolicy}
	if len(opts) > 0 && opts[0].Retry != nil {
		p.retry = *opts[0].Retry
	}
	b.outputs = append(b.outputs, p)
	b.log.Debug("registered output %s", n)

	return OutputKey{name: n}
}

// AddAsyncOutput registers an async output consuming a buffer stream.
func (b *Builder) AddAsyncOutput(plugin, name string, out AsyncOutput) OutputKey {
	n := b.uniqueName(plugin, OutputKind, name)
	b.outputs = append(b.outputs, &pendingOutput{name: n, async: out, retry: DefaultRetryPolicy})
	b.log.Debug("registered async output %s", n)

	return OutputKey{name: n}
}

// AddOutputBuilder registers a blocking output built lazily at pipeline
// build time.
func (b *Builder) AddOutputBuilder(plugin, name string, builder OutputBuilder, opts ...OutputOptions) OutputKey {
	n := b.uniqueName(plugin, OutputKind, name)
	p := &pendingOutput{name: n, builder: builder, retry: DefaultRetryPolicy}
	if len(opts) > 0 && opts[0].Retry != nil {
		p.retry = *opts[0].Retry
	}
	b.outputs = append(b.outputs, p)
	b.log.Debug("registered output builder %s", n)

	return OutputKey{name: n}
}
