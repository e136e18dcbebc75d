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

package plugin

import (
	"github.com/alumet-dev/alumet-go/pkg/measurement"
	"github.com/alumet-dev/alumet-go/pkg/metrics"
	"github.com/alumet-dev/alumet-go/pkg/pipeline"
)

// StartContext is the builder surface handed to a plugin's Start. Element
// names pass through the per-plugin deduplicator; what a plugin asks for is
// not necessarily what it gets, the returned keys are authoritative.
type StartContext struct {
	plugin  string
	builder *pipeline.Builder
}

// Metrics exposes the metric registry for direct lookups.
func (c *StartContext) Metrics() *metrics.Registry {
	return c.builder.Metrics()
}

// CreateMetric registers a metric of value type T and returns its typed
// handle. Registration uses the name+type duplicate criterion.
func CreateMetric[T metrics.Value](c *StartContext, name string, unit metrics.Unit, desc string) (metrics.TypedID[T], error) {
	var zero T
	def := metrics.Metric{
		Name:        name,
		Unit:        unit,
		Type:        measurement.U64,
		Description: desc,
	}
	switch any(zero).(type) {
	case int64:
		def.Type = measurement.I64
	case float64:
		def.Type = measurement.F64
	}

	if _, err := c.builder.Metrics().Register(def, metrics.ByNameAndType); err != nil {
		return metrics.TypedID[T]{}, err
	}
	return metrics.Typed[T](c.builder.Metrics(), name)
}

// AddSource registers a managed source of this plugin.
func (c *StartContext) AddSource(name string, src pipeline.Source, spec pipeline.TriggerSpec, opts ...pipeline.SourceOptions) pipeline.SourceKey {
	return c.builder.AddSource(c.plugin, name, src, spec, opts...)
}

// AddAutonomousSource registers a self-driving source of this plugin.
func (c *StartContext) AddAutonomousSource(name string, src pipeline.AutonomousSource) pipeline.SourceKey {
	return c.builder.AddAutonomousSource(c.plugin, name, src)
}

// AddTransform registers a transform of this plugin.
func (c *StartContext) AddTransform(name string, t pipeline.Transform, opts ...pipeline.TransformOptions) pipeline.TransformKey {
	return c.builder.AddTransform(c.plugin, name, t, opts...)
}

// AddOutput registers a blocking output of this plugin.
func (c *StartContext) AddOutput(name string, out pipeline.Output, opts ...pipeline.OutputOptions) pipeline.OutputKey {
	return c.builder.AddOutput(c.plugin, name, out, opts...)
}

// AddAsyncOutput registers an async output of this plugin.
func (c *StartContext) AddAsyncOutput(name string, out pipeline.AsyncOutput) pipeline.OutputKey {
	return c.builder.AddAsyncOutput(c.plugin, name, out)
}

// AddOutputBuilder registers an output built lazily at pipeline build time.
func (c *StartContext) AddOutputBuilder(name string, builder pipeline.OutputBuilder, opts ...pipeline.OutputOptions) pipeline.OutputKey {
	return c.builder.AddOutputBuilder(c.plugin, name, builder, opts...)
}
