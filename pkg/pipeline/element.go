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
	"time"

	"github.com/alumet-dev/alumet-go/pkg/measurement"
	"github.com/alumet-dev/alumet-go/pkg/metrics"
)

// Source is a probe that produces measurements when polled. Poll is
// synchronous and must not block on network I/O; the runtime drives it from
// the source's trigger.
type Source interface {
	// Poll appends fresh measurements to the accumulator. The timestamp is
	// the trigger fire time, captured at the start of the poll, monotonic
	// per source. Returned errors must be *PollError values.
	Poll(acc *measurement.Accumulator, timestamp time.Time) error
}

// AutonomousSource is a self-driving source task. It owns its own trigger
// and produces measurements by sending buffers directly into the pipeline.
// It must return promptly when the context is cancelled.
type AutonomousSource interface {
	Run(ctx context.Context, out chan<- *measurement.Buffer) error
}

// TransformContext gives transforms read access to pipeline facilities.
type TransformContext struct {
	// Metrics is the (frozen) metric registry.
	Metrics *metrics.Registry
}

// Transform mutates or enriches measurement buffers in-pipeline.
type Transform interface {
	// Apply may add, remove or mutate points of the buffer in place.
	// Returned errors must be *TransformError values.
	Apply(buf *measurement.Buffer, ctx *TransformContext) error
}

// OutputContext gives outputs read access to pipeline facilities.
type OutputContext struct {
	// Metrics is the (frozen) metric registry.
	Metrics *metrics.Registry
}

// Output exports measurement buffers. Write may block; the runtime runs each
// blocking output on its own task.
type Output interface {
	// Write exports the buffer. Returned errors must be *WriteError values.
	Write(buf *measurement.Buffer, ctx *OutputContext) error
}

// BufferStream is the receive side handed to async outputs. Recv returns
// ErrClosed once the upstream is gone and *LaggedError when the consumer has
// fallen behind and missed buffers.
type BufferStream interface {
	Recv(ctx context.Context) (*measurement.Buffer, error)
}

// AsyncOutput is an output that drives its own loop on the shared runtime,
// consuming a stream of buffers.
type AsyncOutput interface {
	Run(ctx context.Context, stream BufferStream, octx *OutputContext) error
}
