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

package metrics

import (
	"time"

	"github.com/alumet-dev/alumet-go/pkg/measurement"
)

// Value constrains the Go types usable as measured values.
type Value interface {
	uint64 | int64 | float64
}

// TypedID is a metric id carrying its value type. It can only be minted from
// a registry lookup that checks the registered value type, so points built
// through it always carry the right value variant.
type TypedID[T Value] struct {
	id measurement.MetricID
}

// ID returns the untyped metric id.
func (t TypedID[T]) ID() measurement.MetricID {
	return t.id
}

// Point builds a measurement point for this metric with the right value
// variant.
func (t TypedID[T]) Point(ts time.Time, res measurement.Resource, consumer measurement.ResourceConsumer, value T) measurement.Point {
	return measurement.NewPoint(ts, t.id, res, consumer, wireValue(value))
}

// Typed mints a typed handle for the named metric. The registered value type
// of the metric must match T; a mismatch returns a *TypeError.
func Typed[T Value](r *Registry, name string) (TypedID[T], error) {
	id, def, ok := r.ByName(name)
	if !ok {
		return TypedID[T]{id: -1}, registryError("no metric named %q", name)
	}

	var zero T
	if want := valueKind(zero); def.Type != want {
		return TypedID[T]{id: -1}, &TypeError{Expected: want, Actual: def.Type}
	}

	return TypedID[T]{id: id}, nil
}

// valueKind maps a Go value type onto its wire variant tag.
func valueKind[T Value](v T) measurement.ValueKind {
	switch any(v).(type) {
	case uint64:
		return measurement.U64
	case int64:
		return measurement.I64
	default:
		return measurement.F64
	}
}

// wireValue wraps a Go value in the matching wire variant.
func wireValue[T Value](v T) measurement.WireValue {
	switch v := any(v).(type) {
	case uint64:
		return measurement.U64Value(v)
	case int64:
		return measurement.I64Value(v)
	default:
		return measurement.F64Value(v.(float64))
	}
}
