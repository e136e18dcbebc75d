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

package measurement

import (
	"time"
)

// MetricID is the dense non-negative id assigned to a metric at registration.
type MetricID int

// Point is a single measurement: a value of a registered metric, observed on
// a resource for a consumer at a point in time, with optional attributes.
// The value variant must match the registered type of the metric; typed
// metric handles enforce this at write sites.
type Point struct {
	Timestamp time.Time
	Metric    MetricID
	Resource  Resource
	Consumer  ResourceConsumer
	Value     WireValue
	attrs     []Attr
}

// NewPoint creates a measurement point without attributes.
func NewPoint(ts time.Time, metric MetricID, res Resource, consumer ResourceConsumer, value WireValue) Point {
	return Point{
		Timestamp: ts,
		Metric:    metric,
		Resource:  res,
		Consumer:  consumer,
		Value:     value,
	}
}

// WithAttr returns the point with an attribute appended. Attribute order is
// stable (insertion order) but carries no meaning.
func (p Point) WithAttr(key string, value AttrValue) Point {
	p.attrs = append(p.attrs[:len(p.attrs):len(p.attrs)], Attr{Key: key, Value: value})
	return p
}

// Attrs returns the attributes of the point in insertion order.
func (p Point) Attrs() []Attr {
	return p.attrs
}

// Attr looks up an attribute by key.
func (p Point) Attr(key string) (AttrValue, bool) {
	for _, a := range p.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return AttrValue{}, false
}
