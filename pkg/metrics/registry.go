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
	"fmt"
	"sync"

	"github.com/alumet-dev/alumet-go/pkg/measurement"
)

// Metric is the definition of a registered metric. Identity is the name.
type Metric struct {
	// Name is the unique name of the metric.
	Name string
	// Unit is the unit the metric is measured in.
	Unit Unit
	// Type is the value variant every point of this metric must carry.
	Type measurement.ValueKind
	// Description is a human-readable description.
	Description string
}

// DuplicateCriterion controls when re-registering a name is a conflict.
type DuplicateCriterion int

const (
	// ByName conflicts on any re-registration of the same name with a
	// differing definition in name only, i.e. never: same name always
	// resolves to the existing metric.
	ByName DuplicateCriterion = iota
	// ByNameAndType conflicts when the same name is re-registered with a
	// different value type.
	ByNameAndType
	// ByNameTypeUnit conflicts when the same name is re-registered with a
	// different value type or unit.
	ByNameTypeUnit
)

// String returns the name of the criterion.
func (c DuplicateCriterion) String() string {
	switch c {
	case ByName:
		return "name"
	case ByNameAndType:
		return "name+type"
	case ByNameTypeUnit:
		return "name+type+unit"
	}
	return fmt.Sprintf("<invalid duplicate criterion %d>", int(c))
}

// CreationError is returned when a registration collides with an existing,
// conflicting definition under the used duplicate criterion.
type CreationError struct {
	Name      string
	Criterion DuplicateCriterion
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("metric %q already registered with a conflicting definition (criterion %s)",
		e.Name, e.Criterion)
}

// TypeError is returned when a typed handle is minted for a metric of
// another value type.
type TypeError struct {
	Expected measurement.ValueKind
	Actual   measurement.ValueKind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("metric value type mismatch: expected %s, actual %s",
		e.Expected, e.Actual)
}

// Registry holds the registered metrics. It is populated during the startup
// phase under a lock; Freeze() ends that phase, after which the registry is
// read-only and safe to read concurrently without synchronization.
type Registry struct {
	mu     sync.Mutex
	frozen bool
	byName map[string]measurement.MetricID
	defs   []Metric
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]measurement.MetricID)}
}

// Register registers a metric definition. Ids are assigned densely in
// registration order. Re-registering an identical definition returns the
// existing id; a definition conflicting under the criterion returns a
// *CreationError.
func (r *Registry) Register(def Metric, criterion DuplicateCriterion) (measurement.MetricID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, registryError("registry is frozen, can't register %q", def.Name)
	}

	if id, ok := r.byName[def.Name]; ok {
		if conflicts(r.defs[id], def, criterion) {
			return -1, &CreationError{Name: def.Name, Criterion: criterion}
		}
		return id, nil
	}

	id := measurement.MetricID(len(r.defs))
	r.defs = append(r.defs, def)
	r.byName[def.Name] = id

	return id, nil
}

// conflicts checks two same-name definitions under the criterion.
func conflicts(existing, incoming Metric, criterion DuplicateCriterion) bool {
	switch criterion {
	case ByName:
		return false
	case ByNameAndType:
		return existing.Type != incoming.Type
	case ByNameTypeUnit:
		return existing.Type != incoming.Type || existing.Unit != incoming.Unit
	}
	return false
}

// Freeze ends the startup phase. Further registrations fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// ByName looks up a metric by name.
func (r *Registry) ByName(name string) (measurement.MetricID, *Metric, bool) {
	id, ok := r.byName[name]
	if !ok {
		return -1, nil, false
	}
	return id, &r.defs[id], true
}

// ByID looks up a metric by id.
func (r *Registry) ByID(id measurement.MetricID) (*Metric, bool) {
	if id < 0 || int(id) >= len(r.defs) {
		return nil, false
	}
	return &r.defs[id], true
}

// Len returns the number of registered metrics.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Iter calls fn for every registered metric in id order.
func (r *Registry) Iter(fn func(measurement.MetricID, *Metric)) {
	for i := range r.defs {
		fn(measurement.MetricID(i), &r.defs[i])
	}
}

// registryError returns a formatted package-specific error.
func registryError(format string, args ...interface{}) error {
	return fmt.Errorf("metrics: "+format, args...)
}
