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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet-go/pkg/measurement"
)

func cpuTime() Metric {
	return Metric{
		Name:        "cpu_time",
		Unit:        PlainUnit(Second),
		Type:        measurement.U64,
		Description: "cumulative CPU time",
	}
}

func TestRegisterAssignsDenseIds(t *testing.T) {
	r := NewRegistry()

	names := []string{"cpu_time", "energy", "mem_usage"}
	for i, name := range names {
		def := cpuTime()
		def.Name = name
		id, err := r.Register(def, ByName)
		require.NoError(t, err)
		require.Equal(t, measurement.MetricID(i), id)
	}

	// by_name(name).id == by_id(id).id over the whole registry.
	r.Iter(func(id measurement.MetricID, def *Metric) {
		gotID, gotDef, ok := r.ByName(def.Name)
		require.True(t, ok)
		require.Equal(t, id, gotID)

		byID, ok := r.ByID(id)
		require.True(t, ok)
		require.Equal(t, gotDef, byID)
	})
	require.Equal(t, len(names), r.Len())
}

func TestRegisterDuplicates(t *testing.T) {
	cases := []struct {
		name      string
		first     Metric
		second    Metric
		criterion DuplicateCriterion
		conflict  bool
	}{
		{
			name:      "identical definition returns the same id",
			first:     cpuTime(),
			second:    cpuTime(),
			criterion: ByNameTypeUnit,
		},
		{
			name:      "same name different type under name criterion",
			first:     cpuTime(),
			second:    Metric{Name: "cpu_time", Unit: PlainUnit(Second), Type: measurement.F64},
			criterion: ByName,
		},
		{
			name:      "same name different type under name+type criterion",
			first:     cpuTime(),
			second:    Metric{Name: "cpu_time", Unit: PlainUnit(Second), Type: measurement.F64},
			criterion: ByNameAndType,
			conflict:  true,
		},
		{
			name:      "same type different unit under name+type criterion",
			first:     cpuTime(),
			second:    Metric{Name: "cpu_time", Unit: PrefixedUnit(Milli, Second), Type: measurement.U64},
			criterion: ByNameAndType,
		},
		{
			name:      "same type different unit under name+type+unit criterion",
			first:     cpuTime(),
			second:    Metric{Name: "cpu_time", Unit: PrefixedUnit(Milli, Second), Type: measurement.U64},
			criterion: ByNameTypeUnit,
			conflict:  true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			first, err := r.Register(tc.first, tc.criterion)
			require.NoError(t, err)

			second, err := r.Register(tc.second, tc.criterion)
			if tc.conflict {
				require.Error(t, err)
				cerr := &CreationError{}
				require.True(t, errors.As(err, &cerr))
				require.Equal(t, tc.first.Name, cerr.Name)
				require.Equal(t, tc.criterion, cerr.Criterion)
				return
			}
			require.NoError(t, err)
			require.Equal(t, first, second)
		})
	}
}

func TestFrozenRegistryRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(cpuTime(), ByName)
	require.NoError(t, err)

	r.Freeze()
	_, err = r.Register(Metric{Name: "late", Type: measurement.U64}, ByName)
	require.Error(t, err)

	// Reads still work.
	_, _, ok := r.ByName("cpu_time")
	require.True(t, ok)
}

func TestTypedHandle(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(cpuTime(), ByNameAndType)
	require.NoError(t, err)

	h, err := Typed[uint64](r, "cpu_time")
	require.NoError(t, err)

	p := h.Point(time.Now(), measurement.CpuCoreResource(0), measurement.LocalMachineConsumer(), 123)
	require.Equal(t, measurement.U64, p.Value.Kind())
	require.Equal(t, uint64(123), p.Value.AsU64())
	require.Equal(t, h.ID(), p.Metric)

	// The registered type of the point matches the value variant.
	def, ok := r.ByID(p.Metric)
	require.True(t, ok)
	require.Equal(t, def.Type, p.Value.Kind())
}

func TestTypedHandleMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(cpuTime(), ByNameAndType)
	require.NoError(t, err)

	_, err = Typed[float64](r, "cpu_time")
	require.Error(t, err)

	terr := &TypeError{}
	require.True(t, errors.As(err, &terr))
	require.Equal(t, measurement.F64, terr.Expected)
	require.Equal(t, measurement.U64, terr.Actual)

	_, err = Typed[uint64](r, "no_such_metric")
	require.Error(t, err)
}
