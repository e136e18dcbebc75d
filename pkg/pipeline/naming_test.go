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
	"reflect"
	"testing"
)

func TestNameDeduplication(t *testing.T) {
	cases := []struct {
		name   string
		insert []string
		expect []string
	}{
		{
			name:   "unique names stay bare",
			insert: []string{"rapl", "nvml", "cgroup"},
			expect: []string{"rapl", "nvml", "cgroup"},
		},
		{
			name:   "first keeps bare name, collisions get suffixes",
			insert: []string{"probe", "probe", "probe"},
			expect: []string{"probe", "probe-0", "probe-1"},
		},
		{
			name:   "empty names get suffixes",
			insert: []string{"", ""},
			expect: []string{"-0", "-1"},
		},
		{
			name:   "explicit suffixed name does not clash",
			insert: []string{"probe", "probe-0", "probe"},
			expect: []string{"probe", "probe-0", "probe-1"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeduplicator()
			got := make([]string, 0, len(tc.insert))
			for _, name := range tc.insert {
				got = append(got, d.insert(name))
			}
			if !reflect.DeepEqual(got, tc.expect) {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestElementNameOrdering(t *testing.T) {
	names := []ElementName{
		{Plugin: "b", Kind: SourceKind, Element: "s"},
		{Plugin: "a", Kind: OutputKind, Element: "o"},
		{Plugin: "a", Kind: SourceKind, Element: "s2"},
		{Plugin: "a", Kind: SourceKind, Element: "s1"},
		{Plugin: "a", Kind: TransformKind, Element: "t"},
	}
	sortNames(names)

	expect := []ElementName{
		{Plugin: "a", Kind: SourceKind, Element: "s1"},
		{Plugin: "a", Kind: SourceKind, Element: "s2"},
		{Plugin: "a", Kind: TransformKind, Element: "t"},
		{Plugin: "a", Kind: OutputKind, Element: "o"},
		{Plugin: "b", Kind: SourceKind, Element: "s"},
	}
	if !reflect.DeepEqual(names, expect) {
		t.Fatalf("expected %v, got %v", expect, names)
	}

	if names[0].String() != "a/source/s1" {
		t.Fatalf("unexpected rendering %q", names[0].String())
	}
}
