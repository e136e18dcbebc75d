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
	"fmt"
	"math"
)

// ValueKind is the tag of a measured value variant.
type ValueKind int

const (
	// U64 tags unsigned integer values.
	U64 ValueKind = iota
	// I64 tags signed integer values.
	I64
	// F64 tags floating point values.
	F64
)

// String returns the name of the value kind.
func (k ValueKind) String() string {
	switch k {
	case U64:
		return "u64"
	case I64:
		return "i64"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("<invalid value kind %d>", int(k))
}

// WireValue is a measured value, one of u64, i64 or f64. The variant must
// match the declared type of the metric the value is recorded for.
type WireValue struct {
	kind ValueKind
	bits uint64
}

// U64Value returns a WireValue holding an unsigned integer.
func U64Value(v uint64) WireValue {
	return WireValue{kind: U64, bits: v}
}

// I64Value returns a WireValue holding a signed integer.
func I64Value(v int64) WireValue {
	return WireValue{kind: I64, bits: uint64(v)}
}

// F64Value returns a WireValue holding a floating point number.
func F64Value(v float64) WireValue {
	return WireValue{kind: F64, bits: math.Float64bits(v)}
}

// Kind returns the variant tag of the value.
func (v WireValue) Kind() ValueKind {
	return v.kind
}

// AsU64 returns the value as an unsigned integer. The variant must be U64.
func (v WireValue) AsU64() uint64 {
	return v.bits
}

// AsI64 returns the value as a signed integer. The variant must be I64.
func (v WireValue) AsI64() int64 {
	return int64(v.bits)
}

// AsF64 returns the value as a floating point number. The variant must be F64.
func (v WireValue) AsF64() float64 {
	return math.Float64frombits(v.bits)
}

// Float returns the value converted to a float64, regardless of variant.
func (v WireValue) Float() float64 {
	switch v.kind {
	case U64:
		return float64(v.bits)
	case I64:
		return float64(int64(v.bits))
	case F64:
		return math.Float64frombits(v.bits)
	}
	return 0
}

// String returns the value formatted according to its variant.
func (v WireValue) String() string {
	switch v.kind {
	case U64:
		return fmt.Sprintf("%d", v.bits)
	case I64:
		return fmt.Sprintf("%d", int64(v.bits))
	case F64:
		return fmt.Sprintf("%g", math.Float64frombits(v.bits))
	}
	return "<invalid value>"
}
