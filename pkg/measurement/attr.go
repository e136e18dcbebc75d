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
	"strings"
)

// AttrKind is the tag of an attribute value variant.
type AttrKind int

const (
	// AttrStr tags string attributes.
	AttrStr AttrKind = iota
	// AttrU64 tags unsigned integer attributes.
	AttrU64
	// AttrI64 tags signed integer attributes.
	AttrI64
	// AttrF64 tags floating point attributes.
	AttrF64
	// AttrBool tags boolean attributes.
	AttrBool
	// AttrListU64 tags attributes holding a list of unsigned integers.
	AttrListU64
)

// AttrValue is an attribute value, a closed union over the supported kinds.
type AttrValue struct {
	kind AttrKind
	str  string
	num  uint64
	list []uint64
}

// StrAttr returns a string attribute value.
func StrAttr(v string) AttrValue {
	return AttrValue{kind: AttrStr, str: v}
}

// U64Attr returns an unsigned integer attribute value.
func U64Attr(v uint64) AttrValue {
	return AttrValue{kind: AttrU64, num: v}
}

// I64Attr returns a signed integer attribute value.
func I64Attr(v int64) AttrValue {
	return AttrValue{kind: AttrI64, num: uint64(v)}
}

// F64Attr returns a floating point attribute value.
func F64Attr(v float64) AttrValue {
	return AttrValue{kind: AttrF64, num: F64Value(v).bits}
}

// BoolAttr returns a boolean attribute value.
func BoolAttr(v bool) AttrValue {
	n := uint64(0)
	if v {
		n = 1
	}
	return AttrValue{kind: AttrBool, num: n}
}

// ListU64Attr returns an attribute value holding a list of unsigned integers.
func ListU64Attr(v []uint64) AttrValue {
	list := make([]uint64, len(v))
	copy(list, v)
	return AttrValue{kind: AttrListU64, list: list}
}

// Kind returns the variant tag of the attribute value.
func (v AttrValue) Kind() AttrKind {
	return v.kind
}

// Str returns the string variant of the value.
func (v AttrValue) Str() string { return v.str }

// U64 returns the unsigned integer variant of the value.
func (v AttrValue) U64() uint64 { return v.num }

// I64 returns the signed integer variant of the value.
func (v AttrValue) I64() int64 { return int64(v.num) }

// F64 returns the floating point variant of the value.
func (v AttrValue) F64() float64 { return WireValue{kind: F64, bits: v.num}.AsF64() }

// Bool returns the boolean variant of the value.
func (v AttrValue) Bool() bool { return v.num != 0 }

// ListU64 returns the integer list variant of the value.
func (v AttrValue) ListU64() []uint64 { return v.list }

// String formats the attribute value according to its variant.
func (v AttrValue) String() string {
	switch v.kind {
	case AttrStr:
		return v.str
	case AttrU64:
		return fmt.Sprintf("%d", v.num)
	case AttrI64:
		return fmt.Sprintf("%d", int64(v.num))
	case AttrF64:
		return fmt.Sprintf("%g", v.F64())
	case AttrBool:
		return fmt.Sprintf("%t", v.Bool())
	case AttrListU64:
		parts := make([]string, len(v.list))
		for i, n := range v.list {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "<invalid attribute>"
}

// Attr is a single (key, value) attribute pair.
type Attr struct {
	Key   string
	Value AttrValue
}
