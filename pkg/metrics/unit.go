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

// BaseUnit is the unit a metric is measured in.
type BaseUnit string

const (
	// Unitless is the unit of dimensionless quantities.
	Unitless BaseUnit = "1"
	// Second is the SI unit of time.
	Second BaseUnit = "s"
	// Joule is the SI unit of energy.
	Joule BaseUnit = "J"
	// Watt is the SI unit of power.
	Watt BaseUnit = "W"
	// Byte is the unit of information.
	Byte BaseUnit = "B"
	// Hertz is the SI unit of frequency.
	Hertz BaseUnit = "Hz"
	// DegreeCelsius is the unit of temperature.
	DegreeCelsius BaseUnit = "°C"
	// Percent is the unit of ratios scaled to 100.
	Percent BaseUnit = "%"
)

// SIPrefix scales a base unit by a power of ten.
type SIPrefix string

const (
	// NoPrefix leaves the base unit unscaled.
	NoPrefix SIPrefix = ""
	// Nano scales by 1e-9.
	Nano SIPrefix = "n"
	// Micro scales by 1e-6.
	Micro SIPrefix = "µ"
	// Milli scales by 1e-3.
	Milli SIPrefix = "m"
	// Kilo scales by 1e3.
	Kilo SIPrefix = "k"
	// Mega scales by 1e6.
	Mega SIPrefix = "M"
	// Giga scales by 1e9.
	Giga SIPrefix = "G"
)

// Unit is a base unit with an optional SI prefix.
type Unit struct {
	Prefix SIPrefix
	Base   BaseUnit
}

// PlainUnit returns an unprefixed unit.
func PlainUnit(base BaseUnit) Unit {
	return Unit{Base: base}
}

// PrefixedUnit returns a unit scaled by an SI prefix.
func PrefixedUnit(prefix SIPrefix, base BaseUnit) Unit {
	return Unit{Prefix: prefix, Base: base}
}

// String returns the symbol of the unit, prefix included.
func (u Unit) String() string {
	return string(u.Prefix) + string(u.Base)
}
