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

package config

import (
	"github.com/ghodss/yaml"
)

// Table is a free-form configuration table, used for per-plugin configuration
// that does not go through a registered module.
type Table map[string]interface{}

// ParseTable parses raw YAML data into a Table.
func ParseTable(raw []byte) (Table, error) {
	t := Table{}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, configError("failed to parse configuration table: %v", err)
	}
	return t, nil
}

// Decode unmarshals the table into the given structure.
func (t Table) Decode(out interface{}) error {
	raw, err := yaml.Marshal(t)
	if err != nil {
		return configError("failed to re-encode configuration table: %v", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return configError("failed to decode configuration table: %v", err)
	}
	return nil
}

// String returns the named entry as a string.
func (t Table) String(key, fallback string) string {
	if v, ok := t[key].(string); ok {
		return v
	}
	return fallback
}

// Bool returns the named entry as a bool.
func (t Table) Bool(key string, fallback bool) bool {
	if v, ok := t[key].(bool); ok {
		return v
	}
	return fallback
}

// Int returns the named entry as an int.
func (t Table) Int(key string, fallback int) int {
	switch v := t[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

// Sub returns the named entry as a nested Table.
func (t Table) Sub(key string) Table {
	if v, ok := t[key].(map[string]interface{}); ok {
		return Table(v)
	}
	return nil
}
