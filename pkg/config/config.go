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
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
)

// Module is a named collection of configuration variables.
type Module struct {
	name        string
	description string
	notify      []NotifyFn
	*flag.FlagSet
}

// Source describes where configuration data has been acquired from.
type Source string

const (
	// ConfigFile is a YAML file configuration source.
	ConfigFile Source = "configuration file"
	// External is an external configuration source.
	External Source = "external configuration"
)

// NotifyFn is the type of configuration change notification callbacks.
type NotifyFn func(Source) error

// modules is our registry of configuration modules.
var modules = make(map[string]*Module)

// Register creates and registers a new configuration module.
func Register(name, description string) *Module {
	if m, ok := modules[name]; ok {
		log.Panicf("can't register module %s (%s), already registered (%s)",
			name, description, m.description)
	}

	m := &Module{
		name:        name,
		description: description,
		FlagSet:     flag.NewFlagSet(name, flag.ContinueOnError),
	}
	modules[name] = m

	return m
}

// GetModule looks up the named module.
func GetModule(name string) *Module {
	return modules[name]
}

// Name returns the name of the module.
func (m *Module) Name() string {
	return m.name
}

// Description returns the description of the module.
func (m *Module) Description() string {
	return m.description
}

// WatchUpdates adds a notification callback to the module.
func (m *Module) WatchUpdates(fn NotifyFn) {
	m.notify = append(m.notify, fn)
}

// SetVar sets the named variable of the module to the given value.
func (m *Module) SetVar(name, value string) error {
	f := m.Lookup(name)
	if f == nil {
		return configError("module '%s': no variable '%s'", m.name, name)
	}
	if err := f.Value.Set(value); err != nil {
		return configError("module '%s': failed to set '%s': %v", m.name, name, err)
	}

	log.Debugf("%s.%s = %s", m.name, name, value)

	return nil
}

// apply pushes raw data from the given source into the module.
func (m *Module) apply(data map[string]interface{}, source Source) error {
	for key, value := range data {
		str := ""
		switch v := value.(type) {
		case string:
			str = v
		default:
			raw, err := yaml.Marshal(v)
			if err != nil {
				return configError("module '%s': unmarshalable value for '%s': %v",
					m.name, key, err)
			}
			str = strings.TrimSpace(string(raw))
		}
		if err := m.SetVar(key, str); err != nil {
			return err
		}
	}

	for _, fn := range m.notify {
		if err := fn(source); err != nil {
			return configError("module '%s': update notification failed: %v",
				m.name, err)
		}
	}

	return nil
}

// SetConfig applies the given raw YAML configuration data. Top-level keys
// select the module, nested data sets its variables.
func SetConfig(raw []byte) error {
	return setConfig(raw, External)
}

// SetConfigFromFile applies configuration from the given YAML file.
func SetConfigFromFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return configError("failed to read configuration file '%s': %v", path, err)
	}
	return setConfig(raw, ConfigFile)
}

func setConfig(raw []byte, source Source) error {
	data := map[string]map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return configError("failed to parse configuration data: %v", err)
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m, ok := modules[name]
		if !ok {
			return configError("configuration data for unknown module '%s'", name)
		}
		if err := m.apply(data[name], source); err != nil {
			return err
		}
	}

	return nil
}

// Describe prints a description of the registered modules and their variables.
func Describe(names ...string) {
	if len(names) == 0 {
		for name := range modules {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	for _, name := range names {
		m, ok := modules[name]
		if !ok {
			fmt.Printf("unknown module '%s'\n", name)
			continue
		}
		fmt.Printf("%s: %s\n", m.name, m.description)
		m.VisitAll(func(f *flag.Flag) {
			fmt.Printf("  %s (default %q)\n      %s\n", f.Name, f.DefValue, f.Usage)
		})
	}
}

// configError returns a formatted package-specific error.
func configError(format string, args ...interface{}) error {
	return fmt.Errorf("config: "+format, args...)
}
