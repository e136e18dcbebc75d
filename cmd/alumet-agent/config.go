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

package main

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/alumet-dev/alumet-go/pkg/config"
)

// loadConfig applies the agent configuration file. Top-level keys address
// the registered configuration modules (logger, instrumentation, ...); the
// "plugins" key carries one free-form table per plugin and is returned for
// the plugin host.
func loadConfig(path string) (map[string]config.Table, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration %s", path)
	}

	all := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &all); err != nil {
		return nil, errors.Wrapf(err, "malformed configuration %s", path)
	}

	pluginConfigs := map[string]config.Table{}
	if plugins, ok := all["plugins"].(map[string]interface{}); ok {
		for name, section := range plugins {
			if table, ok := section.(map[string]interface{}); ok {
				pluginConfigs[name] = config.Table(table)
			}
		}
		delete(all, "plugins")
	}

	if len(all) > 0 {
		moduleData, err := yaml.Marshal(all)
		if err != nil {
			return nil, errors.Wrap(err, "failed to re-encode configuration")
		}
		if err := config.SetConfig(moduleData); err != nil {
			return nil, err
		}
	}

	return pluginConfigs, nil
}
