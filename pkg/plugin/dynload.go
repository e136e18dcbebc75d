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

package plugin

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/alumet-dev/alumet-go/pkg/measurement"
	"github.com/alumet-dev/alumet-go/pkg/version"
)

// Manifest describes a dynamically loadable plugin. The host validates the
// API version tag and the pinned binary layout before handing the plugin any
// pipeline object; a mismatch refuses the load.
type Manifest struct {
	// Name is the plugin name.
	Name string `json:"name"`
	// Version is the plugin version.
	Version string `json:"version"`
	// APIVersion is the alumet-api version tag the plugin was built
	// against.
	APIVersion string `json:"apiVersion"`
	// ResourceFrameSize is the resource frame byte size the plugin was
	// built with. Guards the fixed-layout structs crossing the ABI.
	ResourceFrameSize int `json:"resourceFrameSize"`
}

// LoadManifest reads and parses a plugin manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plugin manifest %s", path)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(raw, m); err != nil {
		return nil, errors.Wrapf(err, "malformed plugin manifest %s", path)
	}
	return m, nil
}

// Validate refuses manifests of plugins built against another API version or
// binary layout.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return pluginError("manifest has no plugin name")
	}
	if m.APIVersion != version.APIVersion {
		return pluginError("plugin %s built against alumet-api %s, host speaks %s, refusing to load",
			m.Name, m.APIVersion, version.APIVersion)
	}
	if m.ResourceFrameSize != measurement.ResourceFrameSize {
		return pluginError("plugin %s built with resource frame size %d, host uses %d, refusing to load",
			m.Name, m.ResourceFrameSize, measurement.ResourceFrameSize)
	}
	return nil
}
