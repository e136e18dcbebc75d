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
	"fmt"

	"github.com/alumet-dev/alumet-go/pkg/config"
	logger "github.com/alumet-dev/alumet-go/pkg/log"
	"github.com/alumet-dev/alumet-go/pkg/pipeline"
)

// Plugin is the contract every in-process plugin implements. The host calls
// the methods in lifecycle order: Init, Start, PostPipelineStart, Stop.
type Plugin interface {
	// Name returns the unique plugin name, used as the plugin component of
	// the element names the plugin registers.
	Name() string
	// Version returns the plugin version.
	Version() string
	// DefaultConfig returns the default configuration of the plugin, or
	// nil if the plugin takes none.
	DefaultConfig() config.Table
	// Init prepares the plugin with its effective configuration.
	Init(cfg config.Table) error
	// Start registers the plugin's metrics and pipeline elements.
	Start(ctx *StartContext) error
	// PostPipelineStart runs once the pipeline is up, with access to its
	// control surface. Plugins hook dynamic element registration here.
	PostPipelineStart(p *pipeline.Pipeline) error
	// Stop releases plugin resources after the pipeline has shut down.
	Stop() error
}

// Factory creates one plugin instance.
type Factory func() Plugin

// registry of available plugin factories, in registration order.
var factories []Factory

// Register makes a plugin available to the host. Plugins register from
// their package init().
func Register(f Factory) {
	factories = append(factories, f)
}

// Host drives the registered plugins through their lifecycle.
type Host struct {
	log     logger.Logger
	plugins []Plugin
}

// NewHost instantiates every registered plugin.
func NewHost() *Host {
	h := &Host{log: logger.NewLogger("plugins")}
	for _, f := range factories {
		h.plugins = append(h.plugins, f())
	}
	return h
}

// Plugins returns the instantiated plugins.
func (h *Host) Plugins() []Plugin {
	return h.plugins
}

// InitAll initializes every plugin with its configuration section. A failed
// Init is a startup failure for the whole process.
func (h *Host) InitAll(cfgs map[string]config.Table) error {
	for _, p := range h.plugins {
		cfg := p.DefaultConfig()
		if override, ok := cfgs[p.Name()]; ok {
			if cfg == nil {
				cfg = config.Table{}
			}
			for k, v := range override {
				cfg[k] = v
			}
		}
		if err := p.Init(cfg); err != nil {
			return pluginError("plugin %s failed to initialize: %v", p.Name(), err)
		}
		h.log.Info("plugin %s %s initialized", p.Name(), p.Version())
	}
	return nil
}

// StartAll lets every plugin register its metrics and elements with the
// pipeline builder.
func (h *Host) StartAll(b *pipeline.Builder) error {
	for _, p := range h.plugins {
		ctx := &StartContext{plugin: p.Name(), builder: b}
		if err := p.Start(ctx); err != nil {
			return pluginError("plugin %s failed to start: %v", p.Name(), err)
		}
	}
	return nil
}

// PostPipelineStartAll runs the post-start hooks against the running
// pipeline. Hook failures are logged, not fatal.
func (h *Host) PostPipelineStartAll(pl *pipeline.Pipeline) {
	for _, p := range h.plugins {
		if err := p.PostPipelineStart(pl); err != nil {
			h.log.Error("plugin %s post-pipeline-start failed: %v", p.Name(), err)
		}
	}
}

// StopAll stops every plugin, in reverse registration order.
func (h *Host) StopAll() {
	for i := len(h.plugins) - 1; i >= 0; i-- {
		p := h.plugins[i]
		if err := p.Stop(); err != nil {
			h.log.Error("plugin %s failed to stop: %v", p.Name(), err)
		}
	}
}

// pluginError returns a formatted package-specific error.
func pluginError(format string, args ...interface{}) error {
	return fmt.Errorf("plugin: "+format, args...)
}
