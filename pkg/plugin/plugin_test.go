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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet-go/pkg/config"
	logger "github.com/alumet-dev/alumet-go/pkg/log"
	"github.com/alumet-dev/alumet-go/pkg/measurement"
	"github.com/alumet-dev/alumet-go/pkg/metrics"
	"github.com/alumet-dev/alumet-go/pkg/pipeline"
	"github.com/alumet-dev/alumet-go/pkg/version"
)

func testLogger() logger.Logger {
	return logger.NewLogger("plugin-test")
}

// fakeProbe is a minimal plugin registering one metric and one source.
type fakeProbe struct {
	interval time.Duration
	metric   metrics.TypedID[uint64]
	key      pipeline.SourceKey
	started  bool
	stopped  bool
	postRun  bool
}

func (p *fakeProbe) Name() string    { return "fake-probe" }
func (p *fakeProbe) Version() string { return "0.1.0" }

func (p *fakeProbe) DefaultConfig() config.Table {
	return config.Table{"poll_interval": "50ms"}
}

func (p *fakeProbe) Init(cfg config.Table) error {
	interval, err := time.ParseDuration(cfg.String("poll_interval", "1s"))
	if err != nil {
		return err
	}
	p.interval = interval
	return nil
}

func (p *fakeProbe) Start(ctx *StartContext) error {
	m, err := CreateMetric[uint64](ctx, "fake_counter", metrics.PlainUnit(metrics.Unitless), "a counter")
	if err != nil {
		return err
	}
	p.metric = m
	p.key = ctx.AddSource("counter", &fakeSource{metric: m}, pipeline.TimeTrigger(p.interval))
	p.started = true
	return nil
}

func (p *fakeProbe) PostPipelineStart(*pipeline.Pipeline) error {
	p.postRun = true
	return nil
}

func (p *fakeProbe) Stop() error {
	p.stopped = true
	return nil
}

type fakeSource struct {
	metric metrics.TypedID[uint64]
	n      uint64
}

func (s *fakeSource) Poll(acc *measurement.Accumulator, ts time.Time) error {
	s.n++
	acc.Push(s.metric.Point(ts, measurement.LocalMachineResource(), measurement.LocalMachineConsumer(), s.n))
	return nil
}

func TestHostLifecycle(t *testing.T) {
	probe := &fakeProbe{}
	host := &Host{log: testLogger(), plugins: []Plugin{probe}}

	// Configuration overrides merge over the plugin defaults.
	err := host.InitAll(map[string]config.Table{
		"fake-probe": {"poll_interval": "20ms"},
	})
	require.NoError(t, err)
	require.Equal(t, 20*time.Millisecond, probe.interval)

	builder := pipeline.NewBuilder(pipeline.DefaultConfig())
	require.NoError(t, host.StartAll(builder))
	require.True(t, probe.started)
	require.Equal(t, "fake-probe/source/counter", probe.key.Name().String())

	// The metric ended up in the registry with the declared type.
	id, def, ok := builder.Metrics().ByName("fake_counter")
	require.True(t, ok)
	require.Equal(t, probe.metric.ID(), id)
	require.Equal(t, measurement.U64, def.Type)

	p, err := builder.Build()
	require.NoError(t, err)
	require.NoError(t, p.Start())

	host.PostPipelineStartAll(p)
	require.True(t, probe.postRun)

	p.Shutdown()
	require.Equal(t, pipeline.ExitGraceful, p.Wait())

	host.StopAll()
	require.True(t, probe.stopped)
}

func TestInitFailureIsFatal(t *testing.T) {
	probe := &fakeProbe{}
	host := &Host{log: testLogger(), plugins: []Plugin{probe}}

	err := host.InitAll(map[string]config.Table{
		"fake-probe": {"poll_interval": "not-a-duration"},
	})
	require.Error(t, err)
}

func TestManifestValidation(t *testing.T) {
	cases := []struct {
		name     string
		manifest Manifest
		ok       bool
	}{
		{
			name: "valid manifest",
			manifest: Manifest{
				Name:              "rapl",
				Version:           "1.2.3",
				APIVersion:        version.APIVersion,
				ResourceFrameSize: measurement.ResourceFrameSize,
			},
			ok: true,
		},
		{
			name: "api version mismatch",
			manifest: Manifest{
				Name:              "rapl",
				APIVersion:        "0.0-other",
				ResourceFrameSize: measurement.ResourceFrameSize,
			},
		},
		{
			name: "layout mismatch",
			manifest: Manifest{
				Name:              "rapl",
				APIVersion:        version.APIVersion,
				ResourceFrameSize: 64,
			},
		},
		{
			name: "missing name",
			manifest: Manifest{
				APIVersion:        version.APIVersion,
				ResourceFrameSize: measurement.ResourceFrameSize,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.manifest.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	content := "name: rapl\nversion: 1.2.3\napiVersion: " + version.APIVersion +
		"\nresourceFrameSize: 56\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Equal(t, "rapl", m.Name)
	require.NoError(t, m.Validate())

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
