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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestModuleVariables(t *testing.T) {
	m := Register("test-vars", "variables for testing")

	var (
		str      string
		num      int
		enabled  bool
		interval time.Duration
	)
	m.StringVar(&str, "str", "default", "a string")
	m.IntVar(&num, "num", 1, "a number")
	m.BoolVar(&enabled, "enabled", false, "a toggle")
	m.DurationVar(&interval, "interval", time.Second, "a duration")

	require.NoError(t, m.SetVar("str", "hello"))
	require.NoError(t, m.SetVar("num", "42"))
	require.NoError(t, m.SetVar("enabled", "true"))
	require.NoError(t, m.SetVar("interval", "250ms"))

	require.Equal(t, "hello", str)
	require.Equal(t, 42, num)
	require.True(t, enabled)
	require.Equal(t, 250*time.Millisecond, interval)

	require.Error(t, m.SetVar("no-such-variable", "x"))
	require.Error(t, m.SetVar("num", "not-a-number"))
}

func TestSetConfigDispatchesToModules(t *testing.T) {
	m := Register("test-yaml", "yaml for testing")

	var (
		period time.Duration
		addr   string
	)
	m.DurationVar(&period, "period", time.Second, "poll period")
	m.StringVar(&addr, "address", "", "endpoint address")

	notified := 0
	m.WatchUpdates(func(Source) error {
		notified++
		return nil
	})

	err := SetConfig([]byte("test-yaml:\n  period: 30s\n  address: localhost:9090\n"))
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, period)
	require.Equal(t, "localhost:9090", addr)
	require.Equal(t, 1, notified)

	err = SetConfig([]byte("no-such-module:\n  key: value\n"))
	require.Error(t, err)
}

func TestSetConfigFromFile(t *testing.T) {
	m := Register("test-file", "file for testing")
	var level string
	m.StringVar(&level, "level", "info", "a level")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test-file:\n  level: debug\n"), 0644))

	require.NoError(t, SetConfigFromFile(path))
	require.Equal(t, "debug", level)

	require.Error(t, SetConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestTable(t *testing.T) {
	table, err := ParseTable([]byte("poll_interval: 5\npath: /sys/fs/cgroup\nrecurse: true\nnested:\n  key: v\n"))
	require.NoError(t, err)

	require.Equal(t, 5, table.Int("poll_interval", 0))
	require.Equal(t, "/sys/fs/cgroup", table.String("path", ""))
	require.True(t, table.Bool("recurse", false))
	require.Equal(t, "fallback", table.String("missing", "fallback"))
	require.Equal(t, "v", table.Sub("nested").String("key", ""))
	require.Nil(t, table.Sub("missing"))

	var decoded struct {
		PollInterval int    `json:"poll_interval"`
		Path         string `json:"path"`
	}
	require.NoError(t, table.Decode(&decoded))
	require.Equal(t, 5, decoded.PollInterval)
	require.Equal(t, "/sys/fs/cgroup", decoded.Path)
}
