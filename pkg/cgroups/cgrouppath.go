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

package cgroups

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	logger "github.com/alumet-dev/alumet-go/pkg/log"
)

// Version is the cgroupfs hierarchy version.
type Version int

const (
	// V1 is the split-controller cgroup hierarchy.
	V1 Version = iota + 1
	// V2 is the unified cgroup hierarchy.
	V2
)

const (
	// Procs is a cgroup's "cgroup.procs" entry.
	Procs = "cgroup.procs"
	// Controllers is the v2 "cgroup.controllers" entry, whose presence
	// identifies a unified hierarchy.
	Controllers = "cgroup.controllers"
	// CpuStat is the v2 cpu statistics entry.
	CpuStat = "cpu.stat"
	// CpuacctUsage is the v1 cpuacct controller's usage entry.
	CpuacctUsage = "cpuacct.usage"
	// MemoryStat is the memory statistics entry (v1 and v2).
	MemoryStat = "memory.stat"
	// MemoryCurrent is the v2 current memory usage entry.
	MemoryCurrent = "memory.current"
	// MemoryUsageInBytes is the v1 current memory usage entry.
	MemoryUsageInBytes = "memory.usage_in_bytes"
)

var (
	// mountDir is the parent directory of cgroupfs mounts.
	mountDir = "/sys/fs/cgroup"

	// our logger instance
	pathlog = logger.NewLogger("cgroups")
)

// GetMountDir returns the cgroupfs mount point.
func GetMountDir() string {
	return mountDir
}

// SetMountDir sets the cgroupfs mount point. Tests point this at scratch
// directories.
func SetMountDir(dir string) {
	mountDir = dir
	pathlog.Debug("cgroupfs mount directory set to %s", dir)
}

// DetectVersion probes the hierarchy version at the mount point.
func DetectVersion() Version {
	if _, err := os.Stat(path.Join(mountDir, Controllers)); err == nil {
		return V2
	}
	return V1
}

// V1Dir returns the absolute directory of a cgroup under a v1 controller.
func V1Dir(controller, group string) string {
	return path.Join(mountDir, controller, group)
}

// V2Dir returns the absolute directory of a cgroup in the unified hierarchy.
func V2Dir(group string) string {
	return path.Join(mountDir, group)
}

// GroupOf extracts the cgroup path from an absolute cgroupfs directory, for
// the unified hierarchy.
func GroupOf(dir string) string {
	rel, err := filepath.Rel(mountDir, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	if rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}
