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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CpuStats has the parsed contents of a v2 cpu.stat file. Times are in
// microseconds, as reported by the kernel.
type CpuStats struct {
	UsageUsec  uint64
	UserUsec   uint64
	SystemUsec uint64
}

// MemoryStats has the current and detailed memory usage of a cgroup, in
// bytes.
type MemoryStats struct {
	Current uint64
	Anon    uint64
	File    uint64
	Kernel  uint64
}

func readCgroupFileLines(filePath string) ([]string, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0)
	for _, rawLine := range strings.Split(string(raw), "\n") {
		if len(strings.TrimSpace(rawLine)) > 0 {
			lines = append(lines, rawLine)
		}
	}

	return lines, nil
}

func readCgroupSingleNumber(filePath string) (uint64, error) {
	// File looks like this:
	//
	// 4

	lines, err := readCgroupFileLines(filePath)
	if err != nil {
		return 0, err
	}
	if len(lines) != 1 {
		return 0, errors.Errorf("%s: expected a single number, got %d lines",
			filePath, len(lines))
	}

	n, err := strconv.ParseUint(strings.TrimSpace(lines[0]), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: malformed number", filePath)
	}
	return n, nil
}

// readCgroupKeyedNumbers parses "key value" lines as found in cpu.stat and
// memory.stat.
func readCgroupKeyedNumbers(filePath string) (map[string]uint64, error) {
	// File looks like this:
	//
	// usage_usec 144616
	// user_usec 95688
	// system_usec 48927

	lines, err := readCgroupFileLines(filePath)
	if err != nil {
		return nil, err
	}

	values := make(map[string]uint64, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		n, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		values[fields[0]] = n
	}

	return values, nil
}

// GetCpuStats reads the cpu statistics of a v2 cgroup.
func GetCpuStats(group string) (CpuStats, error) {
	values, err := readCgroupKeyedNumbers(path.Join(V2Dir(group), CpuStat))
	if err != nil {
		return CpuStats{}, err
	}

	return CpuStats{
		UsageUsec:  values["usage_usec"],
		UserUsec:   values["user_usec"],
		SystemUsec: values["system_usec"],
	}, nil
}

// GetCpuacctUsage reads the cumulative cpu time of a v1 cgroup, in
// nanoseconds.
func GetCpuacctUsage(group string) (uint64, error) {
	return readCgroupSingleNumber(path.Join(V1Dir("cpuacct", group), CpuacctUsage))
}

// GetMemoryStats reads the memory usage of a v2 cgroup.
func GetMemoryStats(group string) (MemoryStats, error) {
	dir := V2Dir(group)

	current, err := readCgroupSingleNumber(path.Join(dir, MemoryCurrent))
	if err != nil {
		return MemoryStats{}, err
	}

	stats := MemoryStats{Current: current}
	if values, err := readCgroupKeyedNumbers(path.Join(dir, MemoryStat)); err == nil {
		stats.Anon = values["anon"]
		stats.File = values["file"]
		stats.Kernel = values["kernel"]
	}

	return stats, nil
}

// GetMemoryUsageInBytes reads the current memory usage of a v1 cgroup.
func GetMemoryUsageInBytes(group string) (uint64, error) {
	return readCgroupSingleNumber(path.Join(V1Dir("memory", group), MemoryUsageInBytes))
}
