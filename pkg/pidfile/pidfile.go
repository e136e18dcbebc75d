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

// Package pidfile tracks the agent's PID file, used to detect an already
// running instance.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

var pidFilePath = defaultPath()

func defaultPath() string {
	name := filepath.Base(os.Args[0])
	return filepath.Join("/var/run", name, name+".pid")
}

// GetPath returns the current PID file path.
func GetPath() string {
	return pidFilePath
}

// SetPath sets the PID file path.
func SetPath(path string) {
	pidFilePath = path
}

// Write creates the PID file with our PID. It fails if the file already
// exists.
func Write() error {
	if err := os.MkdirAll(filepath.Dir(pidFilePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create PID file directory")
	}

	f, err := os.OpenFile(pidFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to create PID file")
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return errors.Wrap(err, "failed to write PID file")
	}

	return nil
}

// Read returns the PID recorded in the PID file, or 0 if there is none.
func Read() (int, error) {
	buf, err := os.ReadFile(pidFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return -1, errors.Wrap(err, "failed to read PID file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(buf)))
	if err != nil {
		return -1, errors.Wrapf(err, "invalid PID (%q) in PID file", string(buf))
	}

	return pid, nil
}

// Remove removes the PID file, regardless of which process created it.
func Remove() error {
	if err := os.Remove(pidFilePath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove PID file")
	}
	return nil
}

// OwnerPid returns the PID of the live process owning the PID file, or 0 if
// no live process does (no file, or a stale one).
func OwnerPid() (int, error) {
	pid, err := Read()
	if err != nil || pid <= 0 {
		return pid, err
	}

	// Signal 0 probes for existence without disturbing the process.
	if err := syscall.Kill(pid, 0); err != nil {
		if err == syscall.ESRCH {
			return 0, nil
		}
		if err == syscall.EPERM {
			return pid, nil
		}
		return -1, errors.Wrapf(err, "failed to probe process %d", pid)
	}

	return pid, nil
}
