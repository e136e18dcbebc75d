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

package log

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Backend is an entity that can emit formatted log messages.
type Backend interface {
	// Name returns the name of this backend.
	Name() string
	// Debug emits a debug message.
	Debug(message string)
	// Info emits an informational message.
	Info(message string)
	// Warn emits a warning message.
	Warn(message string)
	// Error emits an error message.
	Error(message string)
	// Flush flushes any buffered log messages.
	Flush()
}

var (
	backends = make(map[string]Backend)
	active   Backend
)

// RegisterBackend registers the given backend, activating it if none is active.
func RegisterBackend(b Backend) {
	backends[b.Name()] = b
	if active == nil {
		active = b
	}
}

// SelectBackend activates the named backend.
func SelectBackend(name string) error {
	b, ok := backends[name]
	if !ok {
		return loggerError("unknown logger backend '%s'", name)
	}
	active = b
	return nil
}

// Flush flushes any buffered log messages of the active backend.
func Flush() {
	if active != nil {
		active.Flush()
	}
}

// loggerError returns a formatted package-specific error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("log: "+format, args...)
}

//
// klog backend
//

type klogBackend struct{}

var _ Backend = &klogBackend{}

func (k *klogBackend) Name() string {
	return "klog"
}

func (k *klogBackend) Debug(message string) {
	klog.InfoDepth(3, "D: "+message)
}

func (k *klogBackend) Info(message string) {
	klog.InfoDepth(3, message)
}

func (k *klogBackend) Warn(message string) {
	klog.WarningDepth(3, message)
}

func (k *klogBackend) Error(message string) {
	klog.ErrorDepth(3, message)
}

func (k *klogBackend) Flush() {
	klog.Flush()
}

//
// fallback fmt backend
//

type fmtBackend struct{}

var _ Backend = &fmtBackend{}

func (f *fmtBackend) Name() string {
	return "fmt"
}

func (f *fmtBackend) Debug(message string) {
	fmt.Println("D: " + message)
}

func (f *fmtBackend) Info(message string) {
	fmt.Println("I: " + message)
}

func (f *fmtBackend) Warn(message string) {
	fmt.Println("W: " + message)
}

func (f *fmtBackend) Error(message string) {
	fmt.Println("E: " + message)
}

func (f *fmtBackend) Flush() {}

func init() {
	RegisterBackend(&klogBackend{})
	RegisterBackend(&fmtBackend{})
	active = backends["klog"]
}
