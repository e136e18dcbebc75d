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

package measurement

import (
	"encoding/binary"
	"fmt"
)

// ResourceKind identifies what a resource or resource consumer is. The set of
// kinds is closed within one API version; new kinds are additive.
type ResourceKind uint32

const (
	// LocalMachine is the whole machine the agent runs on.
	LocalMachine ResourceKind = iota
	// Process is a single OS process.
	Process
	// ControlGroup is a cgroup in the cgroupfs hierarchy.
	ControlGroup
	// CpuPackage is a CPU package (socket).
	CpuPackage
	// CpuCore is a single CPU core.
	CpuCore
	// Dram is the DRAM attached to a CPU package.
	Dram
	// Gpu is a GPU identified by its PCI bus id.
	Gpu

	resourceKindCount
)

// kindNames maps resource kinds to their stable string encodings.
var kindNames = map[ResourceKind]string{
	LocalMachine: "local_machine",
	Process:      "process",
	ControlGroup: "cgroup",
	CpuPackage:   "cpu_package",
	CpuCore:      "cpu_core",
	Dram:         "dram",
	Gpu:          "gpu",
}

// String returns the stable string encoding of the kind.
func (k ResourceKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("<invalid resource kind %d>", uint32(k))
}

// Resource identifies what is being measured.
type Resource struct {
	kind ResourceKind
	id   uint64
	str  string
}

// ResourceConsumer identifies what consumes the measured resource.
type ResourceConsumer struct {
	kind ResourceKind
	id   uint64
	str  string
}

// LocalMachineResource returns the whole-machine resource.
func LocalMachineResource() Resource {
	return Resource{kind: LocalMachine}
}

// ProcessResource returns the resource for the given process.
func ProcessResource(pid uint32) Resource {
	return Resource{kind: Process, id: uint64(pid)}
}

// ControlGroupResource returns the resource for the given cgroup path.
func ControlGroupResource(path string) Resource {
	return Resource{kind: ControlGroup, str: path}
}

// CpuPackageResource returns the resource for the given CPU package.
func CpuPackageResource(pkg uint32) Resource {
	return Resource{kind: CpuPackage, id: uint64(pkg)}
}

// CpuCoreResource returns the resource for the given CPU core.
func CpuCoreResource(core uint32) Resource {
	return Resource{kind: CpuCore, id: uint64(core)}
}

// DramResource returns the resource for the DRAM of the given package.
func DramResource(pkg uint32) Resource {
	return Resource{kind: Dram, id: uint64(pkg)}
}

// GpuResource returns the resource for the GPU at the given PCI bus id.
func GpuResource(bus string) Resource {
	return Resource{kind: Gpu, str: bus}
}

// Kind returns the kind of the resource.
func (r Resource) Kind() ResourceKind { return r.kind }

// ID returns the numeric id of the resource (pid, package, core).
func (r Resource) ID() uint64 { return r.id }

// Path returns the string id of the resource (cgroup path, GPU bus).
func (r Resource) Path() string { return r.str }

// String returns a human-readable rendering of the resource.
func (r Resource) String() string {
	switch r.kind {
	case LocalMachine:
		return kindNames[r.kind]
	case ControlGroup, Gpu:
		return fmt.Sprintf("%s(%s)", kindNames[r.kind], r.str)
	default:
		return fmt.Sprintf("%s(%d)", r.kind, r.id)
	}
}

// LocalMachineConsumer returns the whole-machine resource consumer.
func LocalMachineConsumer() ResourceConsumer {
	return ResourceConsumer{kind: LocalMachine}
}

// ProcessConsumer returns the resource consumer for the given process.
func ProcessConsumer(pid uint32) ResourceConsumer {
	return ResourceConsumer{kind: Process, id: uint64(pid)}
}

// ControlGroupConsumer returns the resource consumer for the given cgroup.
func ControlGroupConsumer(path string) ResourceConsumer {
	return ResourceConsumer{kind: ControlGroup, str: path}
}

// Kind returns the kind of the consumer.
func (c ResourceConsumer) Kind() ResourceKind { return c.kind }

// ID returns the numeric id of the consumer.
func (c ResourceConsumer) ID() uint64 { return c.id }

// Path returns the string id of the consumer.
func (c ResourceConsumer) Path() string { return c.str }

// String returns a human-readable rendering of the consumer.
func (c ResourceConsumer) String() string {
	return Resource{kind: c.kind, id: c.id, str: c.str}.String()
}

//
// Fixed-layout binary frame, shared with the dynamic plugin ABI. The frame
// size is pinned; the loader refuses plugins built against another layout.
//

const (
	// ResourceFrameSize is the pinned byte size of an encoded resource.
	ResourceFrameSize = 56
	// resourceFrameStrLen is the maximum encodable string id length.
	resourceFrameStrLen = ResourceFrameSize - 20
)

// EncodeFrame encodes the resource into its fixed 56-byte frame.
//
// Layout: kind u32 | reserved u32 | id u64 | strlen u32 | str [36]byte,
// all little-endian, string NUL-padded.
func (r Resource) EncodeFrame() ([ResourceFrameSize]byte, error) {
	var frame [ResourceFrameSize]byte

	if len(r.str) > resourceFrameStrLen {
		return frame, fmt.Errorf("resource string id %q exceeds %d bytes",
			r.str, resourceFrameStrLen)
	}

	binary.LittleEndian.PutUint32(frame[0:4], uint32(r.kind))
	binary.LittleEndian.PutUint64(frame[8:16], r.id)
	binary.LittleEndian.PutUint32(frame[16:20], uint32(len(r.str)))
	copy(frame[20:], r.str)

	return frame, nil
}

// DecodeFrame decodes a resource from its fixed 56-byte frame.
func DecodeFrame(frame [ResourceFrameSize]byte) (Resource, error) {
	kind := ResourceKind(binary.LittleEndian.Uint32(frame[0:4]))
	if kind >= resourceKindCount {
		return Resource{}, fmt.Errorf("invalid resource kind %d in frame", uint32(kind))
	}

	n := binary.LittleEndian.Uint32(frame[16:20])
	if n > resourceFrameStrLen {
		return Resource{}, fmt.Errorf("invalid resource string length %d in frame", n)
	}

	return Resource{
		kind: kind,
		id:   binary.LittleEndian.Uint64(frame[8:16]),
		str:  string(frame[20 : 20+n]),
	}, nil
}
