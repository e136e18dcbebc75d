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

package pipeline

import (
	"runtime"

	"golang.org/x/sys/unix"
)

const (
	// rtSchedPolicy is the realtime scheduling policy used around polls.
	rtSchedPolicy = 1 // SCHED_FIFO
	// rtSchedPriority is the realtime priority used around polls.
	rtSchedPriority = 55
)

// rtBoost raises the calling thread to SCHED_FIFO priority 55 for the
// duration of a poll. The caller must have the thread locked. Returns a
// restore function, and false when the boost was denied (no CAP_SYS_NICE);
// polls proceed without the boost in that case.
func rtBoost() (func(), bool) {
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   rtSchedPolicy,
		Priority: uint32(rtSchedPriority),
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return func() {}, false
	}

	restore := func() {
		normal := &unix.SchedAttr{
			Size:   unix.SizeofSchedAttr,
			Policy: 0, // SCHED_OTHER
		}
		_ = unix.SchedSetAttr(0, normal, 0)
	}
	return restore, true
}

// lockThread pins the calling goroutine to its OS thread so the realtime
// boost applies to a known thread. Returns the unlock function.
func lockThread() func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}
