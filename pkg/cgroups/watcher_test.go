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
	"path/filepath"
	"testing"
	"time"
)

func collectEvents(t *testing.T, w *Watcher, want int, timeout time.Duration) []Event {
	t.Helper()

	events := make([]Event, 0, want)
	deadline := time.After(timeout)
	for len(events) < want {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatalf("event stream closed after %d event(s), wanted %d", len(events), want)
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out after %d event(s), wanted %d", len(events), want)
		}
	}
	return events
}

func TestWatcherSynthesizesExistingGroups(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "oar", "user1"), 0755); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	w, err := NewWatcher(root, 16)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	events := collectEvents(t, w, 3, 2*time.Second)

	groups := map[string]bool{}
	for _, ev := range events {
		if ev.Kind != GroupCreated {
			t.Fatalf("unexpected event kind %d for %s", ev.Kind, ev.Group)
		}
		groups[ev.Group] = true
	}
	for _, expect := range []string{"/", "/oar", "/oar/user1"} {
		if !groups[expect] {
			t.Fatalf("missing creation event for %s (got %v)", expect, groups)
		}
	}
}

func TestWatcherReportsCreationAndRemoval(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(root, 16)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// The root itself.
	collectEvents(t, w, 1, 2*time.Second)

	dir := filepath.Join(root, "job42")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	created := collectEvents(t, w, 1, 2*time.Second)[0]
	if created.Kind != GroupCreated || created.Group != "/job42" {
		t.Fatalf("unexpected creation event %+v", created)
	}

	// Plain files inside a group are not groups.
	if err := os.WriteFile(filepath.Join(dir, "cgroup.procs"), []byte("123\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "cgroup.procs")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if err := os.Remove(dir); err != nil {
		t.Fatalf("rmdir failed: %v", err)
	}

	removed := collectEvents(t, w, 1, 2*time.Second)[0]
	if removed.Kind != GroupRemoved || removed.Group != "/job42" {
		t.Fatalf("unexpected removal event %+v", removed)
	}
}
