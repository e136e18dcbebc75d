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

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	logger "github.com/alumet-dev/alumet-go/pkg/log"
)

// EventKind tells what happened to a watched cgroup.
type EventKind int

const (
	// GroupCreated reports a new cgroup directory.
	GroupCreated EventKind = iota
	// GroupRemoved reports a removed cgroup directory.
	GroupRemoved
)

// Event is one change in the watched cgroup hierarchy.
type Event struct {
	Kind EventKind
	// Group is the cgroup path relative to the hierarchy root, starting
	// with "/".
	Group string
	// Dir is the absolute cgroupfs directory.
	Dir string
}

// Watcher turns inotify events on a cgroup hierarchy into a stream of
// cgroup created/removed events. Consumers typically register one pipeline
// source per appearing cgroup and let it stop itself once the files vanish.
type Watcher struct {
	root   string
	events chan Event
	fsw    *fsnotify.Watcher
	dirs   map[string]bool
	stop   chan struct{}
	log    logger.Logger
}

// NewWatcher creates a watcher for the hierarchy rooted at the given
// absolute cgroupfs directory.
func NewWatcher(root string, capacity int) (*Watcher, error) {
	if capacity < 1 {
		capacity = 16
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create inotify watcher")
	}

	return &Watcher{
		root:   root,
		events: make(chan Event, capacity),
		fsw:    fsw,
		dirs:   make(map[string]bool),
		stop:   make(chan struct{}),
		log:    logger.NewLogger("cgroup-watch"),
	}, nil
}

// Events returns the event stream. It is closed when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start synthesizes creation events for the pre-existing groups, sets up
// recursive watches and starts the event loop.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		w.fsw.Close()
		return err
	}

	go w.run()
	return nil
}

// Stop terminates the watcher and closes the event stream.
func (w *Watcher) Stop() {
	close(w.stop)
}

// addRecursive watches dir and all nested cgroup directories, emitting a
// synthetic creation event for each.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			// The group vanished mid-walk; the removal event covers it.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.dirs[p] {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.Wrapf(err, "failed to watch %s", p)
		}
		w.dirs[p] = true
		w.emit(Event{Kind: GroupCreated, Group: w.groupOf(p), Dir: p})
		return nil
	})
}

func (w *Watcher) groupOf(dir string) string {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.stop:
	}
}

func (w *Watcher) run() {
	defer func() {
		w.fsw.Close()
		close(w.events)
	}()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("inotify error on %s: %v", w.root, err)

		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(ev.Name)
		if err != nil || !info.IsDir() {
			return
		}
		// New groups can appear with children already in place (a whole
		// slice moved in at once); pick them all up.
		if err := w.addRecursive(ev.Name); err != nil {
			w.log.Error("failed to watch new cgroup %s: %v", ev.Name, err)
		}

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Entries come and go inside group directories all the time; only
		// the disappearance of a watched directory is a group removal.
		if !w.dirs[ev.Name] {
			return
		}
		delete(w.dirs, ev.Name)
		w.emit(Event{Kind: GroupRemoved, Group: w.groupOf(ev.Name), Dir: ev.Name})
	}
}
