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
	"context"
	"runtime/debug"

	"github.com/pkg/errors"

	logger "github.com/alumet-dev/alumet-go/pkg/log"
	"github.com/alumet-dev/alumet-go/pkg/measurement"
)

// transformEntry is one transform in the statically ordered chain.
type transformEntry struct {
	name           ElementName
	transform      Transform
	state          *stateCell
	skipOnBadInput bool
}

// transformTask drives the transform chain: a single task receives buffers
// from the merged source channel, runs them through each enabled transform in
// order and hands them to the output dispatcher. Per-transform enable state
// is observed between buffers, never mid-buffer.
type transformTask struct {
	chain []*transformEntry
	in    <-chan *measurement.Buffer
	tctx  *TransformContext

	dispatch func(ctx context.Context, buf *measurement.Buffer) bool
	super    chan<- supervisorEvent
	onExit   func(ElementName)
	log      logger.Logger
}

func (t *transformTask) run(ctx context.Context) {
	t.log.Debug("transform chain starting with %d transform(s)", len(t.chain))

	for {
		var buf *measurement.Buffer
		var ok bool

		select {
		case buf, ok = <-t.in:
			if !ok {
				t.log.Debug("transform chain: upstream closed, draining done")
				return
			}
		case <-ctx.Done():
			return
		}

		t.process(ctx, buf)

		if !t.dispatch(ctx, buf) {
			return
		}
	}
}

// process runs one buffer through the chain.
func (t *transformTask) process(ctx context.Context, buf *measurement.Buffer) {
	// Snapshot enabled states so toggles never take effect mid-buffer.
	enabled := make([]bool, len(t.chain))
	for i, e := range t.chain {
		enabled[i] = e.state.get() == Run
	}

	badInput := false
	for i, e := range t.chain {
		if !enabled[i] {
			continue
		}
		if badInput && e.skipOnBadInput {
			continue
		}

		err := t.apply(e, buf)
		if err == nil {
			continue
		}

		terr := asTransformError(err)
		if terr.IsFatal() {
			// Remove the offending transform; the chain keeps operating.
			e.state.set(Stop)
			t.log.Error("transform %s: removed after fatal error: %v", e.name, terr)
			t.report(ctx, e.name, &FatalElementError{Element: e.name, Cause: terr})
			t.onExit(e.name)
			continue
		}

		badInput = true
		t.log.Warn("transform %s: unexpected input, buffer continues: %v", e.name, terr)
		t.report(ctx, e.name, terr)
	}
}

// apply invokes one transform with panics contained to it.
func (t *transformTask) apply(e *transformEntry, buf *measurement.Buffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FatalTransformError(errors.Errorf("panic in transform %s: %v\n%s",
				e.name, r, debug.Stack()))
		}
	}()
	return e.transform.Apply(buf, t.tctx)
}

func (t *transformTask) report(ctx context.Context, name ElementName, err error) {
	select {
	case t.super <- supervisorEvent{element: name, err: err}:
	case <-ctx.Done():
	}
}

// asTransformError normalizes arbitrary errors returned by an Apply into the
// TransformError taxonomy. Unknown errors are fatal.
func asTransformError(err error) *TransformError {
	terr := &TransformError{}
	if errors.As(err, &terr) {
		return terr
	}
	return FatalTransformError(err)
}
