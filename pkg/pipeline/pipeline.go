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
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	logger "github.com/alumet-dev/alumet-go/pkg/log"
	"github.com/alumet-dev/alumet-go/pkg/measurement"
	"github.com/alumet-dev/alumet-go/pkg/metrics"
)

// Exit codes of the measurement pipeline.
const (
	// ExitGraceful is the exit code of a clean shutdown.
	ExitGraceful = 0
	// ExitStartupFailure is the exit code of configuration and startup
	// failures.
	ExitStartupFailure = 1
	// ExitRuntimeFault is the exit code of an unrecoverable runtime fault.
	ExitRuntimeFault = 2
)

// supervisorEvent is one fault notification travelling the supervisor
// channel: a *FatalElementError, or a *TransformError carrying an
// unexpected-input notice.
type supervisorEvent struct {
	element ElementName
	err     error
}

// elementEntry is the control-plane registration of one element.
type elementEntry struct {
	name   ElementName
	state  *stateCell
	manual chan struct{}    // managed sources only
	reconf chan TriggerSpec // managed sources only
}

// Pipeline is the running measurement pipeline: the source tasks, the
// transform chain task, the output tasks, the control router and the
// supervisor, connected by the bounded channel fabric.
type Pipeline struct {
	logger.Logger

	cfg     Config
	metrics *metrics.Registry
	stats   *pipelineStats
	promReg *prometheus.Registry

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	elements  map[ElementName]*elementEntry
	lanes     map[ElementName]*outputLane
	nOutputs  int
	runDedups map[string]*deduplicator
	pending   pendingElements

	srcOut chan *measurement.Buffer
	bcast  *broadcast
	super  chan supervisorEvent

	srcWG   sync.WaitGroup // managed + autonomous source tasks
	chainWG sync.WaitGroup // the transform chain task
	outWG   sync.WaitGroup // output tasks
	auxWG   sync.WaitGroup // router + supervisor

	ctrl     *Control
	tctx     *TransformContext
	octx     *OutputContext
	exitCode atomic.Int32
	stopOnce sync.Once
	done     chan struct{}
}

// Build wires the channel fabric and creates the pipeline from everything
// registered with the builder. Output builders run here; a failing builder
// fails the whole build (startup failure).
func (b *Builder) Build() (*Pipeline, error) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pipeline{
		Logger:   b.log,
		cfg:      b.cfg,
		metrics:  b.metrics,
		stats:    newPipelineStats(),
		promReg:  prometheus.NewRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		elements: make(map[ElementName]*elementEntry),
		lanes:    make(map[ElementName]*outputLane),
		srcOut:   make(chan *measurement.Buffer, b.cfg.ChannelCapacity),
		bcast:    newBroadcast(b.cfg.BroadcastCapacity),
		super:    make(chan supervisorEvent, 16),
		done:     make(chan struct{}),
	}
	p.stats.register(p.promReg)
	p.tctx = &TransformContext{Metrics: p.metrics}
	p.octx = &OutputContext{Metrics: p.metrics}
	p.ctrl = &Control{p: p, reqs: make(chan *controlRequest, controlChannelCapacity)}

	for _, po := range b.outputs {
		if po.builder != nil {
			out, err := po.builder(p.octx)
			if err != nil {
				cancel()
				return nil, pipelineError("output builder %s failed: %v", po.name, err)
			}
			po.output = out
		}
	}

	p.pending = pendingElements{
		sources:    b.sources,
		transforms: b.transforms,
		outputs:    b.outputs,
	}

	return p, nil
}

// pendingElements holds registrations between Build and Start.
type pendingElements struct {
	sources    []*pendingSource
	transforms []*pendingTransform
	outputs    []*pendingOutput
}

// Control returns the control surface of the pipeline.
func (p *Pipeline) Control() *Control {
	return p.ctrl
}

// Metrics returns the metric registry of the pipeline.
func (p *Pipeline) Metrics() *metrics.Registry {
	return p.metrics
}

// Gatherer returns the prometheus registry carrying the pipeline's own
// counters.
func (p *Pipeline) Gatherer() *prometheus.Registry {
	return p.promReg
}

// Start freezes the metric registry and spawns every task: outputs first,
// then the transform chain, then the sources, then the control router and
// the supervisor.
func (p *Pipeline) Start() error {
	p.Info("starting measurement pipeline...")

	p.metrics.Freeze()

	// Outputs and their lanes.
	for _, po := range p.pending.outputs {
		if err := p.spawnOutput(po); err != nil {
			return err
		}
	}

	// The transform chain.
	chain := make([]*transformEntry, 0, len(p.pending.transforms))
	for _, pt := range p.pending.transforms {
		entry := &transformEntry{
			name:           pt.name,
			transform:      pt.transform,
			state:          newStateCell(),
			skipOnBadInput: pt.skipOnBadInput,
		}
		chain = append(chain, entry)
		p.register(&elementEntry{name: pt.name, state: entry.state})
	}
	chainTask := &transformTask{
		chain:    chain,
		in:       p.srcOut,
		tctx:     p.tctx,
		dispatch: p.dispatch,
		super:    p.super,
		onExit:   p.unregister,
		log:      p.Logger,
	}
	p.chainWG.Add(1)
	go func() {
		defer p.chainWG.Done()
		chainTask.run(p.ctx)
	}()

	// Sources.
	for _, ps := range p.pending.sources {
		p.spawnSource(ps)
	}

	// Control router and supervisor.
	p.auxWG.Add(2)
	go func() {
		defer p.auxWG.Done()
		p.ctrl.router(p.ctx)
	}()
	go func() {
		defer p.auxWG.Done()
		p.supervisor()
	}()

	p.pending = pendingElements{}
	p.Info("measurement pipeline up, %d element(s)", len(p.elements))

	return nil
}

// spawnOutput creates the lane (or subscription) and task of one output.
func (p *Pipeline) spawnOutput(po *pendingOutput) error {
	entry := &elementEntry{name: po.name, state: newStateCell()}
	p.register(entry)

	p.mu.Lock()
	p.nOutputs++
	p.mu.Unlock()

	if po.async != nil {
		task := &asyncOutputTask{
			name:   po.name,
			output: po.async,
			state:  entry.state,
			sub:    p.bcast.subscribe(),
			octx:   p.octx,
			super:  p.super,
			onExit: p.outputExited,
			stats:  p.stats,
			log:    p.Logger,
		}
		p.outWG.Add(1)
		go func() {
			defer p.outWG.Done()
			task.run(p.ctx)
		}()
		return nil
	}

	if po.output == nil {
		return pipelineError("output %s has no implementation", po.name)
	}

	lane := &outputLane{name: po.name, ch: make(chan *measurement.Buffer, p.cfg.LaneCapacity)}
	p.mu.Lock()
	p.lanes[po.name] = lane
	p.mu.Unlock()

	task := &outputTask{
		name:   po.name,
		output: po.output,
		state:  entry.state,
		lane:   lane,
		retry:  po.retry,
		octx:   p.octx,
		super:  p.super,
		onExit: p.outputExited,
		stats:  p.stats,
		log:    p.Logger,
	}
	p.outWG.Add(1)
	go func() {
		defer p.outWG.Done()
		task.run(p.ctx)
	}()

	return nil
}

// spawnSource creates the task of one source.
func (p *Pipeline) spawnSource(ps *pendingSource) {
	entry := &elementEntry{name: ps.name, state: newStateCell()}

	if ps.auto != nil {
		p.register(entry)
		task := &autonomousTask{
			name:   ps.name,
			source: ps.auto,
			state:  entry.state,
			out:    p.srcOut,
			super:  p.super,
			onExit: p.unregister,
			log:    p.Logger,
		}
		p.srcWG.Add(1)
		go func() {
			defer p.srcWG.Done()
			task.run(p.ctx)
		}()
		return
	}

	entry.manual = make(chan struct{}, 1)
	entry.reconf = make(chan TriggerSpec, 1)
	p.register(entry)

	task := &sourceTask{
		name:     ps.name,
		source:   ps.source,
		spec:     ps.spec,
		state:    entry.state,
		manual:   entry.manual,
		reconf:   entry.reconf,
		blocking: ps.blocking,
		out:      p.srcOut,
		super:    p.super,
		onExit:   p.unregister,
		stats:    p.stats,
		log:      p.Logger,
	}
	p.srcWG.Add(1)
	go func() {
		defer p.srcWG.Done()
		task.run(p.ctx)
	}()
}

// AddSource registers and starts a managed source while the pipeline runs.
// This is how dynamic probes (one per appearing cgroup, for instance) join
// the pipeline.
func (p *Pipeline) AddSource(plugin, name string, src Source, spec TriggerSpec, opts ...SourceOptions) SourceKey {
	o := SourceOptions{}
	if len(opts) > 0 {
		o = opts[0]
	}

	p.mu.Lock()
	d, ok := p.runDedups[plugin]
	if !ok {
		d = newDeduplicator()
		if p.runDedups == nil {
			p.runDedups = make(map[string]*deduplicator)
		}
		p.runDedups[plugin] = d
	}
	element := d.insert(name)
	for {
		candidate := ElementName{Plugin: plugin, Kind: SourceKind, Element: element}
		if _, taken := p.elements[candidate]; !taken {
			break
		}
		element = d.insert(name)
	}
	n := ElementName{Plugin: plugin, Kind: SourceKind, Element: element}
	p.mu.Unlock()

	p.spawnSource(&pendingSource{name: n, source: src, spec: spec, blocking: o.Blocking})
	p.Info("source %s added at runtime", n)

	return SourceKey{name: n}
}

// register adds an element to the control-plane registrations.
func (p *Pipeline) register(e *elementEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[e.name] = e
}

// unregister removes an element once its task is gone.
func (p *Pipeline) unregister(name ElementName) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, name)
}

// outputExited removes an output and tracks how many remain.
func (p *Pipeline) outputExited(name ElementName) {
	p.mu.Lock()
	delete(p.elements, name)
	p.nOutputs--
	left := p.nOutputs
	p.mu.Unlock()

	if left == 0 {
		select {
		case <-p.ctx.Done():
			// Normal shutdown, not worth a warning.
		default:
			p.Warn("last output removed, measurements have nowhere to go")
		}
	}
}

// dispatch fans one buffer out: every blocking lane first (a full lane
// exerts backpressure), then the async broadcast (never blocks, slow
// consumers lag instead). One buffer is dispatched completely before the
// next, so each lane sees buffers in chain order.
func (p *Pipeline) dispatch(ctx context.Context, buf *measurement.Buffer) (ok bool) {
	// A send on a closed lane means the fabric itself is corrupted. That is
	// not containable to one element: abort the pipeline.
	defer func() {
		if r := recover(); r != nil {
			p.abort(errors.Errorf("channel fabric corrupted: %v", r))
			ok = false
		}
	}()

	p.mu.Lock()
	lanes := make([]*outputLane, 0, len(p.lanes))
	for _, lane := range p.lanes {
		lanes = append(lanes, lane)
	}
	p.mu.Unlock()

	for _, lane := range lanes {
		select {
		case lane.ch <- buf:
		case <-ctx.Done():
			return false
		}
	}

	p.bcast.publish(buf)
	return true
}

// matchElements resolves a matcher, restricted to one element kind, in the
// deterministic (plugin, kind, element) order.
func (p *Pipeline) matchElements(m Matcher, kind ElementKind) []*elementEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]ElementName, 0, len(p.elements))
	for name := range p.elements {
		if name.Kind != kind {
			continue
		}
		if m != nil && !m.Matches(name) {
			continue
		}
		names = append(names, name)
	}
	sortNames(names)

	matched := make([]*elementEntry, 0, len(names))
	for _, name := range names {
		matched = append(matched, p.elements[name])
	}
	return matched
}

// listElements returns the sorted element names matching a glob pattern
// over their "plugin/kind/element" rendering.
func (p *Pipeline) listElements(pattern string) []ElementName {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]ElementName, 0, len(p.elements))
	for name := range p.elements {
		if pattern != "" {
			if ok, err := path.Match(pattern, name.String()); err != nil || !ok {
				continue
			}
		}
		names = append(names, name)
	}
	sortNames(names)
	return names
}

// applyOp applies one control mutation to one element.
func (p *Pipeline) applyOp(e *elementEntry, op controlOp) error {
	switch op.kind {
	case opSetState:
		p.Debug("element %s: state <- %s", e.name, op.state)
		e.state.set(op.state)
		return nil

	case opTriggerNow:
		if e.manual == nil {
			return pipelineError("element %s takes no manual trigger", e.name)
		}
		select {
		case e.manual <- struct{}{}:
		default:
			// A fire is already pending; one poke is enough.
		}
		return nil

	case opSetTrigger:
		if e.reconf == nil {
			return pipelineError("element %s takes no trigger", e.name)
		}
		select {
		case e.reconf <- op.spec:
		default:
			// Replace the not-yet-consumed pending spec.
			select {
			case <-e.reconf:
			default:
			}
			e.reconf <- op.spec
		}
		e.state.poke()
		return nil
	}

	return pipelineError("unknown control operation %d", op.kind)
}

// supervisor consumes fault events and applies the containment policy. The
// failed element has already removed itself; removal of the last output and
// global faults are what is left to decide here.
func (p *Pipeline) supervisor() {
	for {
		select {
		case ev := <-p.super:
			ferr := &FatalElementError{}
			if errors.As(ev.err, &ferr) {
				p.Error("supervisor: %v", ferr)
				continue
			}
			// Unexpected-input notices: already logged at the element,
			// nothing to contain.
			p.Debug("supervisor: element %s reported: %v", ev.element, ev.err)

		case <-p.ctx.Done():
			return
		}
	}
}

// abort terminates the pipeline on an unrecoverable runtime fault.
func (p *Pipeline) abort(cause error) {
	p.Error("unrecoverable pipeline fault: %v", cause)
	p.exitCode.Store(ExitRuntimeFault)
	p.cancel()
	go p.Shutdown()
}

// Shutdown stops the pipeline gracefully: all elements get Stop, the source
// side of the fabric is closed, transform to output channels are drained,
// and every task is joined within the shutdown deadline. Tasks still running
// at the deadline are abandoned and logged.
func (p *Pipeline) Shutdown() {
	p.stopOnce.Do(p.shutdown)
}

func (p *Pipeline) shutdown() {
	p.Info("shutting down measurement pipeline...")
	deadline := time.Now().Add(p.cfg.ShutdownTimeout)

	// Stop the producers first so the fabric can drain.
	p.mu.Lock()
	for _, e := range p.elements {
		if e.name.Kind == SourceKind {
			e.state.set(Stop)
		}
	}
	p.mu.Unlock()

	if waitTimeout(&p.srcWG, time.Until(deadline)) {
		close(p.srcOut)
	} else {
		// A stuck source can't be killed; abandon it and cancel the rest
		// of the fabric instead of risking a send on a closed channel.
		p.Warn("shutdown: source task(s) still running at deadline, abandoning them")
		p.cancel()
	}

	chainDone := waitTimeout(&p.chainWG, time.Until(deadline))
	if !chainDone {
		p.Warn("shutdown: transform chain still running at deadline, abandoning it")
		p.cancel()
	}

	// Close the fan-out; outputs exit after draining their lanes.
	if chainDone {
		p.mu.Lock()
		for _, lane := range p.lanes {
			close(lane.ch)
		}
		p.lanes = make(map[ElementName]*outputLane)
		p.mu.Unlock()
	}
	p.bcast.close()

	if !waitTimeout(&p.outWG, time.Until(deadline)) {
		p.Warn("shutdown: output task(s) still running at deadline, abandoning them")
		p.cancel()
	}

	p.cancel()
	p.auxWG.Wait()

	close(p.done)
	p.Info("measurement pipeline shut down")
}

// Wait blocks until the pipeline has shut down and returns the exit code.
func (p *Pipeline) Wait() int {
	<-p.done
	return int(p.exitCode.Load())
}

// Done returns a channel closed once the pipeline has shut down.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// waitTimeout waits on a WaitGroup with a deadline.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	if d < 0 {
		d = 0
	}
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}
