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
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Matcher selects pipeline elements for a control request.
type Matcher interface {
	Matches(ElementName) bool
}

// exactMatcher matches one fully qualified element name.
type exactMatcher struct {
	name ElementName
}

func (m exactMatcher) Matches(n ElementName) bool { return n == m.name }

// MatchName matches exactly the given element name.
func MatchName(name ElementName) Matcher {
	return exactMatcher{name: name}
}

// MatchSource matches exactly one source of one plugin.
func MatchSource(plugin, element string) Matcher {
	return exactMatcher{name: ElementName{Plugin: plugin, Kind: SourceKind, Element: element}}
}

// MatchTransform matches exactly one transform of one plugin.
func MatchTransform(plugin, element string) Matcher {
	return exactMatcher{name: ElementName{Plugin: plugin, Kind: TransformKind, Element: element}}
}

// MatchOutput matches exactly one output of one plugin.
func MatchOutput(plugin, element string) Matcher {
	return exactMatcher{name: ElementName{Plugin: plugin, Kind: OutputKind, Element: element}}
}

// MatchKey matches the element addressed by the given key.
func MatchKey[K interface{ Name() ElementName }](key K) Matcher {
	return exactMatcher{name: key.Name()}
}

// kindMatcher matches every element of one kind.
type kindMatcher struct {
	kind ElementKind
}

func (m kindMatcher) Matches(n ElementName) bool { return n.Kind == m.kind }

// MatchKind matches every element of the given kind.
func MatchKind(kind ElementKind) Matcher {
	return kindMatcher{kind: kind}
}

// globMatcher matches (plugin, kind, element) triples component-wise with
// glob patterns.
type globMatcher struct {
	plugin  string
	kind    string
	element string
}

func (m globMatcher) Matches(n ElementName) bool {
	if ok, err := path.Match(m.plugin, n.Plugin); err != nil || !ok {
		return false
	}
	if ok, err := path.Match(m.kind, n.Kind.String()); err != nil || !ok {
		return false
	}
	ok, err := path.Match(m.element, n.Element)
	return err == nil && ok
}

// MatchGlob matches elements whose (plugin, kind, element) components match
// the given glob patterns.
func MatchGlob(plugin, kind, element string) Matcher {
	return globMatcher{plugin: plugin, kind: kind, element: element}
}

// opKind is the kind of a single control mutation.
type opKind int

const (
	opSetState opKind = iota
	opTriggerNow
	opSetTrigger
)

// controlOp is one mutation of a NoResult request body.
type controlOp struct {
	kind  opKind
	state TaskState
	spec  TriggerSpec
}

// controlRequest is one request travelling the control channel.
type controlRequest struct {
	// NoResult requests: matcher plus one (Single) or more (Mixed) bodies
	// applied in order to every matched element.
	matcher Matcher
	kind    ElementKind
	ops     []controlOp

	// Introspection: list element names matching the pattern.
	list        bool
	listPattern string

	resp chan controlResponse
}

type controlResponse struct {
	err   error
	names []ElementName
}

// controlChannelCapacity bounds the control request channel.
const controlChannelCapacity = 32

// Control is the control surface of a running pipeline. Requests are
// delivered over a single bounded channel to the router task, which resolves
// matchers against the current element registrations and mutates the shared
// task-state cells observed by each element's loop.
type Control struct {
	p    *Pipeline
	reqs chan *controlRequest
}

// router is the control router task. It suspends only on the control
// channel and never times out; response timeouts belong to the caller.
func (c *Control) router(ctx context.Context) {
	for {
		select {
		case req := <-c.reqs:
			resp := c.handle(req)
			if req.resp != nil {
				req.resp <- resp
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Control) handle(req *controlRequest) controlResponse {
	if req.list {
		return controlResponse{names: c.p.listElements(req.listPattern)}
	}

	matched := c.p.matchElements(req.matcher, req.kind)
	if len(matched) == 0 {
		return controlResponse{err: ErrNoSuchElement}
	}

	// Partial failures are collected, not short-circuited.
	var errs *multierror.Error
	for _, entry := range matched {
		for _, op := range req.ops {
			if err := c.p.applyOp(entry, op); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	return controlResponse{err: errs.ErrorOrNil()}
}

// send submits a request and waits for the response. The caller provides the
// timeout through the context.
func (c *Control) send(ctx context.Context, req *controlRequest) (controlResponse, error) {
	req.resp = make(chan controlResponse, 1)

	if err := ctx.Err(); err != nil {
		return controlResponse{}, err
	}

	select {
	case c.reqs <- req:
	case <-ctx.Done():
		return controlResponse{}, ctx.Err()
	case <-c.p.ctx.Done():
		return controlResponse{}, ErrShuttingDown
	}

	select {
	case resp := <-req.resp:
		return resp, nil
	case <-ctx.Done():
		return controlResponse{}, ctx.Err()
	case <-c.p.ctx.Done():
		return controlResponse{}, ErrShuttingDown
	}
}

// ListElements returns the sorted names of elements matching the glob
// pattern over "plugin/kind/element" strings. An empty pattern lists all.
func (c *Control) ListElements(ctx context.Context, pattern string) ([]ElementName, error) {
	resp, err := c.send(ctx, &controlRequest{list: true, listPattern: pattern})
	if err != nil {
		return nil, err
	}
	return resp.names, resp.err
}

// Source starts a fluent request against sources selected by the matcher.
func (c *Control) Source(m Matcher) *SourceRequest {
	return &SourceRequest{c: c, matcher: m}
}

// Transform starts a fluent request against transforms selected by the
// matcher.
func (c *Control) Transform(m Matcher) *TransformRequest {
	return &TransformRequest{c: c, matcher: m}
}

// Output starts a fluent request against outputs selected by the matcher.
func (c *Control) Output(m Matcher) *OutputRequest {
	return &OutputRequest{c: c, matcher: m}
}

// SourceRequest accumulates mutations for matched sources. A single body is
// a Single request; chaining several makes a Mixed request applied in order.
type SourceRequest struct {
	c       *Control
	matcher Matcher
	ops     []controlOp
}

// Pause suspends polling of the matched sources.
func (r *SourceRequest) Pause() *SourceRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Pause})
	return r
}

// Resume resumes polling of the matched sources on their original schedule,
// with no catch-up for the paused span.
func (r *SourceRequest) Resume() *SourceRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Run})
	return r
}

// Stop terminates the matched sources. Stop is terminal.
func (r *SourceRequest) Stop() *SourceRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Stop})
	return r
}

// TriggerNow polls the matched sources once, out of schedule.
func (r *SourceRequest) TriggerNow() *SourceRequest {
	r.ops = append(r.ops, controlOp{kind: opTriggerNow})
	return r
}

// SetTrigger replaces the trigger of the matched sources.
func (r *SourceRequest) SetTrigger(spec TriggerSpec) *SourceRequest {
	r.ops = append(r.ops, controlOp{kind: opSetTrigger, spec: spec})
	return r
}

// Do submits the request and waits for the collected result.
func (r *SourceRequest) Do(ctx context.Context) error {
	resp, err := r.c.send(ctx, &controlRequest{matcher: r.matcher, kind: SourceKind, ops: r.ops})
	if err != nil {
		return err
	}
	return resp.err
}

// TransformRequest accumulates mutations for matched transforms.
type TransformRequest struct {
	c       *Control
	matcher Matcher
	ops     []controlOp
}

// Enable enables the matched transforms.
func (r *TransformRequest) Enable() *TransformRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Run})
	return r
}

// Disable disables the matched transforms; buffers pass them untouched.
func (r *TransformRequest) Disable() *TransformRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Pause})
	return r
}

// Do submits the request and waits for the collected result.
func (r *TransformRequest) Do(ctx context.Context) error {
	resp, err := r.c.send(ctx, &controlRequest{matcher: r.matcher, kind: TransformKind, ops: r.ops})
	if err != nil {
		return err
	}
	return resp.err
}

// OutputRequest accumulates mutations for matched outputs.
type OutputRequest struct {
	c       *Control
	matcher Matcher
	ops     []controlOp
}

// Enable re-enables the matched outputs.
func (r *OutputRequest) Enable() *OutputRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Run})
	return r
}

// Disable disables the matched outputs; they consume and discard.
func (r *OutputRequest) Disable() *OutputRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Pause})
	return r
}

// Stop terminates the matched outputs. Stop is terminal.
func (r *OutputRequest) Stop() *OutputRequest {
	r.ops = append(r.ops, controlOp{kind: opSetState, state: Stop})
	return r
}

// Do submits the request and waits for the collected result.
func (r *OutputRequest) Do(ctx context.Context) error {
	resp, err := r.c.send(ctx, &controlRequest{matcher: r.matcher, kind: OutputKind, ops: r.ops})
	if err != nil {
		return err
	}
	return resp.err
}

// sortNames orders element names deterministically by (plugin, kind ordinal,
// element).
func sortNames(names []ElementName) {
	sort.Slice(names, func(i, j int) bool { return names[i].less(names[j]) })
}
