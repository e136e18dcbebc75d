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
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

//
// Source poll errors.
//

// pollErrorKind classifies poll failures.
type pollErrorKind int

const (
	pollNormalStop pollErrorKind = iota
	pollCanRetry
	pollFatal
)

// PollError is the error type sources return from Poll.
type PollError struct {
	kind  pollErrorKind
	cause error
}

// NormalStopError reports that the measured resource is gone and the source
// is done, gracefully (a removed cgroup, an unplugged device).
func NormalStopError(cause error) *PollError {
	return &PollError{kind: pollNormalStop, cause: cause}
}

// RetryPollError reports a transient poll failure; the tick is skipped.
func RetryPollError(cause error) *PollError {
	return &PollError{kind: pollCanRetry, cause: cause}
}

// FatalPollError reports an unrecoverable poll failure; the source is
// terminated.
func FatalPollError(cause error) *PollError {
	return &PollError{kind: pollFatal, cause: cause}
}

// PollErrorFrom classifies an arbitrary error from a poll. ENOENT and ENODEV
// mean the underlying resource disappeared, which is a normal stop; anything
// else is fatal.
func PollErrorFrom(err error) *PollError {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ENODEV) {
		return NormalStopError(err)
	}
	return FatalPollError(err)
}

func (e *PollError) Error() string {
	switch e.kind {
	case pollNormalStop:
		if e.cause != nil {
			return fmt.Sprintf("source stopped normally: %v", e.cause)
		}
		return "source stopped normally"
	case pollCanRetry:
		return fmt.Sprintf("transient poll failure: %v", e.cause)
	default:
		return fmt.Sprintf("fatal poll failure: %v", e.cause)
	}
}

func (e *PollError) Unwrap() error { return e.cause }

// IsNormalStop checks if the error is a graceful source stop.
func (e *PollError) IsNormalStop() bool { return e.kind == pollNormalStop }

// CanRetry checks if the error is transient.
func (e *PollError) CanRetry() bool { return e.kind == pollCanRetry }

//
// Transform errors.
//

// TransformError is the error type transforms return from Apply.
type TransformError struct {
	fatal bool
	cause error
}

// UnexpectedInputError reports that the transform can't process this buffer.
// The transform stays in the chain and the buffer continues.
func UnexpectedInputError(cause error) *TransformError {
	return &TransformError{cause: cause}
}

// FatalTransformError reports an unrecoverable transform failure; the
// transform is removed from the chain.
func FatalTransformError(cause error) *TransformError {
	return &TransformError{fatal: true, cause: cause}
}

func (e *TransformError) Error() string {
	if e.fatal {
		return fmt.Sprintf("fatal transform failure: %v", e.cause)
	}
	return fmt.Sprintf("unexpected transform input: %v", e.cause)
}

func (e *TransformError) Unwrap() error { return e.cause }

// IsFatal checks if the transform must be removed.
func (e *TransformError) IsFatal() bool { return e.fatal }

//
// Output write errors.
//

// WriteError is the error type outputs return from Write.
type WriteError struct {
	fatal bool
	cause error
}

// RetryWriteError reports a transient write failure, retried with backoff.
func RetryWriteError(cause error) *WriteError {
	return &WriteError{cause: cause}
}

// FatalWriteError reports an unrecoverable write failure; the output is
// removed.
func FatalWriteError(cause error) *WriteError {
	return &WriteError{fatal: true, cause: cause}
}

func (e *WriteError) Error() string {
	if e.fatal {
		return fmt.Sprintf("fatal write failure: %v", e.cause)
	}
	return fmt.Sprintf("transient write failure: %v", e.cause)
}

func (e *WriteError) Unwrap() error { return e.cause }

// CanRetry checks if the write may be retried.
func (e *WriteError) CanRetry() bool { return !e.fatal }

//
// Stream receive errors (async outputs).
//

// ErrClosed is delivered to a stream consumer when the upstream end is gone.
var ErrClosed = errors.New("measurement stream closed")

// LaggedError is delivered to a slow async consumer that has missed buffers.
// It is transient: the consumer may keep receiving.
type LaggedError struct {
	// Missed is the number of buffers the consumer did not see.
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("lagging measurement stream consumer missed %d buffer(s)", e.Missed)
}

//
// Supervisor envelope.
//

// FatalElementError is the envelope runtimes send upstream to the supervisor
// when an element fails fatally.
type FatalElementError struct {
	Element ElementName
	Cause   error
}

func (e *FatalElementError) Error() string {
	return fmt.Sprintf("element %s failed fatally: %v", e.Element, e.Cause)
}

func (e *FatalElementError) Unwrap() error { return e.Cause }

//
// Control-surface errors.
//

// ErrNoSuchElement is returned when a matcher resolves to no element.
var ErrNoSuchElement = errors.New("no matching pipeline element")

// ErrShuttingDown is returned for control requests sent to a pipeline that is
// shutting down.
var ErrShuttingDown = errors.New("pipeline is shutting down")

// pipelineError returns a formatted package-specific error.
func pipelineError(format string, args ...interface{}) error {
	return fmt.Errorf("pipeline: "+format, args...)
}
