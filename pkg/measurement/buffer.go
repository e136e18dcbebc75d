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

// Buffer is an ordered sequence of measurement points transiting one pipeline
// stage. Append is O(1), iteration O(n). A buffer is owned by exactly one
// pipeline task at a time and is never shared across polls.
type Buffer struct {
	points []Point
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferWithCapacity creates an empty buffer with preallocated room.
func NewBufferWithCapacity(n int) *Buffer {
	return &Buffer{points: make([]Point, 0, n)}
}

// Push appends a point to the buffer.
func (b *Buffer) Push(p Point) {
	b.points = append(b.points, p)
}

// Len returns the number of points in the buffer.
func (b *Buffer) Len() int {
	return len(b.points)
}

// Points returns the points of the buffer in append order. The returned slice
// is owned by the buffer; transforms may mutate it in place.
func (b *Buffer) Points() []Point {
	return b.points
}

// Set replaces the point at the given index.
func (b *Buffer) Set(i int, p Point) {
	b.points[i] = p
}

// Remove removes the point at the given index, preserving order.
func (b *Buffer) Remove(i int) {
	b.points = append(b.points[:i], b.points[i+1:]...)
}

// Merge appends all points of another buffer, leaving it empty.
func (b *Buffer) Merge(other *Buffer) {
	b.points = append(b.points, other.points...)
	other.points = other.points[:0]
}

// Clear removes all points, retaining the allocation.
func (b *Buffer) Clear() {
	b.points = b.points[:0]
}

// Accumulator is the write-only façade of a buffer handed to sources. It
// prevents a source from observing points produced by other sources.
type Accumulator struct {
	buf *Buffer
}

// NewAccumulator wraps a buffer in a write-only accumulator.
func NewAccumulator(buf *Buffer) *Accumulator {
	return &Accumulator{buf: buf}
}

// Push appends a point through the accumulator.
func (a *Accumulator) Push(p Point) {
	a.buf.Push(p)
}
