// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package arena provides the region allocator that backs scopes.
//
// # Design
//
// See <https://mcyoung.xyz/2025/04/21/go-arenas/>.
//
// The arena only hands out memory with pointer-free shape, so the garbage
// collector never scans it. To keep everything reachable anyway, each chunk
// allocated for the arena carries a pointer to the arena as a trailer; each
// chunk thus has the shape
//
//	type chunk struct {
//	  memory [N]uint64
//	  arena *Arena
//	}
//
// Holding any pointer into chunk.memory anywhere reachable by a GC root
// (such as in a local variable) marks the whole chunk live, and therefore
// the [*Arena] trailer, and therefore, through arena.blocks, every other
// chunk.
//
// Values whose shape does contain pointers cannot live in arena memory at
// all. They are instead allocated by the ordinary Go allocator and pinned to
// the arena with [Arena.KeepAlive], which gives them the same lifetime as
// the arena without hiding their pointers from the collector.
package arena

import (
	"unsafe"

	"buf.build/go/stackptr/internal/debug"
	"buf.build/go/stackptr/internal/xunsafe"
	"buf.build/go/stackptr/internal/xunsafe/layout"
)

// Arena is a region for holding values of any type which does not contain
// pointers.
//
// A zero Arena is empty and ready to use.
type Arena struct {
	_ xunsafe.NoCopy

	next, end xunsafe.Addr[byte]
	cap       int // Always a power of 2.

	// Blocks of memory allocated by this arena. Indexed by their size log 2.
	blocks []*byte

	// Data to keep around for the GC to mark whenever it marks an arena.
	// Holding any pointer to the arena will keep anything here alive, too.
	keep []unsafe.Pointer
}

// Align is the alignment of all objects on the arena.
const Align = int(unsafe.Sizeof(uintptr(0)))

// New allocates a new value of type T on an arena.
//
// T must have pointer-free shape.
func New[T any](a *Arena, value T) *T {
	p := NewN[T](a, 1)
	*p = value
	return p
}

// NewN allocates a contiguous block of n values of type T on an arena.
func NewN[T any](a *Arena, n int) *T {
	if layout.Align[T]() > Align {
		panic("stackptr: over-aligned object")
	}

	// Zero-size types still get a unique, non-nil address.
	return xunsafe.Cast[T](a.Alloc(max(1, n*layout.Size[T]())))
}

// KeepAlive ensures that v is not swept by the GC until all pointers into
// the arena go away.
func (a *Arena) KeepAlive(v any) {
	a.keep = append(a.keep, unsafe.Pointer(xunsafe.AnyData(v)))
}

// Alloc allocates memory with the given size.
//
// All memory is pointer-aligned and zeroed.
func (a *Arena) Alloc(size int) *byte {
	size = layout.RoundUp(size, Align)

	if a.next.Add(size) > a.end {
		a.grow(size)
	}

	p := a.next.AssertValid()
	a.next = a.next.Add(size)
	a.log("alloc", "%v:%v, %d:%d", p, a.next, size, Align)

	return p
}

// Free resets this arena to an "empty" state, allowing all memory allocated
// by it to be re-used.
//
// Although this can be used to amortize trips into Go's allocator, doing so
// trades off safety: any memory allocated by the arena must not be
// referenced after a call to Free.
func (a *Arena) Free() {
	a.next, a.end, a.cap = 0, 0, 0

	// We set this to nil instead of clearing it so that we only pay for a
	// single-pointer write barrier, and make cleaning up the handful of
	// bytes this throws out the GC's problem.
	a.keep = nil

	for log, block := range a.blocks {
		if block != nil {
			xunsafe.Clear(block, 1<<log)
		}
	}
}

// grow allocates a fresh chunk of at least the given size.
func (a *Arena) grow(size int) {
	xunsafe.Escape(a)
	p, n := a.allocChunk(max(size, a.cap*2))
	// No need to KeepAlive(p), since allocChunk sticks it in the dedicated
	// block array.

	a.next = xunsafe.AddrOf(p)
	a.end = a.next.Add(n)
	a.cap = n
	a.log("grow", "%v:%v:%d", a.next, a.end, a.cap)
}

func (a *Arena) log(op, format string, args ...any) {
	debug.Log([]any{"%p %v:%v", a, a.next, a.end}, op, format, args...)
}
