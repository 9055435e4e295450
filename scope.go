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

package stackptr

import (
	"fmt"
	"math"
	"sync/atomic"

	"buf.build/go/stackptr/internal/arena"
	"buf.build/go/stackptr/internal/debug"
	"buf.build/go/stackptr/internal/xsync"
	"buf.build/go/stackptr/internal/xunsafe"
	"buf.build/go/stackptr/internal/xunsafe/layout"
)

// Scope is a region of storage whose contents live no longer than a lexical
// block chosen by the caller.
//
// A Scope owns every value declared in it with [Let] and friends. On exit it
// destroys, in reverse declaration order, each value that was not already
// destroyed or disassembled, then invalidates every outstanding handle.
//
// Scopes are obtained from [Enter]; the zero Scope is dead and panics on
// use.
type Scope struct {
	r   *region
	gen uint64
}

// region is the pooled storage behind a Scope.
//
// The same region is handed out again and again under fresh generation
// stamps; the stamp is what distinguishes the incarnation a handle belongs
// to from whatever the region is being used for now.
type region struct {
	_ xunsafe.NoCopy

	// Generation stamp for this incarnation of the region. Zero means the
	// region is between uses; handles always carry a nonzero stamp, so no
	// handle validates against an exited region. Atomic so that a stale
	// handle racing a pooled re-use still fails fast instead of tearing.
	gen atomic.Uint64

	slots []slot
	arena arena.Arena

	exitedAt debug.Value[string]
}

// slot is the ownership record for one declared value. The drop thunk is the
// single destruction token: it is cleared the moment it runs or goes in
// flight, which is what makes exactly-once destruction structural.
type slot struct {
	drop func()
}

var (
	generation atomic.Uint64
	regions    xsync.Pool[region]
)

// Enter opens a new scope.
//
// The returned function exits the scope and must be called exactly once,
// conventionally with defer in the block whose lifetime the scope mirrors:
//
//	scope, exit := stackptr.Enter()
//	defer exit()
func Enter() (*Scope, func()) {
	r, put := regions.Get()
	gen := generation.Add(1)
	r.gen.Store(gen)
	r.log("enter", "")

	return &Scope{r: r, gen: gen}, func() {
		if r.gen.Load() != gen {
			panic("stackptr: scope exited twice")
		}
		r.exit()
		put()
	}
}

func (r *region) exit() {
	if debug.Enabled {
		*r.exitedAt.Get() = debug.Stack(3)
	}
	r.log("exit", "%d slots", len(r.slots))

	for i := len(r.slots) - 1; i >= 0; i-- {
		if drop := r.slots[i].drop; drop != nil {
			r.slots[i].drop = nil
			drop()
		}
	}

	r.slots = r.slots[:0]
	r.arena.Free()
	r.gen.Store(0)
}

// check validates that gen is the incarnation this region is currently in,
// panicking otherwise. Every handle operation funnels through here.
func (r *region) check(gen uint64) {
	if gen != 0 && r.gen.Load() == gen {
		return
	}
	if debug.Enabled {
		panic(fmt.Sprintf(
			"stackptr: use of pointer after scope exit; scope exited at:\n%s",
			*r.exitedAt.Get()))
	}
	panic("stackptr: use of pointer after scope exit")
}

// register appends a new ownership slot and returns its index.
func (r *region) register(drop func()) int32 {
	debug.Assert(len(r.slots) < math.MaxInt32, "slot index overflow")
	r.slots = append(r.slots, slot{drop: drop})
	return int32(len(r.slots) - 1)
}

// rearm replaces the drop thunk of an existing slot.
func (r *region) rearm(i int32, drop func()) {
	debug.Assert(int(i) < len(r.slots), "slot index out of range: %d", i)
	r.slots[i].drop = drop
}

// detach removes and returns a slot's drop thunk, leaving ownership of the
// pointee "in flight" with the caller.
func (r *region) detach(i int32) func() {
	debug.Assert(int(i) < len(r.slots), "slot index out of range: %d", i)
	drop := r.slots[i].drop
	r.slots[i].drop = nil
	return drop
}

func (r *region) log(op, format string, args ...any) {
	debug.Log([]any{"%p g%d", r, r.gen.Load()}, op, format, args...)
}

// alloc moves value into region-owned storage and returns its new, stable
// address.
//
// Pointer-free shapes go on the region's arena; everything else goes
// through the ordinary allocator and is pinned to the region's lifetime, so
// that the collector still sees the value's own pointers.
func alloc[T any](r *region, value T) *T {
	if layout.PointerFree[T]() {
		return arena.New(&r.arena, value)
	}

	p := new(T)
	*p = value
	r.arena.KeepAlive(p)
	return p
}

// allocSlice moves values into a contiguous region-owned block and returns
// the block's base address. values must be non-empty.
func allocSlice[E any](r *region, values []E) *E {
	debug.Assert(len(values) > 0, "empty slice block")

	if layout.PointerFree[E]() {
		p := arena.NewN[E](&r.arena, len(values))
		xunsafe.Copy(p, xunsafe.DataOf(values).AssertValid(), len(values))
		return p
	}

	block := make([]E, len(values))
	copy(block, values)
	p := &block[0]
	r.arena.KeepAlive(p)
	return p
}
