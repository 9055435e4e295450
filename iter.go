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
	"iter"

	"buf.build/go/stackptr/internal/xunsafe"
)

// LetSlice moves the elements of values into a contiguous scope-owned block
// and returns an owning pointer to the block.
//
// Each element gets the destructor [Let] would give it. At scope exit, every
// element that was not yielded by a [Drain] iterator is destroyed once.
func LetSlice[E any](s *Scope, values []E) Ptr[[]E] {
	s.r.check(s.gen)

	var base *E
	if len(values) > 0 {
		base = allocSlice(s.r, values)
	}
	header := alloc(s.r, xunsafe.Slice(base, len(values)))

	var thunk func()
	if drop := dropFor[E](); drop != nil {
		first, n := xunsafe.AddrOf(base), len(values)
		thunk = func() {
			next := first
			for range n {
				drop(next.AssertValid())
				next = next.Add(1)
			}
		}
	}
	i := s.r.register(thunk)

	s.r.log("let-slice", "%v n=%d", xunsafe.AddrOf(base), len(values))
	return Ptr[[]E]{addr: xunsafe.AddrOf(header), r: s.r, gen: s.gen, slot: i}
}

// Iter is a consuming iterator over a slice pointee.
//
// Elements are yielded by value, in order, each exactly once; yielding an
// element transfers its ownership (and destruction responsibility) to the
// caller. Elements never yielded are destroyed exactly once when the
// iterator is stopped, or at scope exit if it is abandoned.
type Iter[E any] struct {
	next xunsafe.Addr[E]
	left int
	drop func(*E)

	r    *region
	gen  uint64
	slot int32
}

// Drain consumes a slice handle and returns an iterator over its elements.
//
// The handle is dead afterwards; the iterator holds the ownership slot, so
// an abandoned iterator's unyielded remainder is still cleaned up by the
// scope.
func Drain[E any](p *Ptr[[]E]) *Iter[E] {
	elems := *p.Borrow()
	_, tok := IntoRaw(p)

	it := &Iter[E]{
		next: xunsafe.DataOf(elems),
		left: len(elems),
		drop: dropFor[E](),
		r:    tok.r,
		gen:  tok.gen,
		slot: tok.slot,
	}

	// The whole-slice thunk from LetSlice is superseded by one that knows
	// how far the iterator got.
	tok.r.rearm(tok.slot, it.finish)
	return it
}

// Next yields the next element, or reports that the iterator is exhausted.
func (it *Iter[E]) Next() (E, bool) {
	it.r.check(it.gen)

	if it.left == 0 {
		var z E
		return z, false
	}

	p := it.next.AssertValid()
	it.next = it.next.Add(1)
	it.left--
	return *p, true
}

// Remaining returns how many elements have not yet been yielded.
func (it *Iter[E]) Remaining() int {
	return it.left
}

// All returns a range-over-func view of the remaining elements.
//
// Breaking out of the range loop leaves the iterator usable; the unyielded
// remainder is destroyed by [Iter.Stop] or at scope exit as usual.
func (it *Iter[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		for {
			v, ok := it.Next()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Stop destroys the unyielded remainder now and releases the iterator's
// ownership slot. Stop is idempotent and safe after scope exit.
func (it *Iter[E]) Stop() {
	if it.r.gen.Load() == it.gen {
		it.r.rearm(it.slot, nil)
	}
	it.finish()
}

// finish destroys everything between the cursor and the end of the block.
func (it *Iter[E]) finish() {
	for ; it.left > 0; it.left-- {
		if it.drop != nil {
			it.drop(it.next.AssertValid())
		}
		it.next = it.next.Add(1)
	}
}
