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
	"io"
	"reflect"

	"buf.build/go/stackptr/internal/xunsafe"
)

// Dropper is implemented by values that have a destructor.
//
// [Let] arranges for Drop to be called exactly once when ownership of the
// value ends. Values implementing [io.Closer] but not Dropper are closed
// instead, with the error discarded.
type Dropper interface {
	Drop()
}

// Ptr is an owning pointer to a value stored in a [Scope].
//
// A Ptr is the sole owner of its pointee: nothing else will destroy the
// value, and the value is destroyed exactly once, either explicitly via
// [Ptr.Drop] or implicitly when the scope exits.
//
// Ptr values must not be duplicated by assignment; ownership is transferred
// with [Ptr.Move]. A Ptr that has been moved from, dropped, or disassembled
// is dead, and any further use panics.
type Ptr[T any] struct {
	addr xunsafe.Addr[T]
	r    *region
	gen  uint64
	slot int32
}

// Let moves value into the scope and returns the owning pointer to it.
//
// The value's destructor is inferred from its type: Drop if it implements
// [Dropper], Close if it implements [io.Closer], and nothing otherwise. The
// caller's own copy of value is dead after this call and must not be used.
func Let[T any](s *Scope, value T) Ptr[T] {
	return LetFunc(s, value, dropFor[T]())
}

// LetFunc is [Let] with an explicit destructor. A nil drop means the value
// needs no destruction.
func LetFunc[T any](s *Scope, value T, drop func(*T)) Ptr[T] {
	s.r.check(s.gen)
	p := alloc(s.r, value)

	var thunk func()
	if drop != nil {
		thunk = func() { drop(p) }
	}
	i := s.r.register(thunk)

	s.r.log("let", "%v %T", xunsafe.AddrOf(p), value)
	return Ptr[T]{addr: xunsafe.AddrOf(p), r: s.r, gen: s.gen, slot: i}
}

// check validates that this handle is alive and its scope current.
func (p *Ptr[T]) check() {
	if p.addr == 0 {
		panic("stackptr: use of moved or dropped pointer")
	}
	p.r.check(p.gen)
}

// Borrow returns a shared reference to the pointee.
//
// The reference is valid until the scope exits, not merely for the duration
// of the call; the pointee is guaranteed to outlive it. The caller must not
// write through a shared reference while other references exist.
func (p *Ptr[T]) Borrow() *T {
	p.check()
	return p.addr.AssertValid()
}

// BorrowMut returns an exclusive reference to the pointee.
//
// The caller must ensure no other reference, shared or exclusive, is used
// while the returned reference is live. Like [Ptr.Borrow], the reference
// itself remains valid until scope exit.
func (p *Ptr[T]) BorrowMut() *T {
	p.check()
	return p.addr.AssertValid()
}

// Get returns a copy of the pointee.
func (p *Ptr[T]) Get() T {
	return *p.Borrow()
}

// Set overwrites the pointee.
//
// The previous value is overwritten without running its destructor; callers
// that need that should drop and re-declare instead.
func (p *Ptr[T]) Set(value T) {
	*p.BorrowMut() = value
}

// Drop destroys the pointee now instead of at scope exit.
//
// The handle is dead afterwards.
func (p *Ptr[T]) Drop() {
	p.check()
	p.r.log("drop", "%v", p.addr)
	if drop := p.r.detach(p.slot); drop != nil {
		drop()
	}
	p.addr = 0
}

// Move transfers ownership to the returned handle and kills the receiver.
//
// This is the only sanctioned way to hand a Ptr to other code; plain
// assignment would leave two handles claiming the same ownership slot.
func (p *Ptr[T]) Move() Ptr[T] {
	p.check()
	q := *p
	p.addr = 0
	return q
}

// String implements [fmt.Stringer] by formatting the borrowed pointee.
//
// Unlike the accessors, String never panics; a dead handle formats as a
// placeholder so that stale values in logs don't take the process down.
func (p *Ptr[T]) String() string {
	if p.addr == 0 || p.r == nil || p.r.gen.Load() != p.gen {
		return "stackptr.Ptr(<dead>)"
	}
	return fmt.Sprintf("%v", *p.addr.AssertValid())
}

// dropFor resolves the destructor for values of type T, or nil if they need
// no destruction.
func dropFor[T any]() func(*T) {
	if _, ok := any((*T)(nil)).(Dropper); ok {
		return func(p *T) { any(p).(Dropper).Drop() }
	}
	if _, ok := any((*T)(nil)).(io.Closer); ok {
		return func(p *T) { _ = any(p).(io.Closer).Close() }
	}

	// T may implement directly, with no address-of involved; this is the
	// case when T is itself a pointer type.
	var z T
	if _, ok := any(z).(Dropper); ok {
		return func(p *T) { any(*p).(Dropper).Drop() }
	}
	if _, ok := any(z).(io.Closer); ok {
		return func(p *T) { _ = any(*p).(io.Closer).Close() }
	}

	// An interface-typed pointee hides its dynamic type until destruction;
	// resolve late.
	if reflect.TypeFor[T]().Kind() == reflect.Interface {
		return dropDynamic[T]
	}
	return nil
}

// dropDynamic destroys an interface-typed pointee according to its dynamic
// type.
func dropDynamic[T any](p *T) {
	switch v := any(*p).(type) {
	case Dropper:
		v.Drop()
	case io.Closer:
		_ = v.Close()
	}
}
