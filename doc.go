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

// Package stackptr provides scoped owning pointers: single-owner handles to
// values whose storage and destruction are bound to an explicit lexical
// region, rather than to the garbage collector's whims.
//
// A [Scope] stands in for a stack frame. Values are moved into it with [Let]
// and accessed through the resulting [Ptr], which is the sole owner of the
// value: it alone may read, write, and destroy it. When the scope's exit
// function runs (usually via defer), every value still owned by the scope
// has its destructor run exactly once, in reverse declaration order.
//
//	scope, exit := stackptr.Enter()
//	defer exit()
//
//	file := stackptr.Let(scope, openSomething()) // closed at exit
//	use(file.Borrow())
//
// A Ptr can be taken apart into a raw address and an opaque ownership
// [Token] with [IntoRaw], retyped, and rebuilt with [FromRaw]. [Coerce]
// packages the one useful retyping, viewing a concrete value through an
// interface it implements, without copying the value and without losing
// track of which destructor must eventually run.
//
// # Ownership discipline
//
// Go's type system cannot reject a use-after-move at compile time, so this
// package fails fast at runtime instead. Every operation on a Ptr validates
// two things: that the handle has not been moved, dropped, or disassembled,
// and that its scope is still the same incarnation the handle was created
// in. Scopes are pooled and stamped with a generation; a handle that leaks
// past its scope's exit panics on next use rather than reading recycled
// memory.
//
// Failing to reassemble a disassembled pointer before its scope exits is
// not detected: the value's destructor simply never runs. This mirrors
// deliberately leaking a value whose cleanup was handed off elsewhere.
//
// # Thread safety
//
// The package adds no synchronization of its own. A Scope and the handles
// derived from it are as sendable and shareable across goroutines as their
// pointees are, and no more; a Ptr to a value that is unsafe to share must
// not be shared.
package stackptr
