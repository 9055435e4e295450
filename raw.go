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

import "buf.build/go/stackptr/internal/xunsafe"

// RawAddr is the untyped address of a disassembled pointee.
//
// It is invisible to the garbage collector; the scope named by the
// accompanying [Token] is what keeps the pointee alive.
type RawAddr uintptr

// Token is the opaque half of a disassembled [Ptr].
//
// It records which scope incarnation and ownership slot the pointee belongs
// to, and carries the pointee's destructor while ownership is in flight. A
// Token is single-use: it is spent by [FromRaw].
type Token struct {
	r    *region
	gen  uint64
	slot int32
	drop func()
}

// IntoRaw disassembles a pointer into its raw address and an ownership
// [Token], killing the handle.
//
// Disassembly disables automatic destruction: if the pair is never passed
// back to [FromRaw], the pointee's destructor does not run at scope exit.
// That is a deliberate leak, for handing raw ownership to lower-level code;
// it is not detected or reported.
func IntoRaw[T any](p *Ptr[T]) (RawAddr, Token) {
	p.check()
	p.r.log("into-raw", "%v", p.addr)

	tok := Token{
		r:    p.r,
		gen:  p.gen,
		slot: p.slot,
		drop: p.r.detach(p.slot),
	}
	addr := RawAddr(p.addr)
	p.addr = 0
	return addr, tok
}

// FromRaw reassembles an owning pointer from a raw address and its Token,
// restoring automatic destruction at scope exit.
//
// FromRaw is unchecked in the one way that matters: it trusts the caller
// that addr refers to a live, fully-initialized T. Passing an address whose
// memory is not actually a T is undefined behavior, exactly as if the
// address had been dereferenced directly. The scope and generation carried
// by the token are still validated, so a token that outlived its scope
// fails fast instead.
func FromRaw[T any](addr RawAddr, tok Token) Ptr[T] {
	if tok.r == nil {
		panic("stackptr: FromRaw of zero Token")
	}
	tok.r.check(tok.gen)
	tok.r.log("from-raw", "%v", addr)

	tok.r.rearm(tok.slot, tok.drop)
	return Ptr[T]{
		addr: xunsafe.Addr[T](addr),
		r:    tok.r,
		gen:  tok.gen,
		slot: tok.slot,
	}
}
