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
	"reflect"

	"buf.build/go/stackptr/internal/xunsafe"
)

// Coerce converts an owning pointer to a concrete type into an owning
// pointer to an interface I that *T implements, without copying the pointee.
//
// The coerced handle views the original storage through the interface; the
// destructor that eventually runs is still the concrete one recorded when
// the value was declared. Coerce panics if *T does not implement I, or if I
// is not an interface type.
//
// Coerce is built from [IntoRaw] and [FromRaw]: the concrete handle is
// disassembled, an interface header with dynamic type *T is placed in scope
// storage, and ownership is reassembled over the header.
func Coerce[I any, T any](p *Ptr[T]) Ptr[I] {
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("stackptr: Coerce target %v is not an interface", iface))
	}

	// Reject bad coercions before disassembly; past IntoRaw, the destructor
	// is detached from the scope and a panic would lose it.
	if !reflect.TypeFor[*T]().Implements(iface) {
		panic(fmt.Sprintf("stackptr: %v does not implement %v",
			reflect.TypeFor[*T](), iface))
	}

	addr, tok := IntoRaw(p)

	view := any(xunsafe.Addr[T](addr).AssertValid()).(I) //nolint:errcheck
	header := alloc(tok.r, view)
	return FromRaw[I](RawAddr(xunsafe.AddrOf(header)), tok)
}
