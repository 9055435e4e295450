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

package xunsafe

import "unsafe"

var (
	alwaysFalse bool
	sink        unsafe.Pointer //nolint:unused
)

// Escape forces p onto the heap, so that its address is stable under stack
// moves.
//
// The store to sink never executes, but escape analysis cannot prove that,
// so it must assume p escapes.
func Escape[P ~*E, E any](p P) P {
	if alwaysFalse {
		sink = unsafe.Pointer(p)
	}
	return p
}

// NoEscape launders p past escape analysis, so that passing the result
// around does not force a heap allocation. The caller is on the hook for
// keeping the pointee alive across every use of the result.
func NoEscape[P ~*E, E any](p P) P {
	//nolint:staticcheck // SA4016: the xor is the laundering, not a typo.
	return P((AddrOf(p) ^ 0).AssertValid())
}
