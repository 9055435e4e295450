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

// ByteAdd adds the given offset to p, without scaling.
//
// It also throws in a cast for free.
func ByteAdd[T any, P ~*E, E any](p P, n int) *T {
	return (*T)(unsafe.Add(unsafe.Pointer(p), n))
}

// ByteStore stores a value of the given type at the given byte offset.
func ByteStore[T any, P ~*E, E any](p P, n int, v T) {
	*ByteAdd[T](p, n) = v
}

// Copy copies n elements from one pointer to the other.
func Copy[P ~*E, E any](dst, src P, n int) {
	copy(unsafe.Slice(dst, n), unsafe.Slice(src, n))
}

// Clear zeros n elements at p.
func Clear[P ~*E, E any](p P, n int) {
	clear(unsafe.Slice(p, n))
}
