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

package arena_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buf.build/go/stackptr/internal/arena"
	"buf.build/go/stackptr/internal/xunsafe"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a := new(arena.Arena)

	p := arena.New(a, int64(42))
	q := arena.New(a, int64(43))

	assert.Equal(t, int64(42), *p)
	assert.Equal(t, int64(43), *q)
	assert.NotEqual(t, xunsafe.AddrOf(p), xunsafe.AddrOf(q))

	*p = 44
	assert.Equal(t, int64(44), *p)
}

func TestNewN(t *testing.T) {
	t.Parallel()

	a := new(arena.Arena)

	p := arena.NewN[uint32](a, 5)
	s := xunsafe.Slice(p, 5)
	for i := range s {
		s[i] = uint32(i)
	}

	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, s)
}

func TestZeroSize(t *testing.T) {
	t.Parallel()

	a := new(arena.Arena)

	p := arena.New(a, struct{}{})
	require.NotNil(t, p)
}

func TestGrowth(t *testing.T) {
	t.Parallel()

	// Allocate well past a single chunk and make sure nothing is clobbered.
	a := new(arena.Arena)

	var ptrs []*uint64
	for i := range uint64(10_000) {
		ptrs = append(ptrs, arena.New(a, i))
	}

	runtime.GC() // The chunk trailers must keep everything reachable.

	for i, p := range ptrs {
		assert.Equal(t, uint64(i), *p) //nolint:gosec
	}
}

func TestFree(t *testing.T) {
	t.Parallel()

	a := new(arena.Arena)
	p := arena.New(a, int64(42))
	_ = p

	a.Free()

	// After a reset, the arena reuses its chunks and hands out zeroed
	// memory again.
	q := arena.New(a, int64(0))
	assert.Equal(t, int64(0), *q)
}

func TestKeepAlive(t *testing.T) {
	t.Parallel()

	a := new(arena.Arena)

	p := new(string)
	*p = "pinned"
	a.KeepAlive(p)

	// Drop our only direct reference; the arena must keep it alive for as
	// long as arena memory is reachable.
	anchor := arena.New(a, int64(1))
	runtime.GC()

	_ = anchor
	assert.Equal(t, "pinned", *p)
}
