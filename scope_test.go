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

package stackptr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"buf.build/go/stackptr"
)

func TestNestedScopes(t *testing.T) {
	t.Parallel()

	var log []int
	outerScope, outerExit := stackptr.Enter()
	a := stackptr.Let(outerScope, tracked{id: 1, log: &log})
	_ = a

	func() {
		scope, exit := stackptr.Enter()
		defer exit()

		b := stackptr.Let(scope, tracked{id: 2, log: &log})
		_ = b
	}()

	assert.Equal(t, []int{2}, log, "inner scope exits first")

	outerExit()
	assert.Equal(t, []int{2, 1}, log)
}

func TestDoubleExit(t *testing.T) {
	t.Parallel()

	_, exit := stackptr.Enter()
	exit()
	assert.PanicsWithValue(t, "stackptr: scope exited twice", exit)
}

func TestLetAfterExit(t *testing.T) {
	t.Parallel()

	scope, exit := stackptr.Enter()
	exit()
	assert.Panics(t, func() { stackptr.Let(scope, 1) })
}

func TestManyValues(t *testing.T) {
	t.Parallel()

	// Enough declarations to force the backing arena through several chunk
	// growths.
	scope, exit := stackptr.Enter()
	defer exit()

	var ptrs []stackptr.Ptr[[64]byte]
	for i := range 1000 {
		var v [64]byte
		v[0] = byte(i)
		ptrs = append(ptrs, stackptr.Let(scope, v))
	}

	for i := range ptrs {
		assert.Equal(t, byte(i), ptrs[i].Borrow()[0])
	}
}

func TestPointerShapedValues(t *testing.T) {
	t.Parallel()

	// Values whose shape contains pointers take the pinned-heap path rather
	// than the arena; they must behave identically.
	scope, exit := stackptr.Enter()
	defer exit()

	s := stackptr.Let(scope, "borrowed")
	assert.Equal(t, "borrowed", s.Get())

	m := stackptr.Let(scope, map[string]int{"k": 1})
	assert.Equal(t, 1, (*m.Borrow())["k"])
}
