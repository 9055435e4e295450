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
	"github.com/stretchr/testify/require"

	"buf.build/go/stackptr"
)

// tracked is a pointee with a destructor that records its own death.
type tracked struct {
	id    int
	log   *[]int
	drops int
}

func (t *tracked) Drop() {
	t.drops++
	*t.log = append(*t.log, t.id)
}

func TestDropAtExit(t *testing.T) {
	t.Parallel()

	var log []int
	func() {
		scope, exit := stackptr.Enter()
		defer exit()

		a := stackptr.Let(scope, tracked{id: 1, log: &log})
		b := stackptr.Let(scope, tracked{id: 2, log: &log})
		_, _ = a, b

		assert.Empty(t, log, "nothing may be destroyed before exit")
	}()

	// Reverse declaration order, each exactly once.
	assert.Equal(t, []int{2, 1}, log)
}

func TestBorrowRoundTrip(t *testing.T) {
	t.Parallel()

	scope, exit := stackptr.Enter()
	defer exit()

	n := stackptr.Let(scope, 42)
	assert.Equal(t, 42, *n.Borrow())
	assert.Equal(t, 42, n.Get())

	s := stackptr.LetSlice(scope, []int{1, 2, 3, 4, 5})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, *s.Borrow())

	type pair struct{ x, y string }
	p := stackptr.Let(scope, pair{"a", "b"})
	assert.Equal(t, pair{"a", "b"}, p.Get())
}

func TestBorrowMut(t *testing.T) {
	t.Parallel()

	scope, exit := stackptr.Enter()
	defer exit()

	n := stackptr.Let(scope, 1)
	*n.BorrowMut() = 2
	assert.Equal(t, 2, n.Get())

	n.Set(3)
	assert.Equal(t, 3, n.Get())
}

func TestEarlyDrop(t *testing.T) {
	t.Parallel()

	var log []int
	scope, exit := stackptr.Enter()
	defer exit()

	v := stackptr.Let(scope, tracked{id: 7, log: &log})
	v.Drop()

	require.Equal(t, []int{7}, log)
	assert.Panics(t, func() { v.Borrow() })
	assert.Panics(t, func() { v.Drop() })
}

func TestUseAfterMove(t *testing.T) {
	t.Parallel()

	scope, exit := stackptr.Enter()
	defer exit()

	a := stackptr.Let(scope, "hello")
	b := a.Move()

	assert.Equal(t, "hello", b.Get())
	assert.PanicsWithValue(t, "stackptr: use of moved or dropped pointer",
		func() { a.Borrow() })
}

func TestUseAfterExit(t *testing.T) {
	t.Parallel()

	var leaked *stackptr.Ptr[int]
	func() {
		scope, exit := stackptr.Enter()
		defer exit()

		p := stackptr.Let(scope, 42)
		leaked = &p
	}()

	assert.Panics(t, func() { leaked.Borrow() })
}

func TestCloserInference(t *testing.T) {
	t.Parallel()

	closed := 0
	scope, exit := stackptr.Enter()
	c := stackptr.Let(scope, closer{&closed})
	_ = c

	exit()
	assert.Equal(t, 1, closed)
}

type closer struct{ closed *int }

func (c closer) Close() error {
	*c.closed++
	return nil
}

func TestLetFunc(t *testing.T) {
	t.Parallel()

	freed := 0
	scope, exit := stackptr.Enter()
	p := stackptr.LetFunc(scope, 99, func(n *int) {
		assert.Equal(t, 99, *n)
		freed++
	})
	_ = p

	exit()
	assert.Equal(t, 1, freed)
}

func TestString(t *testing.T) {
	t.Parallel()

	scope, exit := stackptr.Enter()
	defer exit()

	p := stackptr.Let(scope, 42)
	assert.Equal(t, "42", p.String())

	q := p.Move()
	_ = q
	assert.Equal(t, "stackptr.Ptr(<dead>)", p.String())
}
