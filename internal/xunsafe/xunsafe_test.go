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

package xunsafe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"buf.build/go/stackptr/internal/xunsafe"
)

func TestAddr(t *testing.T) {
	t.Parallel()

	// An Addr is invisible to stack moves, so the backing array must live on
	// the heap for address arithmetic to stay coherent across the assertions.
	s := xunsafe.Escape(&[4]int32{1, 2, 3, 4})[:]
	a := xunsafe.DataOf(s)

	assert.Equal(t, int32(1), *a.AssertValid())
	assert.Equal(t, int32(3), *a.Add(2).AssertValid())
	assert.Equal(t, 4, xunsafe.EndOf(s).Sub(a))
}

func TestAnyData(t *testing.T) {
	t.Parallel()

	i := 42
	p := &i

	// A *int is a direct interface: the data word is the pointer itself.
	got := xunsafe.AnyData(p)
	assert.Equal(t, xunsafe.AddrOf(p), xunsafe.AddrOf(xunsafe.Cast[int](got)))
}

func TestCopyClear(t *testing.T) {
	t.Parallel()

	src := []byte("hello")
	dst := make([]byte, 5)

	xunsafe.Copy(&dst[0], &src[0], 5)
	assert.Equal(t, []byte("hello"), dst)

	xunsafe.Clear(&dst[0], 2)
	assert.Equal(t, []byte("\x00\x00llo"), dst)
}
