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

package layout

import (
	"reflect"

	"buf.build/go/stackptr/internal/xsync"
)

var pointerFreeMap xsync.Map[reflect.Type, bool]

// PointerFree returns whether T's shape contains no pointers anywhere, so
// that a value of T may be stored in memory the garbage collector does not
// scan.
func PointerFree[T any]() bool {
	t := reflect.TypeFor[T]()
	free, _ := pointerFreeMap.LoadOrStore(t, func() bool {
		return pointerFree(t)
	})
	return free
}

func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true

	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())

	case reflect.Struct:
		for i := range t.NumField() {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true

	default:
		return false
	}
}
