package arena

import "unsafe"

func sizeofImpl[T any](v T) uintptr {
	return unsafe.Sizeof(v)
}
