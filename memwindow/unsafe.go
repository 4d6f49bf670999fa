package memwindow

import "unsafe"

// ptrTo is the module's one unsafe-adjacent surface: it reinterprets a
// 4-byte-aligned slice of the mmap'd window as a pointer to a uint32 so
// sync/atomic can perform a volatile-style load/store against it. Callers
// must guarantee buf has length 4 and starts at a 4-byte boundary within
// the mapping.
func ptrTo(buf []byte) unsafe.Pointer {
	return unsafe.Pointer(&buf[0])
}
