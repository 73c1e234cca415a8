package ffi

import "unsafe"

// CString copies s into a NUL-terminated byte slice suitable for passing
// across the ABI. The slice must stay referenced for the duration of the
// call.
func CString(s string) []byte {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf
}

// ByteSlicePtr returns the address of the first byte of b, or 0 for an
// empty slice.
func ByteSlicePtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// CStringToGo copies a NUL-terminated C string at addr into a Go string.
// maxLen bounds the scan.
func CStringToGo(addr uintptr, maxLen int) string {
	if addr == 0 {
		return ""
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(addr)), maxLen)
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

// bufString interprets the first n bytes of buf as a string; negative or
// oversized n yields "".
func bufString(buf []byte, n int32) string {
	if n <= 0 || int(n) > len(buf) {
		return ""
	}
	return string(buf[:n])
}
