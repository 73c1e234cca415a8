//go:build windows

package ffi

import "golang.org/x/sys/windows"

func dlopenLibrary(path string) (uintptr, error) {
	handle, err := windows.LoadLibrary(path)
	return uintptr(handle), err
}

func dlcloseLibrary(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}
