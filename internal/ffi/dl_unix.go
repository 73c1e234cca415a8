//go:build !windows

package ffi

import "github.com/ebitengine/purego"

func dlopenLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func dlcloseLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}
