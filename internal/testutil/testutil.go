// Package testutil holds shared helpers for tests that need the native
// shim library.
package testutil

import (
	"testing"

	"github.com/microsoft/MixedReality-WebRTC-sub003/internal/ffi"
)

// SkipIfNoShim skips t unless the mrwebrtc shim library can be loaded.
// Most of the suite runs against in-process engines; only native
// integration tests call this.
func SkipIfNoShim(t *testing.T) {
	t.Helper()
	if err := ffi.LoadLibrary(); err != nil {
		t.Skipf("mrwebrtc shim not available: %v", err)
	}
}
