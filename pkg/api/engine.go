package api

import (
	"github.com/microsoft/MixedReality-WebRTC-sub003/internal/nativeengine"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// The flat API targets the native library. The registration is a default,
// so a host that installed another backend first keeps it.
func init() {
	pc.SetDefaultEngineFactory(nativeengine.Factory)
}
