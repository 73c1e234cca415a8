package ffi

import "unsafe"

const (
	maxVideoDevices  = 64
	deviceIDLen      = 256
	deviceNameLen    = 256
	deviceRecordSize = deviceIDLen + deviceNameLen
)

// VideoDeviceInfo describes one capture device reported by the shim.
type VideoDeviceInfo struct {
	ID   string
	Name string
}

// EnumVideoCaptureDevices lists the capture devices the engine can open.
// The shim fills fixed-size id/name records.
func EnumVideoCaptureDevices(engine uintptr) ([]VideoDeviceInfo, error) {
	if !Loaded() {
		return nil, ErrLibraryNotLoaded
	}

	records := make([]byte, maxVideoDevices*deviceRecordSize)
	var count int32
	code := shimEngineEnumVideoDevices(engine,
		ByteSlicePtr(records), maxVideoDevices, uintptr(unsafe.Pointer(&count)))
	if err := shimError(code); err != nil {
		return nil, err
	}
	if count > maxVideoDevices {
		count = maxVideoDevices
	}

	devices := make([]VideoDeviceInfo, 0, count)
	for i := int32(0); i < count; i++ {
		rec := records[i*deviceRecordSize:]
		devices = append(devices, VideoDeviceInfo{
			ID:   cstr(rec[:deviceIDLen]),
			Name: cstr(rec[deviceIDLen : deviceIDLen+deviceNameLen]),
		})
	}
	return devices, nil
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
