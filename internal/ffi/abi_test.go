package ffi

import (
	"errors"
	"runtime"
	"testing"
	"unsafe"
)

// The shim headers declare these structs with natural C alignment on
// 64-bit targets; a size drift here means the Go mirror no longer
// matches the ABI.
func TestStructSizes(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("ABI structs are only validated on 64-bit targets")
	}
	if got := unsafe.Sizeof(PeerConfig{}); got != 24 {
		t.Errorf("sizeof(PeerConfig) = %d, want 24", got)
	}
	if got := unsafe.Sizeof(VideoFrameBlob{}); got != 56 {
		t.Errorf("sizeof(VideoFrameBlob) = %d, want 56", got)
	}
	if got := unsafe.Sizeof(AudioFrameBlob{}); got != 32 {
		t.Errorf("sizeof(AudioFrameBlob) = %d, want 32", got)
	}
	if got := unsafe.Sizeof(StatsBlob{}); got != 80 {
		t.Errorf("sizeof(StatsBlob) = %d, want 80", got)
	}
	if got := unsafe.Sizeof(shimObserverBlock{}); got != 96 {
		t.Errorf("sizeof(shimObserverBlock) = %d, want 96", got)
	}
	if got := unsafe.Sizeof(shimDataChannelObserverBlock{}); got != 24 {
		t.Errorf("sizeof(shimDataChannelObserverBlock) = %d, want 24", got)
	}
}

func TestStructOffsets(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("ABI structs are only validated on 64-bit targets")
	}
	if got := unsafe.Offsetof(PeerConfig{}.ICEServers); got != 16 {
		t.Errorf("offsetof(PeerConfig.ICEServers) = %d, want 16", got)
	}
	if got := unsafe.Offsetof(VideoFrameBlob{}.TimestampUs); got != 48 {
		t.Errorf("offsetof(VideoFrameBlob.TimestampUs) = %d, want 48", got)
	}
	if got := unsafe.Offsetof(AudioFrameBlob{}.TimestampUs); got != 24 {
		t.Errorf("offsetof(AudioFrameBlob.TimestampUs) = %d, want 24", got)
	}
}

func TestShimError(t *testing.T) {
	cases := []struct {
		code int32
		want error
	}{
		{shimOK, nil},
		{shimErrInvalidParam, ErrInvalidParam},
		{shimErrInvalidOperation, ErrInvalidOperation},
		{shimErrNotFound, ErrNotFound},
		{shimErrSctpNotNegotiated, ErrSctpNotNegotiated},
		{shimErrOutOfRange, ErrOutOfRange},
		{shimErrWrongThread, ErrWrongThread},
	}
	for _, c := range cases {
		got := shimError(c.code)
		if c.want == nil {
			if got != nil {
				t.Errorf("shimError(%d) = %v, want nil", c.code, got)
			}
			continue
		}
		if !errors.Is(got, c.want) {
			t.Errorf("shimError(%d) = %v, want %v", c.code, got, c.want)
		}
	}
	if got := shimError(-99); !errors.Is(got, ErrUnknownShim) {
		t.Errorf("shimError(-99) = %v, want ErrUnknownShim", got)
	}
}

func TestCStringRoundTrip(t *testing.T) {
	buf := CString("offer")
	if len(buf) != 6 || buf[5] != 0 {
		t.Fatalf("CString = %v", buf)
	}
	if got := CStringToGo(ByteSlicePtr(buf), len(buf)); got != "offer" {
		t.Errorf("round trip = %q", got)
	}
	if got := CStringToGo(0, 16); got != "" {
		t.Errorf("nil pointer = %q", got)
	}
	// Unterminated input stops at maxLen.
	raw := []byte("abc")
	if got := CStringToGo(ByteSlicePtr(raw), len(raw)); got != "abc" {
		t.Errorf("unterminated = %q", got)
	}
}

func TestByteSlicePtr(t *testing.T) {
	if got := ByteSlicePtr(nil); got != 0 {
		t.Errorf("nil slice ptr = %#x", got)
	}
	if got := ByteSlicePtr([]byte{}); got != 0 {
		t.Errorf("empty slice ptr = %#x", got)
	}
	b := []byte{1}
	if ByteSlicePtr(b) == 0 {
		t.Error("non-empty slice ptr = 0")
	}
}

func TestBufString(t *testing.T) {
	buf := []byte("candidate:1")
	if got := bufString(buf, 9); got != "candidate" {
		t.Errorf("bufString = %q", got)
	}
	if got := bufString(buf, -1); got != "" {
		t.Errorf("negative length = %q", got)
	}
	if got := bufString(buf, int32(len(buf)+1)); got != "" {
		t.Errorf("oversized length = %q", got)
	}
}

func TestICEServerBlock(t *testing.T) {
	lines := []string{
		"stun:stun.l.google.com:19302",
		"turn:turn.example.com|user|secret",
	}
	want := "stun:stun.l.google.com:19302\nturn:turn.example.com|user|secret"
	if got := ICEServerBlock(lines); got != want {
		t.Errorf("ICEServerBlock = %q", got)
	}
	if got := ICEServerBlock(nil); got != "" {
		t.Errorf("empty block = %q", got)
	}
}

func TestLibraryFileName(t *testing.T) {
	got := libraryFileName()
	switch runtime.GOOS {
	case "windows":
		if got != "mrwebrtc.dll" {
			t.Errorf("libraryFileName = %q", got)
		}
	case "darwin":
		if got != "libmrwebrtc.dylib" {
			t.Errorf("libraryFileName = %q", got)
		}
	default:
		if got != "libmrwebrtc.so" {
			t.Errorf("libraryFileName = %q", got)
		}
	}
}

func TestResolveLibrary_BadEnvPath(t *testing.T) {
	t.Setenv("MRWEBRTC_LIBRARY_PATH", "/nonexistent/libmrwebrtc.so")
	if _, err := resolveLibrary(); !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("resolveLibrary = %v, want ErrLibraryNotFound", err)
	}
}

func TestBoolInt32(t *testing.T) {
	if boolInt32(true) != 1 || boolInt32(false) != 0 {
		t.Error("boolInt32 mapping broken")
	}
}

func TestSafeCallbackRecovers(t *testing.T) {
	safeCallback(func() { panic("observer blew up") })
}
