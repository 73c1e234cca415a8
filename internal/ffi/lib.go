// Package ffi provides purego-based bindings to the native media engine
// shim (mrwebrtc). The shim owns the ICE/DTLS-SRTP/SCTP transport and the
// codec pipelines; this package only moves handles, strings and frames
// across the C ABI.
package ffi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	goversion "github.com/hashicorp/go-version"
)

var (
	// ErrLibraryNotLoaded is returned when the shim has not been loaded.
	ErrLibraryNotLoaded = errors.New("mrwebrtc library not loaded")

	// ErrLibraryNotFound is returned when the shim cannot be located.
	ErrLibraryNotFound = errors.New("mrwebrtc library not found")

	// ErrShimTooOld is returned when the shim predates the minimum
	// supported ABI version.
	ErrShimTooOld = errors.New("mrwebrtc library too old")

	// Shim error sentinels; these match shim result codes and support
	// errors.Is().
	ErrInvalidParam      = errors.New("invalid parameter")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrNotFound          = errors.New("not found")
	ErrSctpNotNegotiated = errors.New("sctp not negotiated")
	ErrOutOfRange        = errors.New("out of range")
	ErrWrongThread       = errors.New("wrong thread")
	ErrUnknownShim       = errors.New("unknown shim error")
)

// Result codes from the shim (int32 to match C int).
const (
	shimOK                   int32 = 0
	shimErrUnknown           int32 = -1
	shimErrInvalidParam      int32 = -2
	shimErrInvalidOperation  int32 = -3
	shimErrNotFound          int32 = -4
	shimErrSctpNotNegotiated int32 = -5
	shimErrOutOfRange        int32 = -6
	shimErrWrongThread       int32 = -7
)

func shimError(code int32) error {
	switch code {
	case shimOK:
		return nil
	case shimErrInvalidParam:
		return ErrInvalidParam
	case shimErrInvalidOperation:
		return ErrInvalidOperation
	case shimErrNotFound:
		return ErrNotFound
	case shimErrSctpNotNegotiated:
		return ErrSctpNotNegotiated
	case shimErrOutOfRange:
		return ErrOutOfRange
	case shimErrWrongThread:
		return ErrWrongThread
	default:
		return fmt.Errorf("%w: code %d", ErrUnknownShim, code)
	}
}

// minShimVersion is the oldest shim ABI this package can drive.
const minShimVersion = "2.0.0"

var (
	libHandle uintptr
	libLoaded atomic.Bool
	libMu     sync.Mutex
)

// LoadLibrary loads the mrwebrtc shim. The search order is the
// MRWEBRTC_LIBRARY_PATH environment variable, then ./lib/{os}_{arch}/
// relative to the working directory, then the system library paths.
// Loading is idempotent.
func LoadLibrary() error {
	libMu.Lock()
	defer libMu.Unlock()

	if libLoaded.Load() {
		return nil
	}

	libPath, err := resolveLibrary()
	if err != nil {
		return err
	}

	handle, err := dlopenLibrary(libPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", libPath, err)
	}

	libHandle = handle
	if err := registerFunctions(); err != nil {
		_ = dlcloseLibrary(handle)
		libHandle = 0
		return err
	}
	if err := checkShimVersion(); err != nil {
		_ = dlcloseLibrary(handle)
		libHandle = 0
		return err
	}

	libLoaded.Store(true)
	return nil
}

// Loaded reports whether the shim is loaded.
func Loaded() bool {
	return libLoaded.Load()
}

func libraryFileName() string {
	switch runtime.GOOS {
	case "windows":
		return "mrwebrtc.dll"
	case "darwin":
		return "libmrwebrtc.dylib"
	default:
		return "libmrwebrtc.so"
	}
}

func resolveLibrary() (string, error) {
	if path := os.Getenv("MRWEBRTC_LIBRARY_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("%w: MRWEBRTC_LIBRARY_PATH=%s", ErrLibraryNotFound, path)
	}

	local := filepath.Join("lib", runtime.GOOS+"_"+runtime.GOARCH, libraryFileName())
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	// Fall back to the system loader's search path.
	return libraryFileName(), nil
}

// checkShimVersion gates the load on the shim reporting a compatible ABI
// version.
func checkShimVersion() error {
	buf := make([]byte, 64)
	n := shimVersion(ByteSlicePtr(buf), int32(len(buf)))
	if n <= 0 || int(n) > len(buf) {
		return fmt.Errorf("%w: shim reported no version", ErrShimTooOld)
	}
	reported, err := goversion.NewVersion(string(buf[:n]))
	if err != nil {
		return fmt.Errorf("%w: unparsable shim version %q", ErrShimTooOld, string(buf[:n]))
	}
	minimum := goversion.Must(goversion.NewVersion(minShimVersion))
	if reported.LessThan(minimum) {
		return fmt.Errorf("%w: have %s, need >= %s", ErrShimTooOld, reported, minimum)
	}
	return nil
}
