package ffi

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// VideoFrameBlob mirrors mrsI420VideoFrame in the shim header. Plane
// pointers stay valid only for the duration of the call or callback.
type VideoFrameBlob struct {
	Width       int32
	Height      int32
	YPlane      uintptr
	UPlane      uintptr
	VPlane      uintptr
	YStride     int32
	UStride     int32
	VStride     int32
	_           int32 // padding
	TimestampUs int64
}

// AudioFrameBlob mirrors mrsAudioFrame in the shim header.
type AudioFrameBlob struct {
	Samples     uintptr
	SampleCount int32
	SampleRate  int32
	Channels    int32
	_           int32 // padding
	TimestampUs int64
}

// VideoSinkFunc receives decoded remote frames on the engine's decode
// thread. The blob's plane memory is owned by the shim.
type VideoSinkFunc func(frame *VideoFrameBlob)

// AudioSinkFunc receives decoded remote audio.
type AudioSinkFunc func(frame *AudioFrameBlob)

var (
	sinkMu     sync.RWMutex
	videoSinks = make(map[uintptr]VideoSinkFunc)
	audioSinks = make(map[uintptr]AudioSinkFunc)

	videoSinkTrampoline uintptr
	audioSinkTrampoline uintptr
	sinkTrampolineOnce  sync.Once
)

func initSinkTrampolines() {
	videoSinkTrampoline = purego.NewCallback(func(ctx uintptr, frame uintptr) {
		sinkMu.RLock()
		sink := videoSinks[ctx]
		sinkMu.RUnlock()
		if sink == nil || frame == 0 {
			return
		}
		safeCallback(func() { sink((*VideoFrameBlob)(unsafe.Pointer(frame))) })
	})
	audioSinkTrampoline = purego.NewCallback(func(ctx uintptr, frame uintptr) {
		sinkMu.RLock()
		sink := audioSinks[ctx]
		sinkMu.RUnlock()
		if sink == nil || frame == 0 {
			return
		}
		safeCallback(func() { sink((*AudioFrameBlob)(unsafe.Pointer(frame))) })
	})
}

// SenderSetEnabled toggles the sender's track on or off.
func SenderSetEnabled(sender uintptr, enabled bool) error {
	return shimError(shimSenderSetEnabled(sender, boolInt32(enabled)))
}

// SenderKind returns the shim media kind enum for the sender's track.
func SenderKind(sender uintptr) int32 {
	return shimSenderKind(sender)
}

// SenderTrackID returns the sender's track identifier.
func SenderTrackID(sender uintptr) string {
	buf := make([]byte, 256)
	n := shimSenderTrackID(sender, ByteSlicePtr(buf), int32(len(buf)))
	return bufString(buf, n)
}

// ReceiverKind returns the shim media kind enum for the receiver's track.
func ReceiverKind(receiver uintptr) int32 {
	return shimReceiverKind(receiver)
}

// ReceiverTrackID returns the receiver's track identifier.
func ReceiverTrackID(receiver uintptr) string {
	buf := make([]byte, 256)
	n := shimReceiverTrackID(receiver, ByteSlicePtr(buf), int32(len(buf)))
	return bufString(buf, n)
}

// ReceiverSetVideoSink attaches sink to the receiver, replacing any
// previous sink. Passing nil detaches.
func ReceiverSetVideoSink(receiver uintptr, sink VideoSinkFunc) error {
	if sink == nil {
		sinkMu.Lock()
		delete(videoSinks, receiver)
		sinkMu.Unlock()
		return shimError(shimReceiverSetVideoSink(receiver, 0, 0))
	}

	sinkTrampolineOnce.Do(initSinkTrampolines)

	sinkMu.Lock()
	videoSinks[receiver] = sink
	sinkMu.Unlock()

	if code := shimReceiverSetVideoSink(receiver, videoSinkTrampoline, receiver); code != shimOK {
		sinkMu.Lock()
		delete(videoSinks, receiver)
		sinkMu.Unlock()
		return shimError(code)
	}
	return nil
}

// ReceiverSetAudioSink attaches sink to the receiver, replacing any
// previous sink. Passing nil detaches.
func ReceiverSetAudioSink(receiver uintptr, sink AudioSinkFunc) error {
	if sink == nil {
		sinkMu.Lock()
		delete(audioSinks, receiver)
		sinkMu.Unlock()
		return shimError(shimReceiverSetAudioSink(receiver, 0, 0))
	}

	sinkTrampolineOnce.Do(initSinkTrampolines)

	sinkMu.Lock()
	audioSinks[receiver] = sink
	sinkMu.Unlock()

	if code := shimReceiverSetAudioSink(receiver, audioSinkTrampoline, receiver); code != shimOK {
		sinkMu.Lock()
		delete(audioSinks, receiver)
		sinkMu.Unlock()
		return shimError(code)
	}
	return nil
}

// VideoSourceCreate allocates an external frame source on the engine.
func VideoSourceCreate(engine uintptr) (uintptr, error) {
	if !Loaded() {
		return 0, ErrLibraryNotLoaded
	}
	src := shimVideoSourceCreate(engine)
	if src == 0 {
		return 0, ErrUnknownShim
	}
	return src, nil
}

// VideoSourcePushFrame hands one I420 frame to the shim. The shim copies
// the planes before returning; the caller must keep the plane memory
// behind the blob's pointers alive across this call.
func VideoSourcePushFrame(src uintptr, frame *VideoFrameBlob) error {
	code := shimVideoSourcePushFrame(src, uintptr(unsafe.Pointer(frame)))
	runtime.KeepAlive(frame)
	return shimError(code)
}

// VideoSourceDestroy releases the source.
func VideoSourceDestroy(src uintptr) error {
	return shimError(shimVideoSourceDestroy(src))
}
