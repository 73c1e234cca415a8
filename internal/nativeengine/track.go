package nativeengine

import (
	"runtime"
	"unsafe"

	"github.com/microsoft/MixedReality-WebRTC-sub003/internal/ffi"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

type nativeSender struct {
	handle uintptr
}

func (s *nativeSender) TrackID() string {
	return ffi.SenderTrackID(s.handle)
}

func (s *nativeSender) Kind() pc.MediaKind {
	return pc.MediaKind(ffi.SenderKind(s.handle))
}

func (s *nativeSender) SetEnabled(enabled bool) error {
	return ffi.SenderSetEnabled(s.handle, enabled)
}

type nativeReceiver struct {
	handle uintptr
}

func (r *nativeReceiver) TrackID() string {
	return ffi.ReceiverTrackID(r.handle)
}

func (r *nativeReceiver) Kind() pc.MediaKind {
	return pc.MediaKind(ffi.ReceiverKind(r.handle))
}

// SetVideoSink attaches sink to the receiver. Frames are copied out of the
// shim's plane memory before dispatch; the copy outlives the callback.
func (r *nativeReceiver) SetVideoSink(sink frame.VideoSink) error {
	if sink == nil {
		return ffi.ReceiverSetVideoSink(r.handle, nil)
	}
	return ffi.ReceiverSetVideoSink(r.handle, func(blob *ffi.VideoFrameBlob) {
		f := copyVideoFrame(blob)
		if f != nil {
			sink.OnVideoFrame(f)
		}
	})
}

// SetAudioSink attaches sink to the receiver.
func (r *nativeReceiver) SetAudioSink(sink frame.AudioSink) error {
	if sink == nil {
		return ffi.ReceiverSetAudioSink(r.handle, nil)
	}
	return ffi.ReceiverSetAudioSink(r.handle, func(blob *ffi.AudioFrameBlob) {
		f := copyAudioFrame(blob)
		if f != nil {
			sink.OnAudioFrame(f)
		}
	})
}

func copyVideoFrame(blob *ffi.VideoFrameBlob) *frame.VideoFrame {
	if blob.Width <= 0 || blob.Height <= 0 || blob.YPlane == 0 {
		return nil
	}
	w, h := int(blob.Width), int(blob.Height)
	chromaH := (h + 1) / 2

	return &frame.VideoFrame{
		Width:  w,
		Height: h,
		Format: frame.PixelFormatI420,
		Data: [][]byte{
			copyPlane(blob.YPlane, int(blob.YStride), h),
			copyPlane(blob.UPlane, int(blob.UStride), chromaH),
			copyPlane(blob.VPlane, int(blob.VStride), chromaH),
		},
		Stride:      []int{int(blob.YStride), int(blob.UStride), int(blob.VStride)},
		TimestampUs: blob.TimestampUs,
	}
}

func copyPlane(addr uintptr, stride, rows int) []byte {
	if addr == 0 || stride <= 0 || rows <= 0 {
		return nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), stride*rows)
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func copyAudioFrame(blob *ffi.AudioFrameBlob) *frame.AudioFrame {
	if blob.Samples == 0 || blob.SampleCount <= 0 {
		return nil
	}
	src := unsafe.Slice((*int16)(unsafe.Pointer(blob.Samples)), int(blob.SampleCount))
	samples := make([]int16, len(src))
	copy(samples, src)

	return &frame.AudioFrame{
		Samples:     samples,
		SampleRate:  int(blob.SampleRate),
		Channels:    int(blob.Channels),
		TimestampUs: blob.TimestampUs,
	}
}

// videoSource wraps one shim external frame source.
type videoSource struct {
	handle uintptr
}

// PushFrame hands one I420 frame to the shim. The shim copies the planes
// before returning, so the caller keeps ownership.
func (v *videoSource) PushFrame(f *frame.VideoFrame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Format != frame.PixelFormatI420 || len(f.Data) < 3 {
		return frame.ErrFormatMismatch
	}

	blob := ffi.VideoFrameBlob{
		Width:       int32(f.Width),
		Height:      int32(f.Height),
		YPlane:      ffi.ByteSlicePtr(f.Data[0]),
		UPlane:      ffi.ByteSlicePtr(f.Data[1]),
		VPlane:      ffi.ByteSlicePtr(f.Data[2]),
		YStride:     int32(f.Stride[0]),
		UStride:     int32(f.Stride[1]),
		VStride:     int32(f.Stride[2]),
		TimestampUs: f.TimestampUs,
	}
	err := ffi.VideoSourcePushFrame(v.handle, &blob)
	// The blob carries raw plane addresses; the frame owning them must
	// stay reachable until the shim has copied the planes.
	runtime.KeepAlive(f)
	return err
}

func (v *videoSource) Close() error {
	return ffi.VideoSourceDestroy(v.handle)
}
