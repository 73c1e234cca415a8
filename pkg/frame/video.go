// Package frame defines the video and audio frame types exchanged with the
// media engine and the sink fan-out used to deliver remote frames to
// application callbacks.
package frame

import "errors"

var (
	ErrInvalidFrame   = errors.New("invalid frame")
	ErrNoConverter    = errors.New("no pixel format converter installed")
	ErrFormatMismatch = errors.New("unexpected pixel format")
)

// PixelFormat identifies the memory layout of a VideoFrame.
type PixelFormat int

const (
	// PixelFormatI420 is planar YUV 4:2:0, three planes (Y, U, V).
	PixelFormatI420 PixelFormat = iota
	// PixelFormatARGB is packed 32-bit ARGB, a single plane.
	PixelFormatARGB
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatI420:
		return "i420"
	case PixelFormatARGB:
		return "argb"
	default:
		return "unknown"
	}
}

// VideoFrame is a single decoded video frame. For I420 frames Data holds the
// Y, U and V planes with matching entries in Stride; for ARGB frames Data
// holds one packed plane. Frames delivered from the engine are copies owned
// by the receiver and stay valid after the delivering callback returns.
type VideoFrame struct {
	Width       int
	Height      int
	Format      PixelFormat
	Data        [][]byte
	Stride      []int
	TimestampUs int64
}

// Validate reports whether the frame's geometry and plane layout are
// consistent with its declared format.
func (f *VideoFrame) Validate() error {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return ErrInvalidFrame
	}
	switch f.Format {
	case PixelFormatI420:
		if len(f.Data) < 3 || len(f.Stride) < 3 {
			return ErrInvalidFrame
		}
		if f.Stride[0] < f.Width || f.Stride[1] < (f.Width+1)/2 || f.Stride[2] < (f.Width+1)/2 {
			return ErrInvalidFrame
		}
		chromaHeight := (f.Height + 1) / 2
		if len(f.Data[0]) < f.Stride[0]*f.Height ||
			len(f.Data[1]) < f.Stride[1]*chromaHeight ||
			len(f.Data[2]) < f.Stride[2]*chromaHeight {
			return ErrInvalidFrame
		}
	case PixelFormatARGB:
		if len(f.Data) < 1 || len(f.Stride) < 1 {
			return ErrInvalidFrame
		}
		if f.Stride[0] < f.Width*4 || len(f.Data[0]) < f.Stride[0]*f.Height {
			return ErrInvalidFrame
		}
	default:
		return ErrInvalidFrame
	}
	return nil
}
