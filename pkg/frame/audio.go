package frame

// AudioFrame is a block of interleaved S16 audio samples. Samples holds
// SampleCount*Channels values.
type AudioFrame struct {
	Samples     []int16
	SampleRate  int
	Channels    int
	TimestampUs int64
}

// SampleCount returns the number of samples per channel.
func (f *AudioFrame) SampleCount() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Validate reports whether the frame describes a coherent sample block.
func (f *AudioFrame) Validate() error {
	if f == nil || f.SampleRate <= 0 || f.Channels <= 0 || f.Channels > 8 {
		return ErrInvalidFrame
	}
	if len(f.Samples) == 0 || len(f.Samples)%f.Channels != 0 {
		return ErrInvalidFrame
	}
	return nil
}
