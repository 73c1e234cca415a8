package frame

import "sync"

// VideoSink receives decoded video frames from the engine.
type VideoSink interface {
	OnVideoFrame(*VideoFrame)
}

// AudioSink receives decoded audio frames from the engine.
type AudioSink interface {
	OnAudioFrame(*AudioFrame)
}

// I420Callback receives I420 frames.
type I420Callback func(*VideoFrame)

// ARGBCallback receives ARGB frames.
type ARGBCallback func(*VideoFrame)

// AudioCallback receives audio frames.
type AudioCallback func(*AudioFrame)

// ARGBConverter converts an I420 frame to ARGB. Pixel conversion is supplied
// by the host application; none is built in.
type ARGBConverter interface {
	ToARGB(*VideoFrame) (*VideoFrame, error)
}

// VideoDispatcher fans a single engine video sink out to an optional I420
// callback and an optional ARGB callback. The ARGB callback only fires when
// a converter is installed. Callbacks are invoked with no dispatcher lock
// held, so they may re-register from within their own invocation.
type VideoDispatcher struct {
	mu        sync.Mutex
	i420      I420Callback
	argb      ARGBCallback
	converter ARGBConverter
}

// RegisterI420Callback installs cb, replacing any previous callback. A nil
// cb unregisters.
func (d *VideoDispatcher) RegisterI420Callback(cb I420Callback) {
	d.mu.Lock()
	d.i420 = cb
	d.mu.Unlock()
}

// RegisterARGBCallback installs cb, replacing any previous callback. A nil
// cb unregisters.
func (d *VideoDispatcher) RegisterARGBCallback(cb ARGBCallback) {
	d.mu.Lock()
	d.argb = cb
	d.mu.Unlock()
}

// SetConverter installs the I420-to-ARGB converter used for the ARGB
// callback path.
func (d *VideoDispatcher) SetConverter(c ARGBConverter) {
	d.mu.Lock()
	d.converter = c
	d.mu.Unlock()
}

// OnVideoFrame implements VideoSink.
func (d *VideoDispatcher) OnVideoFrame(f *VideoFrame) {
	d.mu.Lock()
	i420, argb, conv := d.i420, d.argb, d.converter
	d.mu.Unlock()

	if i420 != nil && f.Format == PixelFormatI420 {
		i420(f)
	}
	if argb == nil {
		return
	}
	switch {
	case f.Format == PixelFormatARGB:
		argb(f)
	case conv != nil:
		if converted, err := conv.ToARGB(f); err == nil {
			argb(converted)
		}
	}
}

// AudioDispatcher fans a single engine audio sink out to one callback.
type AudioDispatcher struct {
	mu sync.Mutex
	cb AudioCallback
}

// RegisterCallback installs cb, replacing any previous callback. A nil cb
// unregisters.
func (d *AudioDispatcher) RegisterCallback(cb AudioCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

// OnAudioFrame implements AudioSink.
func (d *AudioDispatcher) OnAudioFrame(f *AudioFrame) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()

	if cb != nil {
		cb(f)
	}
}
