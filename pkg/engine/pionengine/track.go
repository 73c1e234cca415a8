package pionengine

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

type pionSender struct {
	session   *session
	rtpSender *webrtc.RTPSender
	trackID   string
	kind      pc.MediaKind
	enabled   atomic.Bool
}

func (s *pionSender) TrackID() string { return s.trackID }

func (s *pionSender) Kind() pc.MediaKind { return s.kind }

func (s *pionSender) SetEnabled(enabled bool) error {
	s.enabled.Store(enabled)
	return nil
}

// pionReceiver adapts one remote track. Attaching a video or audio sink
// starts an RTP pump that drains the track and feeds the session counters;
// decoded frames are not available without codecs, so sinks observe track
// lifecycle and statistics only.
type pionReceiver struct {
	track   *webrtc.TrackRemote
	session *session

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

func newReceiver(track *webrtc.TrackRemote, s *session) *pionReceiver {
	return &pionReceiver{track: track, session: s}
}

func (r *pionReceiver) TrackID() string { return r.track.ID() }

func (r *pionReceiver) Kind() pc.MediaKind {
	switch r.track.Kind() {
	case webrtc.RTPCodecTypeAudio:
		return pc.MediaKindAudio
	case webrtc.RTPCodecTypeVideo:
		return pc.MediaKindVideo
	default:
		return pc.MediaKindUnknown
	}
}

func (r *pionReceiver) SetVideoSink(sink frame.VideoSink) error {
	if sink == nil {
		r.stopPump()
		return nil
	}
	r.startPump()
	return nil
}

func (r *pionReceiver) SetAudioSink(sink frame.AudioSink) error {
	if sink == nil {
		r.stopPump()
		return nil
	}
	r.startPump()
	return nil
}

func (r *pionReceiver) startPump() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	go r.pump(r.stop)
}

func (r *pionReceiver) stopPump() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	close(r.stop)
}

// pump drains RTP packets from the remote track until the sink is detached
// or the track ends.
func (r *pionReceiver) pump(stop chan struct{}) {
	var pkt rtp.Packet
	buf := make([]byte, 1500)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, _, err := r.track.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.session.logger.V(1).Info("rtp pump stopped", "track", r.track.ID(), "error", err.Error())
			}
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		r.session.stats.packetsReceived.Add(1)
		r.session.stats.bytesReceived.Add(int64(n))
	}
}

// videoSource accepts application frames. The pure-Go backend has no
// encoder, so frames are validated and counted; delivery to the remote
// peer requires the native engine.
type videoSource struct {
	mu     sync.Mutex
	sender *pionSender
	frames atomic.Int64
	closed atomic.Bool
}

func (v *videoSource) bind(s *pionSender) {
	v.mu.Lock()
	v.sender = s
	v.mu.Unlock()
}

func (v *videoSource) PushFrame(f *frame.VideoFrame) error {
	if v.closed.Load() {
		return pc.ErrInvalidOperation
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Format != frame.PixelFormatI420 {
		return frame.ErrFormatMismatch
	}
	v.frames.Add(1)
	return nil
}

func (v *videoSource) Close() error {
	v.closed.Store(true)
	return nil
}
