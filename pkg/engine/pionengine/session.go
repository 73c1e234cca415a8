package pionengine

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/pion/webrtc/v4"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// sessionStats accumulates transport counters from the RTP pumps and data
// channels.
type sessionStats struct {
	bytesSent            atomic.Int64
	bytesReceived        atomic.Int64
	packetsSent          atomic.Int64
	packetsReceived      atomic.Int64
	dataChannelsOpened   atomic.Int64
	dataChannelsClosed   atomic.Int64
	dataMessagesSent     atomic.Int64
	dataMessagesReceived atomic.Int64
	dataBytesSent        atomic.Int64
	dataBytesReceived    atomic.Int64
}

type session struct {
	conn     *webrtc.PeerConnection
	observer pc.SessionObserver
	dispatch *dispatcher
	logger   logr.Logger
	closed   atomic.Bool
	stats    sessionStats
}

// wireCallbacks routes pion events through the dispatch goroutine. pion
// fires callbacks from several internal goroutines; the core requires one
// serialized stream per session.
func (s *session) wireCallbacks() {
	s.conn.OnSignalingStateChange(func(state webrtc.SignalingState) {
		s.dispatch.post(func() {
			s.observer.OnSignalingChange(toSignalingState(state))
		})
	})
	s.conn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		s.dispatch.post(func() {
			s.observer.OnICEConnectionChange(toICEConnectionState(state))
		})
	})
	s.conn.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		s.dispatch.post(func() {
			s.observer.OnICEGatheringChange(toICEGatheringState(state))
		})
	})
	s.conn.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		out := pc.ICECandidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			out.SdpMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			out.SdpMLineIndex = int(*init.SDPMLineIndex)
		}
		s.dispatch.post(func() {
			s.observer.OnICECandidate(out)
		})
	})
	s.conn.OnNegotiationNeeded(func() {
		s.dispatch.post(s.observer.OnRenegotiationNeeded)
	})
	s.conn.OnDataChannel(func(dc *webrtc.DataChannel) {
		wrapped := newDataChannel(dc, s)
		s.dispatch.post(func() {
			s.observer.OnDataChannel(wrapped)
		})
	})
	s.conn.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		wrapped := newReceiver(track, s)
		s.dispatch.post(func() {
			s.observer.OnAddTrack(wrapped)
		})
	})
}

// CreateOffer produces the offer synchronously in pion, then delivers it on
// the dispatch goroutine to preserve the asynchronous contract.
func (s *session) CreateOffer(created func(pc.SessionDescription), failed func(error)) error {
	if s.closed.Load() {
		return pc.ErrInvalidOperation
	}
	s.dispatch.post(func() {
		desc, err := s.conn.CreateOffer(nil)
		if err != nil {
			if failed != nil {
				failed(err)
			}
			return
		}
		if created != nil {
			created(pc.SessionDescription{Type: toSdpType(desc.Type), Sdp: desc.SDP})
		}
	})
	return nil
}

func (s *session) CreateAnswer(created func(pc.SessionDescription), failed func(error)) error {
	if s.closed.Load() {
		return pc.ErrInvalidOperation
	}
	s.dispatch.post(func() {
		desc, err := s.conn.CreateAnswer(nil)
		if err != nil {
			if failed != nil {
				failed(err)
			}
			return
		}
		if created != nil {
			created(pc.SessionDescription{Type: toSdpType(desc.Type), Sdp: desc.SDP})
		}
	})
	return nil
}

func (s *session) SetLocalDescription(desc pc.SessionDescription, done func(error)) error {
	if s.closed.Load() {
		return pc.ErrInvalidOperation
	}
	s.dispatch.post(func() {
		err := s.conn.SetLocalDescription(webrtc.SessionDescription{
			Type: fromSdpType(desc.Type),
			SDP:  desc.Sdp,
		})
		if done != nil {
			done(err)
		}
	})
	return nil
}

// SetRemoteDescription parses and applies synchronously; pion reports parse
// failures from the call itself, which matches the synchronous-error part
// of the contract. Completion is still delivered on the dispatch goroutine.
func (s *session) SetRemoteDescription(desc pc.SessionDescription, done func(error)) error {
	if s.closed.Load() {
		return pc.ErrInvalidOperation
	}
	err := s.conn.SetRemoteDescription(webrtc.SessionDescription{
		Type: fromSdpType(desc.Type),
		SDP:  desc.Sdp,
	})
	if err != nil {
		return err
	}
	if done != nil {
		s.dispatch.post(func() { done(nil) })
	}
	return nil
}

func (s *session) AddICECandidate(candidate pc.ICECandidate) error {
	mid := candidate.SdpMid
	mline := uint16(candidate.SdpMLineIndex)
	return s.conn.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &mline,
	})
}

// AddTrack binds an outbound track. Pushed raw frames are not encoded (see
// the package comment); the track still negotiates so the remote side
// observes it.
func (s *session) AddTrack(kind pc.MediaKind, trackID string, source pc.VideoSource) (pc.Sender, error) {
	var codec webrtc.RTPCodecCapability
	switch kind {
	case pc.MediaKindVideo:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
	case pc.MediaKindAudio:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
	default:
		return nil, pc.ErrInvalidParameter
	}

	local, err := webrtc.NewTrackLocalStaticSample(codec, trackID, "mrwebrtc")
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}
	rtpSender, err := s.conn.AddTrack(local)
	if err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}

	sender := &pionSender{
		session:   s,
		rtpSender: rtpSender,
		trackID:   trackID,
		kind:      kind,
	}
	sender.enabled.Store(true)
	if src, ok := source.(*videoSource); ok && src != nil {
		src.bind(sender)
	}
	return sender, nil
}

func (s *session) RemoveTrack(sender pc.Sender) error {
	ps, ok := sender.(*pionSender)
	if !ok {
		return fmt.Errorf("sender not owned by the pion engine")
	}
	return s.conn.RemoveTrack(ps.rtpSender)
}

func (s *session) CreateDataChannel(init pc.DataChannelInit) (pc.EngineDataChannel, error) {
	opts := &webrtc.DataChannelInit{}
	ordered := init.Ordered
	opts.Ordered = &ordered
	if !init.Reliable {
		retransmits := uint16(0)
		opts.MaxRetransmits = &retransmits
	}
	if init.ID >= 0 {
		negotiated := true
		id := uint16(init.ID)
		opts.Negotiated = &negotiated
		opts.ID = &id
	}

	dc, err := s.conn.CreateDataChannel(init.Label, opts)
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return newDataChannel(dc, s), nil
}

func (s *session) GetStats() (pc.SessionStats, error) {
	return pc.SessionStats{
		BytesSent:            s.stats.bytesSent.Load(),
		BytesReceived:        s.stats.bytesReceived.Load(),
		PacketsSent:          s.stats.packetsSent.Load(),
		PacketsReceived:      s.stats.packetsReceived.Load(),
		DataChannelsOpened:   s.stats.dataChannelsOpened.Load(),
		DataChannelsClosed:   s.stats.dataChannelsClosed.Load(),
		DataMessagesSent:     s.stats.dataMessagesSent.Load(),
		DataMessagesReceived: s.stats.dataMessagesReceived.Load(),
		DataBytesSent:        s.stats.dataBytesSent.Load(),
		DataBytesReceived:    s.stats.dataBytesReceived.Load(),
	}, nil
}

func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.conn.Close()
	s.dispatch.close()
	return err
}
