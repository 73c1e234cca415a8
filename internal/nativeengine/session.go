package nativeengine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/microsoft/MixedReality-WebRTC-sub003/internal/ffi"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// sdpRequest holds the completion pair of one in-flight CreateOffer or
// CreateAnswer.
type sdpRequest struct {
	created func(pc.SessionDescription)
	failed  func(error)
}

// session wraps one shim peer connection. The shim serializes description
// callbacks on its signaling thread in request order, so FIFO queues are
// enough to pair completions with requests.
type session struct {
	engine   *Engine
	observer pc.SessionObserver
	logger   logr.Logger
	handle   uintptr

	mu            sync.Mutex
	sdpRequests   []sdpRequest
	localApplies  []func(error)
	remoteApplies []func(error)
}

func (s *session) CreateOffer(created func(pc.SessionDescription), failed func(error)) error {
	s.mu.Lock()
	s.sdpRequests = append(s.sdpRequests, sdpRequest{created: created, failed: failed})
	s.mu.Unlock()

	if err := ffi.PeerConnectionCreateOffer(s.handle); err != nil {
		s.dropSdpRequest()
		return err
	}
	return nil
}

func (s *session) CreateAnswer(created func(pc.SessionDescription), failed func(error)) error {
	s.mu.Lock()
	s.sdpRequests = append(s.sdpRequests, sdpRequest{created: created, failed: failed})
	s.mu.Unlock()

	if err := ffi.PeerConnectionCreateAnswer(s.handle); err != nil {
		s.dropSdpRequest()
		return err
	}
	return nil
}

func (s *session) SetLocalDescription(desc pc.SessionDescription, done func(error)) error {
	s.mu.Lock()
	s.localApplies = append(s.localApplies, done)
	s.mu.Unlock()

	if err := ffi.PeerConnectionSetLocalDescription(s.handle, int32(desc.Type), desc.Sdp); err != nil {
		s.mu.Lock()
		s.localApplies = s.localApplies[:len(s.localApplies)-1]
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *session) SetRemoteDescription(desc pc.SessionDescription, done func(error)) error {
	s.mu.Lock()
	s.remoteApplies = append(s.remoteApplies, done)
	s.mu.Unlock()

	if err := ffi.PeerConnectionSetRemoteDescription(s.handle, int32(desc.Type), desc.Sdp); err != nil {
		s.mu.Lock()
		s.remoteApplies = s.remoteApplies[:len(s.remoteApplies)-1]
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *session) AddICECandidate(candidate pc.ICECandidate) error {
	return ffi.PeerConnectionAddICECandidate(s.handle,
		candidate.SdpMid, int32(candidate.SdpMLineIndex), candidate.Candidate)
}

func (s *session) AddTrack(kind pc.MediaKind, trackID string, source pc.VideoSource) (pc.Sender, error) {
	var sourceHandle uintptr
	if source != nil {
		vs, ok := source.(*videoSource)
		if !ok {
			return nil, fmt.Errorf("video source not owned by the native engine")
		}
		sourceHandle = vs.handle
	}
	sender, err := ffi.PeerConnectionAddTrack(s.handle, int32(kind), trackID, sourceHandle)
	if err != nil {
		return nil, err
	}
	return &nativeSender{handle: sender}, nil
}

func (s *session) RemoveTrack(sender pc.Sender) error {
	ns, ok := sender.(*nativeSender)
	if !ok {
		return fmt.Errorf("sender not owned by the native engine")
	}
	return ffi.PeerConnectionRemoveTrack(s.handle, ns.handle)
}

func (s *session) CreateDataChannel(init pc.DataChannelInit) (pc.EngineDataChannel, error) {
	dc, err := ffi.PeerConnectionCreateDataChannel(s.handle,
		int32(init.ID), init.Label, init.Ordered, init.Reliable)
	if err != nil {
		return nil, err
	}
	return newDataChannel(dc), nil
}

func (s *session) GetStats() (pc.SessionStats, error) {
	blob, err := ffi.PeerConnectionGetStats(s.handle)
	if err != nil {
		return pc.SessionStats{}, err
	}
	return pc.SessionStats{
		BytesSent:            blob.BytesSent,
		BytesReceived:        blob.BytesReceived,
		PacketsSent:          blob.PacketsSent,
		PacketsReceived:      blob.PacketsReceived,
		DataChannelsOpened:   blob.DataChannelsOpened,
		DataChannelsClosed:   blob.DataChannelsClosed,
		DataMessagesSent:     blob.DataMessagesSent,
		DataMessagesReceived: blob.DataMessagesReceived,
		DataBytesSent:        blob.DataBytesSent,
		DataBytesReceived:    blob.DataBytesReceived,
	}, nil
}

func (s *session) Close() error {
	return ffi.PeerConnectionClose(s.handle)
}

func (s *session) dropSdpRequest() {
	s.mu.Lock()
	if n := len(s.sdpRequests); n > 0 {
		s.sdpRequests = s.sdpRequests[:n-1]
	}
	s.mu.Unlock()
}

func (s *session) popSdpRequest() (sdpRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sdpRequests) == 0 {
		return sdpRequest{}, false
	}
	req := s.sdpRequests[0]
	s.sdpRequests = s.sdpRequests[1:]
	return req, true
}

func (s *session) onSdpCreated(sdpType int32, sdp string) {
	req, ok := s.popSdpRequest()
	if !ok {
		s.logger.Info("discarding unexpected sdp created event")
		return
	}
	if req.created != nil {
		req.created(pc.SessionDescription{Type: pc.SdpType(sdpType), Sdp: sdp})
	}
}

func (s *session) onSdpFailure(message string) {
	req, ok := s.popSdpRequest()
	if !ok {
		s.logger.Info("discarding unexpected sdp failure event", "error", message)
		return
	}
	if req.failed != nil {
		req.failed(errors.New(message))
	}
}

func (s *session) onLocalApplied(code int32) {
	s.mu.Lock()
	var done func(error)
	if len(s.localApplies) > 0 {
		done = s.localApplies[0]
		s.localApplies = s.localApplies[1:]
	}
	s.mu.Unlock()
	if done != nil {
		done(shimCompletionError(code))
	}
}

func (s *session) onRemoteApplied(code int32) {
	s.mu.Lock()
	var done func(error)
	if len(s.remoteApplies) > 0 {
		done = s.remoteApplies[0]
		s.remoteApplies = s.remoteApplies[1:]
	}
	s.mu.Unlock()
	if done != nil {
		done(shimCompletionError(code))
	}
}

func shimCompletionError(code int32) error {
	if code == 0 {
		return nil
	}
	return fmt.Errorf("native description apply failed (code %d)", code)
}
