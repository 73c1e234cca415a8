// Package pionengine backs the connection core with a pure-Go WebRTC stack
// built on pion. It carries signaling, ICE and data channels without any
// native dependency. Raw frame transport is not available: pion ships no
// media codecs, so pushed video frames reach local callbacks only and
// remote track payloads are consumed as RTP for statistics.
package pionengine

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pion/webrtc/v4"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// Engine is the pure-Go backend.
type Engine struct {
	logger logr.Logger
}

// New constructs the pion-backed engine.
func New() (*Engine, error) {
	return &Engine{logger: pc.NewLogger("pionengine")}, nil
}

// Factory is the pc.EngineFactory for the pion backend.
func Factory() (pc.Engine, error) {
	return New()
}

func (e *Engine) Name() string { return "pion" }

// CreateSession creates a pion peer connection bound to observer. All
// observer callbacks are serialized on a per-session dispatch goroutine.
func (e *Engine) CreateSession(cfg pc.ConnectionConfig, observer pc.SessionObserver) (pc.Session, error) {
	conn, err := webrtc.NewPeerConnection(webrtcConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create pion peer connection: %w", err)
	}

	s := &session{
		conn:     conn,
		observer: observer,
		dispatch: newDispatcher(),
		logger:   e.logger.WithName("session"),
	}
	s.wireCallbacks()
	return s, nil
}

// CreateVideoSource allocates a frame source. Frames pushed into it are
// validated and counted but not encoded; see the package comment.
func (e *Engine) CreateVideoSource() (pc.VideoSource, error) {
	return &videoSource{}, nil
}

// VideoCaptureDevices reports no devices: the pion backend has no capture
// layer.
func (e *Engine) VideoCaptureDevices() ([]pc.VideoCaptureDevice, error) {
	return nil, nil
}

func (e *Engine) Close() error { return nil }

func webrtcConfig(cfg pc.ConnectionConfig) webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, srv := range cfg.ICEServers {
		entry := webrtc.ICEServer{URLs: srv.Urls}
		if srv.Username != "" {
			entry.Username = srv.Username
			entry.Credential = srv.Password
		}
		servers = append(servers, entry)
	}

	policy := webrtc.ICETransportPolicyAll
	// pion has no nohost policy; nohost and none both fall back to relay-only,
	// the closest restriction it can express.
	if cfg.ICETransportPolicy != pc.ICETransportPolicyAll {
		policy = webrtc.ICETransportPolicyRelay
	}

	bundle := webrtc.BundlePolicyBalanced
	switch cfg.BundlePolicy {
	case pc.BundlePolicyMaxBundle:
		bundle = webrtc.BundlePolicyMaxBundle
	case pc.BundlePolicyMaxCompat:
		bundle = webrtc.BundlePolicyMaxCompat
	}

	semantics := webrtc.SDPSemanticsUnifiedPlan
	if cfg.SdpSemantic == pc.SdpSemanticPlanB {
		semantics = webrtc.SDPSemanticsPlanB
	}

	return webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
		BundlePolicy:       bundle,
		SDPSemantics:       semantics,
	}
}

func toSdpType(t webrtc.SDPType) pc.SdpType {
	switch t {
	case webrtc.SDPTypeAnswer:
		return pc.SdpTypeAnswer
	case webrtc.SDPTypePranswer:
		return pc.SdpTypePrAnswer
	default:
		return pc.SdpTypeOffer
	}
}

func fromSdpType(t pc.SdpType) webrtc.SDPType {
	switch t {
	case pc.SdpTypeAnswer:
		return webrtc.SDPTypeAnswer
	case pc.SdpTypePrAnswer:
		return webrtc.SDPTypePranswer
	default:
		return webrtc.SDPTypeOffer
	}
}

func toSignalingState(s webrtc.SignalingState) pc.SignalingState {
	switch s {
	case webrtc.SignalingStateStable:
		return pc.SignalingStateStable
	case webrtc.SignalingStateHaveLocalOffer:
		return pc.SignalingStateHaveLocalOffer
	case webrtc.SignalingStateHaveLocalPranswer:
		return pc.SignalingStateHaveLocalPrAnswer
	case webrtc.SignalingStateHaveRemoteOffer:
		return pc.SignalingStateHaveRemoteOffer
	case webrtc.SignalingStateHaveRemotePranswer:
		return pc.SignalingStateHaveRemotePrAnswer
	default:
		return pc.SignalingStateClosed
	}
}

func toICEConnectionState(s webrtc.ICEConnectionState) pc.ICEConnectionState {
	switch s {
	case webrtc.ICEConnectionStateNew:
		return pc.ICEConnectionStateNew
	case webrtc.ICEConnectionStateChecking:
		return pc.ICEConnectionStateChecking
	case webrtc.ICEConnectionStateConnected:
		return pc.ICEConnectionStateConnected
	case webrtc.ICEConnectionStateCompleted:
		return pc.ICEConnectionStateCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return pc.ICEConnectionStateDisconnected
	case webrtc.ICEConnectionStateFailed:
		return pc.ICEConnectionStateFailed
	default:
		return pc.ICEConnectionStateClosed
	}
}

func toICEGatheringState(s webrtc.ICEGatheringState) pc.ICEGatheringState {
	switch s {
	case webrtc.ICEGatheringStateGathering:
		return pc.ICEGatheringStateGathering
	case webrtc.ICEGatheringStateComplete:
		return pc.ICEGatheringStateComplete
	default:
		return pc.ICEGatheringStateNew
	}
}

func toDataChannelState(s webrtc.DataChannelState) pc.DataChannelState {
	switch s {
	case webrtc.DataChannelStateConnecting:
		return pc.DataChannelStateConnecting
	case webrtc.DataChannelStateOpen:
		return pc.DataChannelStateOpen
	case webrtc.DataChannelStateClosing:
		return pc.DataChannelStateClosing
	default:
		return pc.DataChannelStateClosed
	}
}
