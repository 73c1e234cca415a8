package pionengine

import (
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

func TestWebrtcConfig_Mapping(t *testing.T) {
	cfg := webrtcConfig(pc.ConnectionConfig{
		ICEServers: []pc.ICEServer{
			{Urls: []string{"stun:stun.example.com"}},
			{Urls: []string{"turn:turn.example.com"}, Username: "u", Password: "p"},
		},
		ICETransportPolicy: pc.ICETransportPolicyRelay,
		BundlePolicy:       pc.BundlePolicyMaxBundle,
		SdpSemantic:        pc.SdpSemanticUnifiedPlan,
	})

	if len(cfg.ICEServers) != 2 {
		t.Fatalf("servers = %d, want 2", len(cfg.ICEServers))
	}
	if cfg.ICEServers[0].Username != "" {
		t.Error("credentials set on credential-less server")
	}
	if cfg.ICEServers[1].Username != "u" || cfg.ICEServers[1].Credential != "p" {
		t.Errorf("turn credentials = %v/%v", cfg.ICEServers[1].Username, cfg.ICEServers[1].Credential)
	}
	if cfg.ICETransportPolicy != webrtc.ICETransportPolicyRelay {
		t.Errorf("transport policy = %v, want relay", cfg.ICETransportPolicy)
	}
	if cfg.BundlePolicy != webrtc.BundlePolicyMaxBundle {
		t.Errorf("bundle policy = %v, want max-bundle", cfg.BundlePolicy)
	}
	if cfg.SDPSemantics != webrtc.SDPSemanticsUnifiedPlan {
		t.Errorf("sdp semantics = %v", cfg.SDPSemantics)
	}
}

func TestStateMappings(t *testing.T) {
	if got := toSignalingState(webrtc.SignalingStateHaveRemotePranswer); got != pc.SignalingStateHaveRemotePrAnswer {
		t.Errorf("signaling mapping = %v", got)
	}
	if got := toICEConnectionState(webrtc.ICEConnectionStateCompleted); got != pc.ICEConnectionStateCompleted {
		t.Errorf("ice connection mapping = %v", got)
	}
	if got := toICEGatheringState(webrtc.ICEGatheringStateComplete); got != pc.ICEGatheringStateComplete {
		t.Errorf("gathering mapping = %v", got)
	}
	if got := toDataChannelState(webrtc.DataChannelStateClosing); got != pc.DataChannelStateClosing {
		t.Errorf("data channel mapping = %v", got)
	}
	if got := fromSdpType(toSdpType(webrtc.SDPTypePranswer)); got != webrtc.SDPTypePranswer {
		t.Errorf("sdp type round trip = %v", got)
	}
}

func TestEngine_SurfaceBasics(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if e.Name() != "pion" {
		t.Errorf("name = %q", e.Name())
	}
	devices, err := e.VideoCaptureDevices()
	if err != nil {
		t.Fatalf("VideoCaptureDevices: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("devices = %v, want none", devices)
	}

	src, err := e.CreateVideoSource()
	if err != nil {
		t.Fatalf("CreateVideoSource: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("source close: %v", err)
	}
}
