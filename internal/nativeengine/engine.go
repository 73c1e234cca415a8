// Package nativeengine adapts the mrwebrtc native shim to the engine
// interfaces consumed by pkg/pc. It owns no media logic of its own; every
// operation forwards to the shim and every event arrives through the ffi
// trampolines.
package nativeengine

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-logr/logr"

	"github.com/microsoft/MixedReality-WebRTC-sub003/internal/ffi"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// Engine drives the native mrwebrtc library. A single Engine owns the
// shim's worker, network and signaling threads.
type Engine struct {
	handle uintptr
	logger logr.Logger
}

// New loads the shim library if needed and constructs the native engine.
func New() (*Engine, error) {
	if err := ffi.LoadLibrary(); err != nil {
		return nil, err
	}
	handle, err := ffi.EngineCreate()
	if err != nil {
		return nil, fmt.Errorf("create native engine: %w", err)
	}
	return &Engine{
		handle: handle,
		logger: pc.NewLogger("nativeengine"),
	}, nil
}

// Factory is the pc.EngineFactory for the native backend.
func Factory() (pc.Engine, error) {
	return New()
}

func (e *Engine) Name() string { return "mrwebrtc" }

// CreateSession creates a native peer connection bound to observer.
func (e *Engine) CreateSession(cfg pc.ConnectionConfig, observer pc.SessionObserver) (pc.Session, error) {
	s := &session{
		engine:   e,
		observer: observer,
		logger:   e.logger.WithName("session"),
	}

	events := &ffi.SessionEvents{
		OnSignalingChange: func(state int32) {
			observer.OnSignalingChange(pc.SignalingState(state))
		},
		OnICEConnectionChange: func(state int32) {
			observer.OnICEConnectionChange(pc.ICEConnectionState(state))
		},
		OnICEGatheringChange: func(state int32) {
			observer.OnICEGatheringChange(pc.ICEGatheringState(state))
		},
		OnICECandidate: func(mid string, mlineIndex int32, candidate string) {
			observer.OnICECandidate(pc.ICECandidate{
				SdpMid:        mid,
				SdpMLineIndex: int(mlineIndex),
				Candidate:     candidate,
			})
		},
		OnRenegotiationNeeded: observer.OnRenegotiationNeeded,
		OnDataChannel: func(dc uintptr) {
			observer.OnDataChannel(newDataChannel(dc))
		},
		OnAddTrack: func(receiver uintptr) {
			observer.OnAddTrack(&nativeReceiver{handle: receiver})
		},
		OnRemoveTrack: func(receiver uintptr) {
			observer.OnRemoveTrack(&nativeReceiver{handle: receiver})
		},
		OnSdpCreated:        s.onSdpCreated,
		OnSdpFailure:        s.onSdpFailure,
		OnLocalDescApplied:  s.onLocalApplied,
		OnRemoteDescApplied: s.onRemoteApplied,
	}

	shimCfg, serverBlock := packConfig(cfg)
	handle, err := ffi.PeerConnectionCreate(e.handle, shimCfg, events)
	runtime.KeepAlive(serverBlock)
	if err != nil {
		return nil, fmt.Errorf("create native peer connection: %w", err)
	}
	s.handle = handle
	return s, nil
}

// CreateVideoSource allocates an external frame source on the engine.
func (e *Engine) CreateVideoSource() (pc.VideoSource, error) {
	src, err := ffi.VideoSourceCreate(e.handle)
	if err != nil {
		return nil, err
	}
	return &videoSource{handle: src}, nil
}

// VideoCaptureDevices lists the OS capture devices the engine can open.
func (e *Engine) VideoCaptureDevices() ([]pc.VideoCaptureDevice, error) {
	infos, err := ffi.EnumVideoCaptureDevices(e.handle)
	if err != nil {
		return nil, err
	}
	devices := make([]pc.VideoCaptureDevice, len(infos))
	for i, info := range infos {
		devices[i] = pc.VideoCaptureDevice{ID: info.ID, Name: info.Name}
	}
	return devices, nil
}

// Close stops the engine threads, blocking until shutdown completes.
func (e *Engine) Close() error {
	return ffi.EngineDestroy(e.handle)
}

// packConfig converts a connection config to the shim's packed form. The
// returned byte slice backs the config's server-block pointer; the caller
// must keep it alive until the shim call that consumes the config returns.
func packConfig(cfg pc.ConnectionConfig) (*ffi.PeerConfig, []byte) {
	lines := make([]string, 0, len(cfg.ICEServers))
	for _, srv := range cfg.ICEServers {
		for _, url := range srv.Urls {
			if srv.Username == "" {
				lines = append(lines, url)
				continue
			}
			lines = append(lines, strings.Join([]string{url, srv.Username, srv.Password}, "|"))
		}
	}
	block := ffi.CString(ffi.ICEServerBlock(lines))
	return &ffi.PeerConfig{
		ICETransportPolicy: int32(cfg.ICETransportPolicy),
		BundlePolicy:       int32(cfg.BundlePolicy),
		SdpSemantic:        int32(cfg.SdpSemantic),
		ICEServers:         ffi.ByteSlicePtr(block),
	}, block
}
