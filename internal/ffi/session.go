package ffi

import (
	"log"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// safeCallback wraps a callback invocation with panic recovery. A panic
// must not unwind through the shim's C stack frames.
func safeCallback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[mrwebrtc] panic recovered in callback: %v", r)
		}
	}()
	fn()
}

// PeerConfig mirrors mrsPeerConnectionConfig in the shim header.
type PeerConfig struct {
	ICETransportPolicy int32
	BundlePolicy       int32
	SdpSemantic        int32
	_                  int32 // padding
	ICEServers         uintptr
}

// ICEServerBlock packs ICE servers into the shim's text form: one server
// per line, "url|username|password" with empty credentials elided.
func ICEServerBlock(lines []string) string {
	return strings.Join(lines, "\n")
}

// SessionEvents receives shim callbacks for one peer connection. All
// callbacks arrive on the shim's signaling thread.
type SessionEvents struct {
	OnSignalingChange      func(state int32)
	OnICEConnectionChange  func(state int32)
	OnICEGatheringChange   func(state int32)
	OnICECandidate         func(mid string, mlineIndex int32, candidate string)
	OnRenegotiationNeeded  func()
	OnDataChannel          func(dc uintptr)
	OnAddTrack             func(receiver uintptr)
	OnRemoveTrack          func(receiver uintptr)
	OnSdpCreated           func(sdpType int32, sdp string)
	OnSdpFailure           func(message string)
	OnLocalDescApplied     func(resultCode int32)
	OnRemoteDescApplied    func(resultCode int32)
}

// shimObserverBlock mirrors mrsPeerConnectionObserver in the shim header:
// twelve C function pointers invoked with the registered ctx as first
// argument.
type shimObserverBlock struct {
	onSignalingChange     uintptr
	onICEConnectionChange uintptr
	onICEGatheringChange  uintptr
	onICECandidate        uintptr
	onRenegotiationNeeded uintptr
	onDataChannel         uintptr
	onAddTrack            uintptr
	onRemoveTrack         uintptr
	onSdpCreated          uintptr
	onSdpFailure          uintptr
	onLocalDescApplied    uintptr
	onRemoteDescApplied   uintptr
}

var (
	sessionEventsMu sync.RWMutex
	sessionEvents   = make(map[uintptr]*SessionEvents)

	observerBlock     shimObserverBlock
	observerBlockOnce sync.Once
)

func lookupSessionEvents(ctx uintptr) *SessionEvents {
	sessionEventsMu.RLock()
	defer sessionEventsMu.RUnlock()
	return sessionEvents[ctx]
}

// initObserverBlock creates the process-wide trampolines. purego callbacks
// cannot capture closure state, so the shim hands back the pc handle as ctx
// and the trampoline resolves the Go-side events through the registry.
func initObserverBlock() {
	observerBlock = shimObserverBlock{
		onSignalingChange: purego.NewCallback(func(ctx uintptr, state int32) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnSignalingChange != nil {
				safeCallback(func() { ev.OnSignalingChange(state) })
			}
		}),
		onICEConnectionChange: purego.NewCallback(func(ctx uintptr, state int32) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnICEConnectionChange != nil {
				safeCallback(func() { ev.OnICEConnectionChange(state) })
			}
		}),
		onICEGatheringChange: purego.NewCallback(func(ctx uintptr, state int32) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnICEGatheringChange != nil {
				safeCallback(func() { ev.OnICEGatheringChange(state) })
			}
		}),
		onICECandidate: purego.NewCallback(func(ctx uintptr, mid uintptr, mlineIndex int32, candidate uintptr) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnICECandidate != nil {
				midStr := CStringToGo(mid, 256)
				candStr := CStringToGo(candidate, 4096)
				safeCallback(func() { ev.OnICECandidate(midStr, mlineIndex, candStr) })
			}
		}),
		onRenegotiationNeeded: purego.NewCallback(func(ctx uintptr) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnRenegotiationNeeded != nil {
				safeCallback(ev.OnRenegotiationNeeded)
			}
		}),
		onDataChannel: purego.NewCallback(func(ctx uintptr, dc uintptr) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnDataChannel != nil {
				safeCallback(func() { ev.OnDataChannel(dc) })
			}
		}),
		onAddTrack: purego.NewCallback(func(ctx uintptr, receiver uintptr) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnAddTrack != nil {
				safeCallback(func() { ev.OnAddTrack(receiver) })
			}
		}),
		onRemoveTrack: purego.NewCallback(func(ctx uintptr, receiver uintptr) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnRemoveTrack != nil {
				safeCallback(func() { ev.OnRemoveTrack(receiver) })
			}
		}),
		onSdpCreated: purego.NewCallback(func(ctx uintptr, sdpType int32, sdp uintptr) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnSdpCreated != nil {
				sdpStr := CStringToGo(sdp, 64*1024)
				safeCallback(func() { ev.OnSdpCreated(sdpType, sdpStr) })
			}
		}),
		onSdpFailure: purego.NewCallback(func(ctx uintptr, message uintptr) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnSdpFailure != nil {
				msg := CStringToGo(message, 1024)
				safeCallback(func() { ev.OnSdpFailure(msg) })
			}
		}),
		onLocalDescApplied: purego.NewCallback(func(ctx uintptr, code int32) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnLocalDescApplied != nil {
				safeCallback(func() { ev.OnLocalDescApplied(code) })
			}
		}),
		onRemoteDescApplied: purego.NewCallback(func(ctx uintptr, code int32) {
			if ev := lookupSessionEvents(ctx); ev != nil && ev.OnRemoteDescApplied != nil {
				safeCallback(func() { ev.OnRemoteDescApplied(code) })
			}
		}),
	}
}

// EngineCreate constructs the shim engine with its worker, network and
// signaling threads.
func EngineCreate() (uintptr, error) {
	if !Loaded() {
		return 0, ErrLibraryNotLoaded
	}
	handle := shimEngineCreate()
	if handle == 0 {
		return 0, ErrUnknownShim
	}
	return handle, nil
}

// EngineDestroy stops the engine threads, blocking until shutdown
// completes.
func EngineDestroy(engine uintptr) error {
	return shimError(shimEngineDestroy(engine))
}

// PeerConnectionCreate creates a shim peer connection and registers its
// observer trampolines.
func PeerConnectionCreate(engine uintptr, cfg *PeerConfig, events *SessionEvents) (uintptr, error) {
	if !Loaded() {
		return 0, ErrLibraryNotLoaded
	}
	handle := shimPeerConnectionCreate(engine, uintptr(unsafe.Pointer(cfg)))
	// The shim copies the config (including the server block behind
	// cfg.ICEServers) before returning; cfg only has to survive the call.
	runtime.KeepAlive(cfg)
	if handle == 0 {
		return 0, ErrUnknownShim
	}

	observerBlockOnce.Do(initObserverBlock)

	sessionEventsMu.Lock()
	sessionEvents[handle] = events
	sessionEventsMu.Unlock()

	if code := shimPeerConnectionSetObserver(handle, uintptr(unsafe.Pointer(&observerBlock)), handle); code != shimOK {
		sessionEventsMu.Lock()
		delete(sessionEvents, handle)
		sessionEventsMu.Unlock()
		shimPeerConnectionDestroy(handle)
		return 0, shimError(code)
	}
	return handle, nil
}

// PeerConnectionCreateOffer starts offer creation; the result arrives via
// OnSdpCreated or OnSdpFailure.
func PeerConnectionCreateOffer(pc uintptr) error {
	return shimError(shimPeerConnectionCreateOffer(pc))
}

// PeerConnectionCreateAnswer starts answer creation.
func PeerConnectionCreateAnswer(pc uintptr) error {
	return shimError(shimPeerConnectionCreateAnswer(pc))
}

// PeerConnectionSetLocalDescription applies a local description; completion
// arrives via OnLocalDescApplied.
func PeerConnectionSetLocalDescription(pc uintptr, sdpType int32, sdp string) error {
	buf := CString(sdp)
	code := shimPeerConnectionSetLocalDescription(pc, sdpType, ByteSlicePtr(buf))
	runtime.KeepAlive(buf)
	return shimError(code)
}

// PeerConnectionSetRemoteDescription applies the remote description;
// completion arrives via OnRemoteDescApplied.
func PeerConnectionSetRemoteDescription(pc uintptr, sdpType int32, sdp string) error {
	buf := CString(sdp)
	code := shimPeerConnectionSetRemoteDescription(pc, sdpType, ByteSlicePtr(buf))
	runtime.KeepAlive(buf)
	return shimError(code)
}

// PeerConnectionAddICECandidate forwards one remote candidate.
func PeerConnectionAddICECandidate(pc uintptr, mid string, mlineIndex int32, candidate string) error {
	midBuf := CString(mid)
	candBuf := CString(candidate)
	code := shimPeerConnectionAddICECandidate(pc, ByteSlicePtr(midBuf), mlineIndex, ByteSlicePtr(candBuf))
	runtime.KeepAlive(midBuf)
	runtime.KeepAlive(candBuf)
	return shimError(code)
}

// PeerConnectionAddTrack adds an outbound track; source may be 0 for the
// engine's default capture device. Returns the sender handle.
func PeerConnectionAddTrack(pc uintptr, kind int32, trackID string, source uintptr) (uintptr, error) {
	idBuf := CString(trackID)
	sender := shimPeerConnectionAddTrack(pc, kind, ByteSlicePtr(idBuf), source)
	runtime.KeepAlive(idBuf)
	if sender == 0 {
		return 0, ErrUnknownShim
	}
	return sender, nil
}

// PeerConnectionRemoveTrack removes the sender's track.
func PeerConnectionRemoveTrack(pc, sender uintptr) error {
	return shimError(shimPeerConnectionRemoveTrack(pc, sender))
}

// PeerConnectionCreateDataChannel creates a data channel. id -1 requests
// in-band negotiation.
func PeerConnectionCreateDataChannel(pc uintptr, id int32, label string, ordered, reliable bool) (uintptr, error) {
	labelBuf := CString(label)
	dc := shimPeerConnectionCreateDataChannel(pc, id, ByteSlicePtr(labelBuf), boolInt32(ordered), boolInt32(reliable))
	runtime.KeepAlive(labelBuf)
	if dc == 0 {
		return 0, ErrUnknownShim
	}
	return dc, nil
}

// StatsBlob mirrors mrsSessionStats in the shim header.
type StatsBlob struct {
	BytesSent            int64
	BytesReceived        int64
	PacketsSent          int64
	PacketsReceived      int64
	DataChannelsOpened   int64
	DataChannelsClosed   int64
	DataMessagesSent     int64
	DataMessagesReceived int64
	DataBytesSent        int64
	DataBytesReceived    int64
}

// PeerConnectionGetStats snapshots the session counters.
func PeerConnectionGetStats(pc uintptr) (StatsBlob, error) {
	var blob StatsBlob
	err := shimError(shimPeerConnectionGetStats(pc, uintptr(unsafe.Pointer(&blob))))
	return blob, err
}

// PeerConnectionClose closes and destroys the shim peer connection and
// drops its observer registration.
func PeerConnectionClose(pc uintptr) error {
	err := shimError(shimPeerConnectionClose(pc))

	sessionEventsMu.Lock()
	delete(sessionEvents, pc)
	sessionEventsMu.Unlock()

	shimPeerConnectionDestroy(pc)
	return err
}

func boolInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
