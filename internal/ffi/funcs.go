package ffi

import "github.com/ebitengine/purego"

// Shim entry points, bound by registerFunctions after the library loads.
// All handles are opaque shim tokens; ownership stays with the shim.
var (
	shimVersion func(buf uintptr, bufLen int32) int32

	shimEngineCreate           func() uintptr
	shimEngineDestroy          func(engine uintptr) int32
	shimEngineEnumVideoDevices func(engine uintptr, out uintptr, maxDevices int32, outCount uintptr) int32

	shimPeerConnectionCreate               func(engine uintptr, cfg uintptr) uintptr
	shimPeerConnectionSetObserver          func(pc uintptr, cbs uintptr, ctx uintptr) int32
	shimPeerConnectionCreateOffer          func(pc uintptr) int32
	shimPeerConnectionCreateAnswer         func(pc uintptr) int32
	shimPeerConnectionSetLocalDescription  func(pc uintptr, sdpType int32, sdp uintptr) int32
	shimPeerConnectionSetRemoteDescription func(pc uintptr, sdpType int32, sdp uintptr) int32
	shimPeerConnectionAddICECandidate      func(pc uintptr, mid uintptr, mlineIndex int32, candidate uintptr) int32
	shimPeerConnectionAddTrack             func(pc uintptr, kind int32, trackID uintptr, source uintptr) uintptr
	shimPeerConnectionRemoveTrack          func(pc uintptr, sender uintptr) int32
	shimPeerConnectionCreateDataChannel    func(pc uintptr, id int32, label uintptr, ordered int32, reliable int32) uintptr
	shimPeerConnectionGetStats             func(pc uintptr, out uintptr) int32
	shimPeerConnectionClose                func(pc uintptr) int32
	shimPeerConnectionDestroy              func(pc uintptr)

	shimSenderSetEnabled func(sender uintptr, enabled int32) int32
	shimSenderKind       func(sender uintptr) int32
	shimSenderTrackID    func(sender uintptr, buf uintptr, bufLen int32) int32

	shimReceiverKind         func(receiver uintptr) int32
	shimReceiverTrackID      func(receiver uintptr, buf uintptr, bufLen int32) int32
	shimReceiverSetVideoSink func(receiver uintptr, cb uintptr, ctx uintptr) int32
	shimReceiverSetAudioSink func(receiver uintptr, cb uintptr, ctx uintptr) int32

	shimDataChannelID             func(dc uintptr) int32
	shimDataChannelLabel          func(dc uintptr, buf uintptr, bufLen int32) int32
	shimDataChannelState          func(dc uintptr) int32
	shimDataChannelBufferedAmount func(dc uintptr) uint64
	shimDataChannelSend           func(dc uintptr, data uintptr, dataLen int32, binary int32) int32
	shimDataChannelSetObserver    func(dc uintptr, cbs uintptr, ctx uintptr) int32
	shimDataChannelClose          func(dc uintptr) int32

	shimVideoSourceCreate    func(engine uintptr) uintptr
	shimVideoSourcePushFrame func(src uintptr, frame uintptr) int32
	shimVideoSourceDestroy   func(src uintptr) int32
)

func registerFunctions() error {
	bindings := []struct {
		name string
		fn   any
	}{
		{"mrsShimVersion", &shimVersion},

		{"mrsEngineCreate", &shimEngineCreate},
		{"mrsEngineDestroy", &shimEngineDestroy},
		{"mrsEngineEnumVideoCaptureDevices", &shimEngineEnumVideoDevices},

		{"mrsPeerConnectionCreate", &shimPeerConnectionCreate},
		{"mrsPeerConnectionSetObserver", &shimPeerConnectionSetObserver},
		{"mrsPeerConnectionCreateOffer", &shimPeerConnectionCreateOffer},
		{"mrsPeerConnectionCreateAnswer", &shimPeerConnectionCreateAnswer},
		{"mrsPeerConnectionSetLocalDescription", &shimPeerConnectionSetLocalDescription},
		{"mrsPeerConnectionSetRemoteDescription", &shimPeerConnectionSetRemoteDescription},
		{"mrsPeerConnectionAddIceCandidate", &shimPeerConnectionAddICECandidate},
		{"mrsPeerConnectionAddTrack", &shimPeerConnectionAddTrack},
		{"mrsPeerConnectionRemoveTrack", &shimPeerConnectionRemoveTrack},
		{"mrsPeerConnectionCreateDataChannel", &shimPeerConnectionCreateDataChannel},
		{"mrsPeerConnectionGetStats", &shimPeerConnectionGetStats},
		{"mrsPeerConnectionClose", &shimPeerConnectionClose},
		{"mrsPeerConnectionDestroy", &shimPeerConnectionDestroy},

		{"mrsSenderSetEnabled", &shimSenderSetEnabled},
		{"mrsSenderKind", &shimSenderKind},
		{"mrsSenderTrackID", &shimSenderTrackID},

		{"mrsReceiverKind", &shimReceiverKind},
		{"mrsReceiverTrackID", &shimReceiverTrackID},
		{"mrsReceiverSetVideoSink", &shimReceiverSetVideoSink},
		{"mrsReceiverSetAudioSink", &shimReceiverSetAudioSink},

		{"mrsDataChannelGetID", &shimDataChannelID},
		{"mrsDataChannelGetLabel", &shimDataChannelLabel},
		{"mrsDataChannelGetState", &shimDataChannelState},
		{"mrsDataChannelGetBufferedAmount", &shimDataChannelBufferedAmount},
		{"mrsDataChannelSend", &shimDataChannelSend},
		{"mrsDataChannelSetObserver", &shimDataChannelSetObserver},
		{"mrsDataChannelClose", &shimDataChannelClose},

		{"mrsVideoSourceCreate", &shimVideoSourceCreate},
		{"mrsVideoSourcePushFrame", &shimVideoSourcePushFrame},
		{"mrsVideoSourceDestroy", &shimVideoSourceDestroy},
	}

	for _, b := range bindings {
		if err := registerOne(b.fn, b.name); err != nil {
			return err
		}
	}
	return nil
}

func registerOne(fptr any, name string) (err error) {
	// RegisterLibFunc panics on a missing symbol; report it as an error so a
	// partial shim fails the load instead of the process.
	defer func() {
		if r := recover(); r != nil {
			err = &missingSymbolError{name: name, cause: r}
		}
	}()
	purego.RegisterLibFunc(fptr, libHandle, name)
	return nil
}

type missingSymbolError struct {
	name  string
	cause any
}

func (e *missingSymbolError) Error() string {
	return "mrwebrtc: missing symbol " + e.name
}
