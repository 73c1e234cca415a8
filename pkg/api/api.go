package api

import (
	"errors"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// Result is the status code returned across the flat surface. Calls never
// panic and never return Go errors; precondition violations map to the
// matching code, opaque engine failures to ResultUnknown.
type Result int

const (
	ResultSuccess Result = iota
	ResultInvalidParameter
	ResultInvalidOperation
	ResultNotFound
	ResultSctpNotNegotiated
	ResultOutOfRange
	ResultWrongThread
	ResultPeerConnectionClosed
	ResultNotSupported
	ResultUnknown
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInvalidParameter:
		return "invalid-parameter"
	case ResultInvalidOperation:
		return "invalid-operation"
	case ResultNotFound:
		return "not-found"
	case ResultSctpNotNegotiated:
		return "sctp-not-negotiated"
	case ResultOutOfRange:
		return "out-of-range"
	case ResultWrongThread:
		return "wrong-thread"
	case ResultPeerConnectionClosed:
		return "peer-connection-closed"
	case ResultNotSupported:
		return "not-supported"
	case ResultUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func resultFromError(err error) Result {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, pc.ErrInvalidParameter):
		return ResultInvalidParameter
	case errors.Is(err, pc.ErrPeerConnectionClosed):
		return ResultPeerConnectionClosed
	case errors.Is(err, pc.ErrInvalidOperation), errors.Is(err, pc.ErrNoEngineFactory):
		return ResultInvalidOperation
	case errors.Is(err, pc.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, pc.ErrSctpNotNegotiated):
		return ResultSctpNotNegotiated
	case errors.Is(err, pc.ErrOutOfRange):
		return ResultOutOfRange
	case errors.Is(err, pc.ErrWrongThread):
		return ResultWrongThread
	case errors.Is(err, pc.ErrNotSupported):
		return ResultNotSupported
	default:
		return ResultUnknown
	}
}

type dataChannelEntry struct {
	dc   *pc.DataChannel
	conn Handle
}

type sourceEntry struct {
	source *pc.ExternalVideoTrackSource
}

var (
	connections  table[*pc.PeerConnection]
	dataChannels table[dataChannelEntry]
	videoSources table[sourceEntry]
)

// CreateConnection creates a connection and returns its handle.
func CreateConnection(cfg pc.ConnectionConfig) (Handle, Result) {
	conn, err := pc.NewPeerConnection(cfg)
	if err != nil {
		return 0, resultFromError(err)
	}
	return connections.insert(conn), ResultSuccess
}

// CloseConnection closes the connection and invalidates its handle along
// with every data channel handle issued for it. Closing an already-released
// handle reports ResultNotFound.
func CloseConnection(h Handle) Result {
	conn, ok := connections.remove(h)
	if !ok {
		return ResultNotFound
	}
	dataChannels.removeIf(func(e dataChannelEntry) bool { return e.conn == h })
	return resultFromError(conn.Close())
}

// IsClosed reports whether the connection behind h is closed. A stale
// handle counts as closed.
func IsClosed(h Handle) bool {
	conn, ok := connections.get(h)
	if !ok {
		return true
	}
	return conn.IsClosed()
}

// CreateOffer starts an offer on the connection.
func CreateOffer(h Handle) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(conn.CreateOffer())
}

// CreateAnswer starts an answer on the connection.
func CreateAnswer(h Handle) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(conn.CreateAnswer())
}

// SetRemoteDescription applies the remote description; onApplied fires once
// the engine has finished.
func SetRemoteDescription(h Handle, sdpType, sdp string, onApplied func()) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(conn.SetRemoteDescriptionAsync(sdpType, sdp, onApplied))
}

// AddICECandidate forwards one remote candidate.
func AddICECandidate(h Handle, sdpMid string, sdpMLineIndex int, candidate string) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(conn.AddICECandidate(sdpMid, sdpMLineIndex, candidate))
}

// AddDataChannel creates a data channel and returns its handle.
func AddDataChannel(h Handle, id int, label string, ordered, reliable bool) (Handle, Result) {
	conn, ok := connections.get(h)
	if !ok {
		return 0, ResultNotFound
	}
	dc, err := conn.AddDataChannel(id, label, ordered, reliable)
	if err != nil {
		return 0, resultFromError(err)
	}
	return dataChannels.insert(dataChannelEntry{dc: dc, conn: h}), ResultSuccess
}

// RemoveDataChannel removes the channel behind dcHandle from its
// connection.
func RemoveDataChannel(h, dcHandle Handle) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	entry, ok := dataChannels.remove(dcHandle)
	if !ok || entry.conn != h {
		return ResultNotFound
	}
	return resultFromError(conn.RemoveDataChannel(entry.dc))
}

// RemoveDataChannelByID removes the channel negotiated under id.
func RemoveDataChannelByID(h Handle, id int) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	if dc, found := conn.DataChannelByID(id); found {
		dataChannels.removeIf(func(e dataChannelEntry) bool { return e.dc == dc })
	}
	return resultFromError(conn.RemoveDataChannelByID(id))
}

// RemoveDataChannelByLabel removes the earliest-registered channel carrying
// label.
func RemoveDataChannelByLabel(h Handle, label string) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	if list := conn.DataChannelsByLabel(label); len(list) > 0 {
		target := list[0]
		dataChannels.removeIf(func(e dataChannelEntry) bool { return e.dc == target })
	}
	return resultFromError(conn.RemoveDataChannelByLabel(label))
}

// SendDataChannelMessage sends payload on the channel with the given id.
func SendDataChannelMessage(h Handle, id int, payload []byte) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(conn.SendDataChannelMessage(id, payload))
}

// RegisterDataChannelMessageCallback installs the per-channel message
// callback; nil unregisters.
func RegisterDataChannelMessageCallback(dcHandle Handle, cb func(payload []byte)) Result {
	entry, ok := dataChannels.get(dcHandle)
	if !ok {
		return ResultNotFound
	}
	entry.dc.RegisterMessageCallback(cb)
	return ResultSuccess
}

// RegisterDataChannelStateCallback installs the per-channel state callback;
// nil unregisters.
func RegisterDataChannelStateCallback(dcHandle Handle, cb func(pc.DataChannelState)) Result {
	entry, ok := dataChannels.get(dcHandle)
	if !ok {
		return ResultNotFound
	}
	entry.dc.RegisterStateChangeCallback(cb)
	return ResultSuccess
}

// AddLocalVideoTrack attaches an outbound video track, fed from the source
// behind sourceHandle or from the engine's default capture device when
// sourceHandle is zero.
func AddLocalVideoTrack(h Handle, sourceHandle Handle) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	var source *pc.ExternalVideoTrackSource
	if sourceHandle != 0 {
		entry, found := videoSources.get(sourceHandle)
		if !found {
			return ResultNotFound
		}
		source = entry.source
	}
	_, err := conn.AddLocalVideoTrack(source)
	return resultFromError(err)
}

// RemoveLocalVideoTrack detaches the local video track.
func RemoveLocalVideoTrack(h Handle) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(conn.RemoveLocalVideoTrack())
}

// AddLocalAudioTrack attaches an outbound audio track.
func AddLocalAudioTrack(h Handle) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	_, err := conn.AddLocalAudioTrack()
	return resultFromError(err)
}

// RemoveLocalAudioTrack detaches the local audio track.
func RemoveLocalAudioTrack(h Handle) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(conn.RemoveLocalAudioTrack())
}

// CreateExternalVideoSource creates a frame-push source and returns its
// handle.
func CreateExternalVideoSource() (Handle, Result) {
	source, err := pc.NewExternalVideoTrackSource()
	if err != nil {
		return 0, resultFromError(err)
	}
	return videoSources.insert(sourceEntry{source: source}), ResultSuccess
}

// DestroyExternalVideoSource disposes the source and invalidates its
// handle.
func DestroyExternalVideoSource(h Handle) Result {
	entry, ok := videoSources.remove(h)
	if !ok {
		return ResultNotFound
	}
	entry.source.Dispose()
	return ResultSuccess
}

// PushVideoFrame feeds one I420 frame into the source.
func PushVideoFrame(h Handle, f *frame.VideoFrame) Result {
	entry, ok := videoSources.get(h)
	if !ok {
		return ResultNotFound
	}
	return resultFromError(entry.source.PushFrame(f))
}

// RegisterLocalFrameCallback taps frames pushed into the source; nil
// unregisters.
func RegisterLocalFrameCallback(h Handle, cb frame.I420Callback) Result {
	entry, ok := videoSources.get(h)
	if !ok {
		return ResultNotFound
	}
	entry.source.RegisterLocalFrameCallback(cb)
	return ResultSuccess
}

// GetVideoCaptureDevices enumerates OS capture devices through the live
// engine.
func GetVideoCaptureDevices() ([]pc.VideoCaptureDevice, Result) {
	devices, err := pc.InstancePtr().VideoCaptureDevices()
	if err != nil {
		return nil, resultFromError(err)
	}
	return devices, ResultSuccess
}

// RegisterConnectedCallback installs cb; nil unregisters.
func RegisterConnectedCallback(h Handle, cb func()) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterConnectedCallback(cb)
	return ResultSuccess
}

// RegisterLocalSdpReadyCallback installs cb; nil unregisters.
func RegisterLocalSdpReadyCallback(h Handle, cb func(pc.SdpType, string)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterLocalSdpReadyCallback(cb)
	return ResultSuccess
}

// RegisterICECandidateReadyCallback installs cb; nil unregisters.
func RegisterICECandidateReadyCallback(h Handle, cb func(pc.ICECandidate)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterICECandidateReadyCallback(cb)
	return ResultSuccess
}

// RegisterICEStateChangedCallback installs cb; nil unregisters.
func RegisterICEStateChangedCallback(h Handle, cb func(pc.ICEConnectionState)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterICEStateChangedCallback(cb)
	return ResultSuccess
}

// RegisterICEGatheringStateChangedCallback installs cb; nil unregisters.
func RegisterICEGatheringStateChangedCallback(h Handle, cb func(pc.ICEGatheringState)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterICEGatheringStateChangedCallback(cb)
	return ResultSuccess
}

// RegisterRenegotiationNeededCallback installs cb; nil unregisters.
func RegisterRenegotiationNeededCallback(h Handle, cb func()) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterRenegotiationNeededCallback(cb)
	return ResultSuccess
}

// RegisterTrackAddedCallback installs cb; nil unregisters.
func RegisterTrackAddedCallback(h Handle, cb func(pc.MediaKind)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterTrackAddedCallback(cb)
	return ResultSuccess
}

// RegisterTrackRemovedCallback installs cb; nil unregisters.
func RegisterTrackRemovedCallback(h Handle, cb func(pc.MediaKind)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterTrackRemovedCallback(cb)
	return ResultSuccess
}

// RegisterDataChannelAddedCallback installs cb; nil unregisters.
func RegisterDataChannelAddedCallback(h Handle, cb func(*pc.DataChannel)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterDataChannelAddedCallback(cb)
	return ResultSuccess
}

// RegisterDataChannelRemovedCallback installs cb; nil unregisters.
func RegisterDataChannelRemovedCallback(h Handle, cb func(*pc.DataChannel)) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterDataChannelRemovedCallback(cb)
	return ResultSuccess
}

// RegisterRemoteVideoFrameCallback installs the remote I420 tap; nil
// unregisters.
func RegisterRemoteVideoFrameCallback(h Handle, cb frame.I420Callback) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterRemoteVideoFrameCallback(cb)
	return ResultSuccess
}

// RegisterRemoteAudioFrameCallback installs the remote audio tap; nil
// unregisters.
func RegisterRemoteAudioFrameCallback(h Handle, cb frame.AudioCallback) Result {
	conn, ok := connections.get(h)
	if !ok {
		return ResultNotFound
	}
	conn.RegisterRemoteAudioFrameCallback(cb)
	return ResultSuccess
}
