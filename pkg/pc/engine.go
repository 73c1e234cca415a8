package pc

import "github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"

// SignalingState mirrors the engine's signaling state machine one-to-one.
// The core never computes SDP semantics itself, it only observes
// OnSignalingChange.
type SignalingState int

const (
	SignalingStateStable SignalingState = iota
	SignalingStateHaveLocalOffer
	SignalingStateHaveLocalPrAnswer
	SignalingStateHaveRemoteOffer
	SignalingStateHaveRemotePrAnswer
	SignalingStateClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStateStable:
		return "stable"
	case SignalingStateHaveLocalOffer:
		return "have-local-offer"
	case SignalingStateHaveLocalPrAnswer:
		return "have-local-pranswer"
	case SignalingStateHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingStateHaveRemotePrAnswer:
		return "have-remote-pranswer"
	case SignalingStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ICEConnectionState reports ICE connectivity progress.
type ICEConnectionState int

const (
	ICEConnectionStateNew ICEConnectionState = iota
	ICEConnectionStateChecking
	ICEConnectionStateConnected
	ICEConnectionStateCompleted
	ICEConnectionStateDisconnected
	ICEConnectionStateFailed
	ICEConnectionStateClosed
)

func (s ICEConnectionState) String() string {
	switch s {
	case ICEConnectionStateNew:
		return "new"
	case ICEConnectionStateChecking:
		return "checking"
	case ICEConnectionStateConnected:
		return "connected"
	case ICEConnectionStateCompleted:
		return "completed"
	case ICEConnectionStateDisconnected:
		return "disconnected"
	case ICEConnectionStateFailed:
		return "failed"
	case ICEConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ICEGatheringState reports candidate gathering progress.
type ICEGatheringState int

const (
	ICEGatheringStateNew ICEGatheringState = iota
	ICEGatheringStateGathering
	ICEGatheringStateComplete
)

func (s ICEGatheringState) String() string {
	switch s {
	case ICEGatheringStateNew:
		return "new"
	case ICEGatheringStateGathering:
		return "gathering"
	case ICEGatheringStateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// SdpType is the type of a session description.
type SdpType int

const (
	SdpTypeOffer SdpType = iota
	SdpTypePrAnswer
	SdpTypeAnswer
)

func (t SdpType) String() string {
	switch t {
	case SdpTypeOffer:
		return "offer"
	case SdpTypePrAnswer:
		return "pranswer"
	case SdpTypeAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// ParseSdpType maps the wire spelling of an SDP type to SdpType.
func ParseSdpType(s string) (SdpType, error) {
	switch s {
	case "offer":
		return SdpTypeOffer, nil
	case "pranswer":
		return SdpTypePrAnswer, nil
	case "answer":
		return SdpTypeAnswer, nil
	default:
		return 0, ErrInvalidParameter
	}
}

// SessionDescription is an opaque (type, sdp) pair. The wire syntax belongs
// to the engine; the core never parses the SDP body.
type SessionDescription struct {
	Type SdpType
	Sdp  string
}

// ICECandidate is a single ICE candidate in wire form.
type ICECandidate struct {
	SdpMid        string
	SdpMLineIndex int
	Candidate     string
}

// MediaKind distinguishes audio from video tracks.
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindAudio
	MediaKindVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindAudio:
		return "audio"
	case MediaKindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DataChannelState is the lifecycle state of a data channel.
type DataChannelState int

const (
	DataChannelStateConnecting DataChannelState = iota
	DataChannelStateOpen
	DataChannelStateClosing
	DataChannelStateClosed
)

func (s DataChannelState) String() string {
	switch s {
	case DataChannelStateConnecting:
		return "connecting"
	case DataChannelStateOpen:
		return "open"
	case DataChannelStateClosing:
		return "closing"
	case DataChannelStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DataChannelInit describes a channel to create on the engine. ID -1
// requests in-band negotiation with an engine-assigned id; ids in [0,65535]
// mark the channel as negotiated out-of-band.
type DataChannelInit struct {
	ID       int
	Label    string
	Ordered  bool
	Reliable bool
}

// EngineDataChannel is the engine's side of one data channel. State and
// message callbacks arrive on the engine's signaling thread; SetObserver
// with a nil observer detaches, after which the engine must not call back.
type EngineDataChannel interface {
	ID() int
	Label() string
	State() DataChannelState
	BufferedAmount() uint64
	Send(payload []byte, binary bool) error
	SetObserver(DataChannelObserver)
	Close() error
}

// DataChannelObserver receives engine-side data channel events.
type DataChannelObserver interface {
	OnStateChange(DataChannelState)
	OnMessage(payload []byte, binary bool)
	OnBufferedAmountChange(previous uint64)
}

// Sender is the engine handle for one outbound track.
type Sender interface {
	TrackID() string
	Kind() MediaKind
	SetEnabled(bool) error
}

// Receiver is the engine handle for one inbound track. At most one sink is
// attached at a time; SetVideoSink/SetAudioSink with nil detaches.
type Receiver interface {
	TrackID() string
	Kind() MediaKind
	SetVideoSink(frame.VideoSink) error
	SetAudioSink(frame.AudioSink) error
}

// VideoSource is an engine-side source fed with application frames.
type VideoSource interface {
	PushFrame(*frame.VideoFrame) error
	Close() error
}

// SessionStats is a point-in-time snapshot forwarded from the engine.
type SessionStats struct {
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

// SessionObserver receives engine-originated events. All methods are invoked
// on the engine's signaling thread, serialized per session; implementations
// must not block and must tolerate re-entrant API calls made from within a
// callback.
type SessionObserver interface {
	OnSignalingChange(SignalingState)
	OnICEConnectionChange(ICEConnectionState)
	OnICEGatheringChange(ICEGatheringState)
	OnICECandidate(ICECandidate)
	OnRenegotiationNeeded()
	OnDataChannel(EngineDataChannel)
	OnAddTrack(Receiver)
	OnRemoveTrack(Receiver)
}

// Session is one engine peer connection. Create/apply operations are
// asynchronous: a synchronous error reports a precondition failure, the
// completion funcs fire later on the engine's signaling thread. Failure
// completions carry the engine's opaque error.
type Session interface {
	// CreateOffer asks the engine to produce an offer. The description is
	// delivered to created; engine-side failure goes to failed.
	CreateOffer(created func(SessionDescription), failed func(error)) error

	// CreateAnswer behaves like CreateOffer for answers.
	CreateAnswer(created func(SessionDescription), failed func(error)) error

	// SetLocalDescription applies a locally created description. done
	// receives nil on success or the engine failure.
	SetLocalDescription(desc SessionDescription, done func(error)) error

	// SetRemoteDescription applies the remote peer's description. A parse
	// failure is reported synchronously; apply completion goes to done.
	SetRemoteDescription(desc SessionDescription, done func(error)) error

	AddICECandidate(candidate ICECandidate) error

	AddTrack(kind MediaKind, trackID string, source VideoSource) (Sender, error)
	RemoveTrack(Sender) error

	CreateDataChannel(init DataChannelInit) (EngineDataChannel, error)

	GetStats() (SessionStats, error)

	// Close releases the engine session. It does not cancel in-flight
	// description operations.
	Close() error
}

// Engine is the factory owning the native connection factory and its
// worker/network/signaling threads.
type Engine interface {
	Name() string
	CreateSession(cfg ConnectionConfig, observer SessionObserver) (Session, error)
	CreateVideoSource() (VideoSource, error)
	VideoCaptureDevices() ([]VideoCaptureDevice, error)
	// Close stops the engine threads and blocks until shutdown completes.
	Close() error
}

// VideoCaptureDevice identifies one OS video capture device.
type VideoCaptureDevice struct {
	ID   string
	Name string
}

// EngineFactory constructs the process-wide engine backend on first use.
type EngineFactory func() (Engine, error)
