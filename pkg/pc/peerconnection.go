package pc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"
)

// PeerConnection owns one engine session plus the data channel and track
// registries, drives the offer/answer and ICE exchange, and fans engine
// callbacks out to user callbacks.
//
// Engine callbacks arrive on the engine's signaling thread; application
// calls may come from any goroutine, including from inside an engine
// callback. The locking discipline is acquire, mutate, release, then invoke
// the user callback: no internal lock is ever held while user code runs, so
// re-entrant calls (CreateOffer from a RenegotiationNeeded handler) cannot
// deadlock.
type PeerConnection struct {
	trackedObject
	logger  logr.Logger
	session Session
	closed  atomic.Bool

	// data channel registry
	dcMu                sync.Mutex
	dataChannelsByID    map[int]*DataChannel
	dataChannelsByLabel map[string][]*DataChannel
	sctpNegotiated      bool

	// track registry; the pending flags reserve a kind's slot while its
	// engine AddTrack call is in flight, so concurrent adds cannot both
	// pass the occupancy check
	trackMu         sync.Mutex
	localVideo      *LocalVideoTrack
	localAudio      *LocalAudioTrack
	videoPending    bool
	audioPending    bool
	remoteReceivers map[string]Receiver

	remoteVideo frame.VideoDispatcher
	remoteAudio frame.AudioDispatcher

	stateMu        sync.Mutex
	signalingState SignalingState

	onConnected           callbackSlot[func()]
	onLocalSdpReady       callbackSlot[func(SdpType, string)]
	onICECandidateReady   callbackSlot[func(ICECandidate)]
	onICEStateChanged     callbackSlot[func(ICEConnectionState)]
	onICEGatheringChanged callbackSlot[func(ICEGatheringState)]
	onRenegotiationNeeded callbackSlot[func()]
	onTrackAdded          callbackSlot[func(MediaKind)]
	onTrackRemoved        callbackSlot[func(MediaKind)]
	onDataChannelAdded    callbackSlot[func(*DataChannel)]
	onDataChannelRemoved  callbackSlot[func(*DataChannel)]
}

// NewPeerConnection creates a connection backed by one engine session,
// lazily bootstrapping the engine if this is the first live object.
func NewPeerConnection(cfg ConnectionConfig) (*PeerConnection, error) {
	cfg = cfg.withDefaults()
	factory := InstancePtr()

	pc := &PeerConnection{
		trackedObject:       newTrackedObject(ObjectTypePeerConnection, factory),
		dataChannelsByID:    make(map[int]*DataChannel),
		dataChannelsByLabel: make(map[string][]*DataChannel),
		remoteReceivers:     make(map[string]Receiver),
		signalingState:      SignalingStateStable,
	}
	pc.logger = NewLogger("PeerConnection").WithValues("id", pc.ObjectID())

	if err := factory.AddObject(pc); err != nil {
		return nil, err
	}
	engine, err := factory.engineRef()
	if err != nil {
		factory.RemoveObject(pc)
		return nil, err
	}
	session, err := engine.CreateSession(cfg, &sessionObserver{pc: pc})
	if err != nil {
		factory.RemoveObject(pc)
		return nil, fmt.Errorf("%w: %s", ErrUnknown, err)
	}
	pc.session = session

	pc.logger.V(1).Info("created", "engine", engine.Name(), "sdpSemantic", cfg.SdpSemantic.String())
	return pc, nil
}

// IsClosed reports whether Close has run.
func (pc *PeerConnection) IsClosed() bool {
	return pc.closed.Load()
}

// SignalingState returns the engine-observed signaling state.
func (pc *PeerConnection) SignalingState() SignalingState {
	pc.stateMu.Lock()
	defer pc.stateMu.Unlock()
	return pc.signalingState
}

// CreateOffer asks the engine to produce an offer. On success the
// description is applied locally and LocalSdpReady fires exactly once; an
// engine-side failure is logged and produces no callback.
func (pc *PeerConnection) CreateOffer() error {
	if pc.closed.Load() {
		return ErrPeerConnectionClosed
	}
	if err := pc.session.CreateOffer(pc.applyLocalDescription, pc.logDescriptionFailure("create offer")); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknown, err)
	}
	return nil
}

// CreateAnswer behaves like CreateOffer for answers. The remote offer must
// have been applied first; the engine rejects the call otherwise.
func (pc *PeerConnection) CreateAnswer() error {
	if pc.closed.Load() {
		return ErrPeerConnectionClosed
	}
	if err := pc.session.CreateAnswer(pc.applyLocalDescription, pc.logDescriptionFailure("create answer")); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknown, err)
	}
	return nil
}

// applyLocalDescription chains a freshly created description into
// SetLocalDescription; its completion fires the user's LocalSdpReady.
func (pc *PeerConnection) applyLocalDescription(desc SessionDescription) {
	if pc.closed.Load() {
		return
	}
	err := pc.session.SetLocalDescription(desc, func(applyErr error) {
		if applyErr != nil {
			// Asynchronous engine failures are logged, never surfaced.
			pc.logger.Error(applyErr, "set local description")
			return
		}
		if cb, ok := pc.onLocalSdpReady.load(); ok {
			cb(desc.Type, desc.Sdp)
		}
	})
	if err != nil {
		pc.logger.Error(err, "set local description")
	}
}

func (pc *PeerConnection) logDescriptionFailure(op string) func(error) {
	return func(err error) {
		// Logged only: the application sees no callback and must apply its
		// own timeout.
		pc.logger.Error(err, op)
	}
}

// SetRemoteDescriptionAsync parses and applies the remote peer's
// description. onApplied fires once the engine has finished applying it.
// When no data channel exists yet, the SCTP handshake must be re-proven by
// the upcoming round, so sctp_negotiated resets to false.
func (pc *PeerConnection) SetRemoteDescriptionAsync(sdpType, sdp string, onApplied func()) error {
	if pc.closed.Load() {
		return ErrPeerConnectionClosed
	}
	parsed, err := ParseSdpType(sdpType)
	if err != nil {
		return fmt.Errorf("%w: unrecognized sdp type %q", ErrInvalidParameter, sdpType)
	}
	if sdp == "" {
		return fmt.Errorf("%w: empty sdp", ErrInvalidParameter)
	}

	pc.dcMu.Lock()
	if len(pc.dataChannelsByID) == 0 && len(pc.dataChannelsByLabel) == 0 {
		pc.sctpNegotiated = false
	}
	pc.dcMu.Unlock()

	desc := SessionDescription{Type: parsed, Sdp: sdp}
	err = pc.session.SetRemoteDescription(desc, func(applyErr error) {
		if applyErr != nil {
			pc.logger.Error(applyErr, "set remote description")
			return
		}
		if onApplied != nil {
			onApplied()
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	return nil
}

// AddICECandidate parses and forwards one remote candidate.
func (pc *PeerConnection) AddICECandidate(sdpMid string, sdpMLineIndex int, candidate string) error {
	if pc.closed.Load() {
		return ErrPeerConnectionClosed
	}
	if candidate == "" {
		return fmt.Errorf("%w: empty candidate", ErrInvalidParameter)
	}
	err := pc.session.AddICECandidate(ICECandidate{
		SdpMid:        sdpMid,
		SdpMLineIndex: sdpMLineIndex,
		Candidate:     candidate,
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	return nil
}

// GetStats returns a snapshot of engine-side counters.
func (pc *PeerConnection) GetStats() (SessionStats, error) {
	if pc.closed.Load() {
		return SessionStats{}, ErrPeerConnectionClosed
	}
	return pc.session.GetStats()
}

// Close tears down the connection: local tracks are removed, remote sinks
// detached, data channels removed (firing DataChannelRemoved for each), and
// the engine session released. A second call is a no-op. Close does not
// cancel in-flight description operations; callers must not use the
// connection afterwards.
func (pc *PeerConnection) Close() error {
	if !pc.closed.CompareAndSwap(false, true) {
		return nil
	}
	pc.logger.V(1).Info("closing")

	_ = pc.RemoveLocalVideoTrack()
	_ = pc.RemoveLocalAudioTrack()

	pc.trackMu.Lock()
	receivers := make([]Receiver, 0, len(pc.remoteReceivers))
	for _, r := range pc.remoteReceivers {
		receivers = append(receivers, r)
	}
	pc.remoteReceivers = make(map[string]Receiver)
	pc.trackMu.Unlock()
	for _, r := range receivers {
		switch r.Kind() {
		case MediaKindVideo:
			_ = r.SetVideoSink(nil)
		case MediaKindAudio:
			_ = r.SetAudioSink(nil)
		}
	}

	pc.RemoveAllDataChannels()

	if err := pc.session.Close(); err != nil {
		pc.logger.Error(err, "session close")
	}

	pc.stateMu.Lock()
	pc.signalingState = SignalingStateClosed
	pc.stateMu.Unlock()

	pc.factory.RemoveObject(pc)
	return nil
}

// RegisterConnectedCallback installs cb; nil unregisters. Connected fires
// exactly once per transition into Stable that completes an offer/answer
// round.
func (pc *PeerConnection) RegisterConnectedCallback(cb func()) {
	pc.onConnected.register(cb, cb != nil)
}

// RegisterLocalSdpReadyCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterLocalSdpReadyCallback(cb func(SdpType, string)) {
	pc.onLocalSdpReady.register(cb, cb != nil)
}

// RegisterICECandidateReadyCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterICECandidateReadyCallback(cb func(ICECandidate)) {
	pc.onICECandidateReady.register(cb, cb != nil)
}

// RegisterICEStateChangedCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterICEStateChangedCallback(cb func(ICEConnectionState)) {
	pc.onICEStateChanged.register(cb, cb != nil)
}

// RegisterICEGatheringStateChangedCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterICEGatheringStateChangedCallback(cb func(ICEGatheringState)) {
	pc.onICEGatheringChanged.register(cb, cb != nil)
}

// RegisterRenegotiationNeededCallback installs cb; nil unregisters. The
// handler runs on the engine's signaling thread and may re-enter the API.
func (pc *PeerConnection) RegisterRenegotiationNeededCallback(cb func()) {
	pc.onRenegotiationNeeded.register(cb, cb != nil)
}

// RegisterTrackAddedCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterTrackAddedCallback(cb func(MediaKind)) {
	pc.onTrackAdded.register(cb, cb != nil)
}

// RegisterTrackRemovedCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterTrackRemovedCallback(cb func(MediaKind)) {
	pc.onTrackRemoved.register(cb, cb != nil)
}

// RegisterDataChannelAddedCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterDataChannelAddedCallback(cb func(*DataChannel)) {
	pc.onDataChannelAdded.register(cb, cb != nil)
}

// RegisterDataChannelRemovedCallback installs cb; nil unregisters.
func (pc *PeerConnection) RegisterDataChannelRemovedCallback(cb func(*DataChannel)) {
	pc.onDataChannelRemoved.register(cb, cb != nil)
}

// sessionObserver adapts engine events onto the connection. All methods run
// on the engine's signaling thread.
type sessionObserver struct {
	pc *PeerConnection
}

func (o *sessionObserver) OnSignalingChange(state SignalingState) {
	pc := o.pc
	if pc.closed.Load() {
		return
	}
	pc.stateMu.Lock()
	previous := pc.signalingState
	pc.signalingState = state
	pc.stateMu.Unlock()

	pc.logger.V(1).Info("signaling state", "from", previous.String(), "to", state.String())

	if state != SignalingStateStable {
		return
	}
	switch previous {
	case SignalingStateHaveLocalOffer, SignalingStateHaveRemoteOffer,
		SignalingStateHaveLocalPrAnswer, SignalingStateHaveRemotePrAnswer:
		// Entering Stable from an offer/answer state completes a round.
		if cb, ok := pc.onConnected.load(); ok {
			cb()
		}
	}
}

func (o *sessionObserver) OnICEConnectionChange(state ICEConnectionState) {
	if o.pc.closed.Load() {
		return
	}
	if cb, ok := o.pc.onICEStateChanged.load(); ok {
		cb(state)
	}
}

func (o *sessionObserver) OnICEGatheringChange(state ICEGatheringState) {
	if o.pc.closed.Load() {
		return
	}
	if cb, ok := o.pc.onICEGatheringChanged.load(); ok {
		cb(state)
	}
}

func (o *sessionObserver) OnICECandidate(candidate ICECandidate) {
	if o.pc.closed.Load() {
		return
	}
	if cb, ok := o.pc.onICECandidateReady.load(); ok {
		cb(candidate)
	}
}

func (o *sessionObserver) OnRenegotiationNeeded() {
	if o.pc.closed.Load() {
		return
	}
	if cb, ok := o.pc.onRenegotiationNeeded.load(); ok {
		cb()
	}
}

func (o *sessionObserver) OnDataChannel(inner EngineDataChannel) {
	o.pc.onEngineDataChannel(inner)
}

func (o *sessionObserver) OnAddTrack(receiver Receiver) {
	o.pc.onEngineAddTrack(receiver)
}

func (o *sessionObserver) OnRemoveTrack(receiver Receiver) {
	o.pc.onEngineRemoveTrack(receiver)
}
