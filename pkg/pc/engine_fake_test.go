package pc

import (
	"errors"
	"sync"
	"testing"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"
)

// fakeEngine is an in-process engine backend. Events are delivered by the
// test calling the session observer directly, which exercises the same
// code paths as the native signaling thread.
type fakeEngine struct {
	mu       sync.Mutex
	closed   bool
	sessions []*fakeSession
	sources  []*fakeVideoSource
	devices  []VideoCaptureDevice

	failCreateSession bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		devices: []VideoCaptureDevice{{ID: "cam0", Name: "Fake Camera"}},
	}
}

func (e *fakeEngine) engineFactory() EngineFactory {
	return func() (Engine, error) { return e, nil }
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) CreateSession(cfg ConnectionConfig, observer SessionObserver) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failCreateSession {
		return nil, errors.New("session refused")
	}
	s := &fakeSession{engine: e, observer: observer, cfg: cfg}
	e.sessions = append(e.sessions, s)
	return s, nil
}

func (e *fakeEngine) CreateVideoSource() (VideoSource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src := &fakeVideoSource{}
	e.sources = append(e.sources, src)
	return src, nil
}

func (e *fakeEngine) VideoCaptureDevices() ([]VideoCaptureDevice, error) {
	return e.devices, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// fakeSession answers create/apply operations synchronously with canned
// descriptions and records every call for assertions.
type fakeSession struct {
	engine   *fakeEngine
	observer SessionObserver
	cfg      ConnectionConfig

	mu              sync.Mutex
	offers          int
	answers         int
	localDescs      []SessionDescription
	remoteDescs     []SessionDescription
	candidates      []ICECandidate
	senders         []*fakeSender
	removedSenders  []Sender
	channels        []*fakeEngineDataChannel
	stats           SessionStats
	closed          bool
	nextChannelFail error
	createOfferErr  error
}

func (s *fakeSession) CreateOffer(created func(SessionDescription), failed func(error)) error {
	s.mu.Lock()
	s.offers++
	err := s.createOfferErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	created(SessionDescription{Type: SdpTypeOffer, Sdp: "v=0\r\nfake offer"})
	return nil
}

func (s *fakeSession) CreateAnswer(created func(SessionDescription), failed func(error)) error {
	s.mu.Lock()
	s.answers++
	s.mu.Unlock()
	created(SessionDescription{Type: SdpTypeAnswer, Sdp: "v=0\r\nfake answer"})
	return nil
}

func (s *fakeSession) SetLocalDescription(desc SessionDescription, done func(error)) error {
	s.mu.Lock()
	s.localDescs = append(s.localDescs, desc)
	s.mu.Unlock()
	done(nil)
	return nil
}

func (s *fakeSession) SetRemoteDescription(desc SessionDescription, done func(error)) error {
	s.mu.Lock()
	s.remoteDescs = append(s.remoteDescs, desc)
	s.mu.Unlock()
	done(nil)
	return nil
}

func (s *fakeSession) AddICECandidate(candidate ICECandidate) error {
	s.mu.Lock()
	s.candidates = append(s.candidates, candidate)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) AddTrack(kind MediaKind, trackID string, source VideoSource) (Sender, error) {
	sender := &fakeSender{kind: kind, trackID: trackID, source: source, enabled: true}
	s.mu.Lock()
	s.senders = append(s.senders, sender)
	s.mu.Unlock()
	return sender, nil
}

func (s *fakeSession) RemoveTrack(sender Sender) error {
	s.mu.Lock()
	s.removedSenders = append(s.removedSenders, sender)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) CreateDataChannel(init DataChannelInit) (EngineDataChannel, error) {
	s.mu.Lock()
	if err := s.nextChannelFail; err != nil {
		s.nextChannelFail = nil
		s.mu.Unlock()
		return nil, err
	}
	dc := &fakeEngineDataChannel{
		id:       init.ID,
		label:    init.Label,
		ordered:  init.Ordered,
		reliable: init.Reliable,
		state:    DataChannelStateConnecting,
	}
	s.channels = append(s.channels, dc)
	s.mu.Unlock()
	return dc, nil
}

func (s *fakeSession) GetStats() (SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) offerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offers
}

func (s *fakeSession) lastChannel() *fakeEngineDataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.channels) == 0 {
		return nil
	}
	return s.channels[len(s.channels)-1]
}

// fakeEngineDataChannel records sends and lets tests drive state and
// message events through the attached observer.
type fakeEngineDataChannel struct {
	mu       sync.Mutex
	id       int
	label    string
	ordered  bool
	reliable bool
	state    DataChannelState
	buffered uint64
	sent     [][]byte
	observer DataChannelObserver
	closed   bool
	sendErr  error
}

func (d *fakeEngineDataChannel) ID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

func (d *fakeEngineDataChannel) Label() string { return d.label }

func (d *fakeEngineDataChannel) State() DataChannelState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeEngineDataChannel) BufferedAmount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffered
}

func (d *fakeEngineDataChannel) Send(payload []byte, binary bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, payload)
	return nil
}

func (d *fakeEngineDataChannel) SetObserver(obs DataChannelObserver) {
	d.mu.Lock()
	d.observer = obs
	d.mu.Unlock()
}

func (d *fakeEngineDataChannel) Close() error {
	d.mu.Lock()
	d.closed = true
	d.state = DataChannelStateClosed
	d.mu.Unlock()
	return nil
}

func (d *fakeEngineDataChannel) currentObserver() DataChannelObserver {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observer
}

// open simulates the engine completing in-band negotiation: the id is
// assigned and the observer notified.
func (d *fakeEngineDataChannel) open(assignedID int) {
	d.mu.Lock()
	d.id = assignedID
	d.state = DataChannelStateOpen
	obs := d.observer
	d.mu.Unlock()
	if obs != nil {
		obs.OnStateChange(DataChannelStateOpen)
	}
}

func (d *fakeEngineDataChannel) deliver(payload []byte) {
	if obs := d.currentObserver(); obs != nil {
		obs.OnMessage(payload, true)
	}
}

func (d *fakeEngineDataChannel) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeSender struct {
	mu      sync.Mutex
	kind    MediaKind
	trackID string
	source  VideoSource
	enabled bool
}

func (s *fakeSender) TrackID() string { return s.trackID }
func (s *fakeSender) Kind() MediaKind { return s.kind }

func (s *fakeSender) SetEnabled(enabled bool) error {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

type fakeReceiver struct {
	mu        sync.Mutex
	kind      MediaKind
	trackID   string
	videoSink frame.VideoSink
	audioSink frame.AudioSink
}

func (r *fakeReceiver) TrackID() string { return r.trackID }
func (r *fakeReceiver) Kind() MediaKind { return r.kind }

func (r *fakeReceiver) SetVideoSink(sink frame.VideoSink) error {
	r.mu.Lock()
	r.videoSink = sink
	r.mu.Unlock()
	return nil
}

func (r *fakeReceiver) SetAudioSink(sink frame.AudioSink) error {
	r.mu.Lock()
	r.audioSink = sink
	r.mu.Unlock()
	return nil
}

func (r *fakeReceiver) currentVideoSink() frame.VideoSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videoSink
}

type fakeVideoSource struct {
	mu     sync.Mutex
	frames int
	closed bool
}

func (v *fakeVideoSource) PushFrame(f *frame.VideoFrame) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrInvalidOperation
	}
	v.frames++
	return nil
}

func (v *fakeVideoSource) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

func (v *fakeVideoSource) frameCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// installFakeEngine resets the global factory state and wires e in for the
// duration of the test.
func installFakeEngine(t *testing.T, e *fakeEngine) {
	t.Helper()
	resetGlobalFactory()
	SetEngineFactory(e.engineFactory())
	t.Cleanup(resetGlobalFactory)
}

func resetGlobalFactory() {
	instanceMu.Lock()
	instance = nil
	instanceMu.Unlock()
	SetEngineFactory(nil)
}

// sessionOf digs the fake session out of a connection.
func sessionOf(t *testing.T, p *PeerConnection) *fakeSession {
	t.Helper()
	s, ok := p.session.(*fakeSession)
	if !ok {
		t.Fatalf("connection session is %T, want *fakeSession", p.session)
	}
	return s
}

// observerOf returns the connection's engine-facing observer.
func observerOf(t *testing.T, p *PeerConnection) SessionObserver {
	t.Helper()
	return sessionOf(t, p).observer
}

// negotiateSctp simulates the remote peer announcing a channel, which
// proves SCTP and unlocks AddDataChannel. It returns the announced
// engine channel.
func negotiateSctp(t *testing.T, p *PeerConnection) *fakeEngineDataChannel {
	t.Helper()
	remote := &fakeEngineDataChannel{id: 0, label: "bootstrap", state: DataChannelStateOpen}
	observerOf(t, p).OnDataChannel(remote)
	if !p.SctpNegotiated() {
		t.Fatalf("sctp not negotiated after remote channel")
	}
	return remote
}
