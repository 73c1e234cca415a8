package api

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// stubEngine is a minimal engine backend for exercising the flat surface
// without the native library.
type stubEngine struct {
	mu       sync.Mutex
	sessions []*stubSession
}

func installStubEngine(t *testing.T) *stubEngine {
	t.Helper()
	e := &stubEngine{}
	pc.SetEngineFactory(func() (pc.Engine, error) { return e, nil })
	return e
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) CreateSession(cfg pc.ConnectionConfig, observer pc.SessionObserver) (pc.Session, error) {
	s := &stubSession{observer: observer}
	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

func (e *stubEngine) CreateVideoSource() (pc.VideoSource, error) {
	return &stubVideoSource{}, nil
}

func (e *stubEngine) VideoCaptureDevices() ([]pc.VideoCaptureDevice, error) {
	return []pc.VideoCaptureDevice{{ID: "stub0", Name: "Stub Camera"}}, nil
}

func (e *stubEngine) Close() error { return nil }

func (e *stubEngine) lastSession() *stubSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}

type stubSession struct {
	observer pc.SessionObserver
}

func (s *stubSession) CreateOffer(created func(pc.SessionDescription), failed func(error)) error {
	created(pc.SessionDescription{Type: pc.SdpTypeOffer, Sdp: "v=0\r\nstub"})
	return nil
}

func (s *stubSession) CreateAnswer(created func(pc.SessionDescription), failed func(error)) error {
	created(pc.SessionDescription{Type: pc.SdpTypeAnswer, Sdp: "v=0\r\nstub"})
	return nil
}

func (s *stubSession) SetLocalDescription(desc pc.SessionDescription, done func(error)) error {
	done(nil)
	return nil
}

func (s *stubSession) SetRemoteDescription(desc pc.SessionDescription, done func(error)) error {
	done(nil)
	return nil
}

func (s *stubSession) AddICECandidate(pc.ICECandidate) error { return nil }

func (s *stubSession) AddTrack(kind pc.MediaKind, trackID string, source pc.VideoSource) (pc.Sender, error) {
	return &stubSender{kind: kind, trackID: trackID}, nil
}

func (s *stubSession) RemoveTrack(pc.Sender) error { return nil }

func (s *stubSession) CreateDataChannel(init pc.DataChannelInit) (pc.EngineDataChannel, error) {
	return &stubDataChannel{id: init.ID, label: init.Label}, nil
}

func (s *stubSession) GetStats() (pc.SessionStats, error) { return pc.SessionStats{}, nil }

func (s *stubSession) Close() error { return nil }

type stubSender struct {
	kind    pc.MediaKind
	trackID string
}

func (s *stubSender) TrackID() string { return s.trackID }

func (s *stubSender) Kind() pc.MediaKind { return s.kind }

func (s *stubSender) SetEnabled(bool) error { return nil }

type stubDataChannel struct {
	mu       sync.Mutex
	id       int
	label    string
	observer pc.DataChannelObserver
	sent     int
}

func (d *stubDataChannel) ID() int { return d.id }

func (d *stubDataChannel) Label() string { return d.label }

func (d *stubDataChannel) State() pc.DataChannelState { return pc.DataChannelStateOpen }

func (d *stubDataChannel) BufferedAmount() uint64 { return 0 }

func (d *stubDataChannel) Send(payload []byte, binary bool) error {
	d.mu.Lock()
	d.sent++
	d.mu.Unlock()
	return nil
}

func (d *stubDataChannel) SetObserver(obs pc.DataChannelObserver) {
	d.mu.Lock()
	d.observer = obs
	d.mu.Unlock()
}

func (d *stubDataChannel) Close() error { return nil }

type stubVideoSource struct{}

func (*stubVideoSource) PushFrame(*frame.VideoFrame) error { return nil }

func (*stubVideoSource) Close() error { return nil }

func TestResult_String(t *testing.T) {
	assert.Equal(t, "success", ResultSuccess.String())
	assert.Equal(t, "sctp-not-negotiated", ResultSctpNotNegotiated.String())
	assert.Equal(t, "peer-connection-closed", ResultPeerConnectionClosed.String())
	assert.Equal(t, "unknown", Result(1234).String())
}

func TestConnectionLifecycle(t *testing.T) {
	installStubEngine(t)

	h, res := CreateConnection(pc.ConnectionConfig{})
	require.Equal(t, ResultSuccess, res)
	require.NotZero(t, h)

	assert.False(t, IsClosed(h))
	assert.Equal(t, ResultSuccess, CreateOffer(h))

	assert.Equal(t, ResultSuccess, CloseConnection(h))
	assert.True(t, IsClosed(h), "stale handle should read as closed")
	assert.Equal(t, ResultNotFound, CloseConnection(h))
	assert.Equal(t, ResultNotFound, CreateOffer(h))
}

func TestSetRemoteDescription_ResultMapping(t *testing.T) {
	installStubEngine(t)

	h, res := CreateConnection(pc.ConnectionConfig{})
	require.Equal(t, ResultSuccess, res)
	defer CloseConnection(h)

	assert.Equal(t, ResultInvalidParameter, SetRemoteDescription(h, "bogus", "v=0", nil))
	assert.Equal(t, ResultInvalidParameter, SetRemoteDescription(h, "offer", "", nil))

	applied := false
	assert.Equal(t, ResultSuccess, SetRemoteDescription(h, "offer", "v=0\r\nremote", func() { applied = true }))
	assert.True(t, applied)

	assert.Equal(t, ResultNotFound, SetRemoteDescription(8888, "offer", "v=0", nil))
}

func TestDataChannelSurface(t *testing.T) {
	engine := installStubEngine(t)

	h, res := CreateConnection(pc.ConnectionConfig{})
	require.Equal(t, ResultSuccess, res)
	defer CloseConnection(h)

	// The sctp gate crosses the boundary as a result code.
	_, res = AddDataChannel(h, 1, "early", true, true)
	assert.Equal(t, ResultSctpNotNegotiated, res)
	_, res = AddDataChannel(h, 70000, "big", true, true)
	assert.Equal(t, ResultOutOfRange, res)

	// Remote-announced channel proves the handshake.
	sess := engine.lastSession()
	require.NotNil(t, sess)
	sess.observer.OnDataChannel(&stubDataChannel{id: 0, label: "bootstrap"})

	dcHandle, res := AddDataChannel(h, 1, "chat", true, true)
	require.Equal(t, ResultSuccess, res)

	assert.Equal(t, ResultSuccess, RegisterDataChannelMessageCallback(dcHandle, func([]byte) {}))
	assert.Equal(t, ResultSuccess, SendDataChannelMessage(h, 1, []byte("hi")))
	assert.Equal(t, ResultNotFound, SendDataChannelMessage(h, 42, []byte("hi")))

	assert.Equal(t, ResultSuccess, RemoveDataChannel(h, dcHandle))
	assert.Equal(t, ResultNotFound, RemoveDataChannel(h, dcHandle))
	assert.Equal(t, ResultNotFound, RegisterDataChannelMessageCallback(dcHandle, nil))
}

func TestCloseConnection_EvictsOwnedChannelHandles(t *testing.T) {
	engine := installStubEngine(t)

	h, res := CreateConnection(pc.ConnectionConfig{})
	require.Equal(t, ResultSuccess, res)

	engine.lastSession().observer.OnDataChannel(&stubDataChannel{id: 0, label: "bootstrap"})
	dcHandle, res := AddDataChannel(h, 2, "owned", true, true)
	require.Equal(t, ResultSuccess, res)

	require.Equal(t, ResultSuccess, CloseConnection(h))
	assert.Equal(t, ResultNotFound, RegisterDataChannelMessageCallback(dcHandle, nil),
		"channel handle survived its connection")
}

func TestVideoSourceSurface(t *testing.T) {
	installStubEngine(t)

	sh, res := CreateExternalVideoSource()
	require.Equal(t, ResultSuccess, res)

	f := &frame.VideoFrame{
		Width:  16,
		Height: 16,
		Format: frame.PixelFormatI420,
		Data:   [][]byte{make([]byte, 256), make([]byte, 64), make([]byte, 64)},
		Stride: []int{16, 8, 8},
	}
	assert.Equal(t, ResultSuccess, RegisterLocalFrameCallback(sh, func(*frame.VideoFrame) {}))
	assert.Equal(t, ResultSuccess, PushVideoFrame(sh, f))

	f.Stride[0] = 1
	assert.Equal(t, ResultInvalidParameter, PushVideoFrame(sh, f))

	assert.Equal(t, ResultSuccess, DestroyExternalVideoSource(sh))
	assert.Equal(t, ResultNotFound, DestroyExternalVideoSource(sh))
	assert.Equal(t, ResultNotFound, PushVideoFrame(sh, f))
}

func TestTrackSurface(t *testing.T) {
	installStubEngine(t)

	h, res := CreateConnection(pc.ConnectionConfig{})
	require.Equal(t, ResultSuccess, res)
	defer CloseConnection(h)

	sh, res := CreateExternalVideoSource()
	require.Equal(t, ResultSuccess, res)
	defer DestroyExternalVideoSource(sh)

	assert.Equal(t, ResultSuccess, AddLocalVideoTrack(h, sh))
	assert.Equal(t, ResultInvalidOperation, AddLocalVideoTrack(h, sh))
	assert.Equal(t, ResultSuccess, RemoveLocalVideoTrack(h))

	assert.Equal(t, ResultNotFound, AddLocalVideoTrack(h, 9999))

	assert.Equal(t, ResultSuccess, AddLocalAudioTrack(h))
	assert.Equal(t, ResultSuccess, RemoveLocalAudioTrack(h))
}

func TestCaptureDeviceSurface(t *testing.T) {
	installStubEngine(t)

	// Enumeration needs a live engine, which needs a tracked object.
	h, res := CreateConnection(pc.ConnectionConfig{})
	require.Equal(t, ResultSuccess, res)
	defer CloseConnection(h)

	devices, res := GetVideoCaptureDevices()
	require.Equal(t, ResultSuccess, res)
	require.Len(t, devices, 1)
	assert.Equal(t, "stub0", devices[0].ID)
}

func TestCallbackRegistration_StaleHandle(t *testing.T) {
	installStubEngine(t)

	h, res := CreateConnection(pc.ConnectionConfig{})
	require.Equal(t, ResultSuccess, res)
	CloseConnection(h)

	assert.Equal(t, ResultNotFound, RegisterConnectedCallback(h, func() {}))
	assert.Equal(t, ResultNotFound, RegisterLocalSdpReadyCallback(h, nil))
	assert.Equal(t, ResultNotFound, RegisterRemoteVideoFrameCallback(h, nil))
}
