package pionengine

import (
	"sync"
	"testing"
	"time"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// testObserver implements pc.SessionObserver with optional hooks.
type testObserver struct {
	onCandidate   func(pc.ICECandidate)
	onDataChannel func(pc.EngineDataChannel)
}

func (o *testObserver) OnSignalingChange(pc.SignalingState) {}

func (o *testObserver) OnICEConnectionChange(pc.ICEConnectionState) {}

func (o *testObserver) OnICEGatheringChange(pc.ICEGatheringState) {}

func (o *testObserver) OnRenegotiationNeeded() {}

func (o *testObserver) OnAddTrack(pc.Receiver) {}

func (o *testObserver) OnRemoveTrack(pc.Receiver) {}

func (o *testObserver) OnICECandidate(c pc.ICECandidate) {
	if o.onCandidate != nil {
		o.onCandidate(c)
	}
}

func (o *testObserver) OnDataChannel(dc pc.EngineDataChannel) {
	if o.onDataChannel != nil {
		o.onDataChannel(dc)
	}
}

// candidateRelay buffers trickled candidates until the receiving side has
// applied its remote description.
type candidateRelay struct {
	mu      sync.Mutex
	ready   bool
	pending []pc.ICECandidate
	apply   func(pc.ICECandidate) error
}

func (r *candidateRelay) add(c pc.ICECandidate) {
	r.mu.Lock()
	if !r.ready {
		r.pending = append(r.pending, c)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	_ = r.apply(c)
}

func (r *candidateRelay) release() {
	r.mu.Lock()
	r.ready = true
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, c := range pending {
		_ = r.apply(c)
	}
}

// dcObserver implements pc.DataChannelObserver with optional hooks.
type dcObserver struct {
	onState   func(pc.DataChannelState)
	onMessage func(payload []byte, binary bool)
}

func (o *dcObserver) OnStateChange(s pc.DataChannelState) {
	if o.onState != nil {
		o.onState(s)
	}
}

func (o *dcObserver) OnMessage(payload []byte, binary bool) {
	if o.onMessage != nil {
		o.onMessage(payload, binary)
	}
}

func (o *dcObserver) OnBufferedAmountChange(uint64) {}

func await[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(30 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestSessions_DataChannelRoundTrip(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Close()

	obsA := &testObserver{}
	obsB := &testObserver{}

	rawA, err := engine.CreateSession(pc.ConnectionConfig{}, obsA)
	if err != nil {
		t.Fatalf("CreateSession A: %v", err)
	}
	defer rawA.Close()
	rawB, err := engine.CreateSession(pc.ConnectionConfig{}, obsB)
	if err != nil {
		t.Fatalf("CreateSession B: %v", err)
	}
	defer rawB.Close()

	relayToB := &candidateRelay{apply: rawB.AddICECandidate}
	relayToA := &candidateRelay{apply: rawA.AddICECandidate}
	obsA.onCandidate = relayToB.add
	obsB.onCandidate = relayToA.add

	// B side: accept the channel and echo the first message back.
	remoteCh := make(chan pc.EngineDataChannel, 1)
	obsB.onDataChannel = func(dc pc.EngineDataChannel) {
		dc.SetObserver(&dcObserver{
			onMessage: func(payload []byte, binary bool) {
				_ = dc.Send(payload, binary)
			},
		})
		remoteCh <- dc
	}

	// A side: open the channel, ping on open, collect the echo.
	dcA, err := rawA.CreateDataChannel(pc.DataChannelInit{ID: -1, Label: "chat", Ordered: true, Reliable: true})
	if err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}
	echoCh := make(chan string, 1)
	dcA.SetObserver(&dcObserver{
		onState: func(s pc.DataChannelState) {
			if s == pc.DataChannelStateOpen {
				_ = dcA.Send([]byte("ping"), true)
			}
		},
		onMessage: func(payload []byte, binary bool) {
			echoCh <- string(payload)
		},
	})

	// Offer/answer exchange.
	offerCh := make(chan pc.SessionDescription, 1)
	failCh := make(chan error, 4)
	if err := rawA.CreateOffer(func(d pc.SessionDescription) { offerCh <- d }, func(e error) { failCh <- e }); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	offer := await(t, offerCh, "offer")

	appliedCh := make(chan error, 1)
	if err := rawA.SetLocalDescription(offer, func(e error) { appliedCh <- e }); err != nil {
		t.Fatalf("SetLocalDescription A: %v", err)
	}
	if e := await(t, appliedCh, "local offer applied"); e != nil {
		t.Fatalf("apply local offer: %v", e)
	}

	if err := rawB.SetRemoteDescription(offer, func(e error) { appliedCh <- e }); err != nil {
		t.Fatalf("SetRemoteDescription B: %v", err)
	}
	if e := await(t, appliedCh, "remote offer applied"); e != nil {
		t.Fatalf("apply remote offer: %v", e)
	}
	relayToB.release()

	answerCh := make(chan pc.SessionDescription, 1)
	if err := rawB.CreateAnswer(func(d pc.SessionDescription) { answerCh <- d }, func(e error) { failCh <- e }); err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	answer := await(t, answerCh, "answer")

	if err := rawB.SetLocalDescription(answer, func(e error) { appliedCh <- e }); err != nil {
		t.Fatalf("SetLocalDescription B: %v", err)
	}
	if e := await(t, appliedCh, "local answer applied"); e != nil {
		t.Fatalf("apply local answer: %v", e)
	}

	if err := rawA.SetRemoteDescription(answer, func(e error) { appliedCh <- e }); err != nil {
		t.Fatalf("SetRemoteDescription A: %v", err)
	}
	if e := await(t, appliedCh, "remote answer applied"); e != nil {
		t.Fatalf("apply remote answer: %v", e)
	}
	relayToA.release()

	// The echo proves channel open, message delivery and the return path.
	if got := await(t, echoCh, "echo"); got != "ping" {
		t.Errorf("echo = %q, want %q", got, "ping")
	}
	remote := await(t, remoteCh, "remote channel")
	if remote.Label() != "chat" {
		t.Errorf("remote label = %q, want chat", remote.Label())
	}

	select {
	case e := <-failCh:
		t.Fatalf("description failure: %v", e)
	default:
	}

	statsA, err := rawA.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if statsA.DataMessagesSent < 1 || statsA.DataBytesSent < 4 {
		t.Errorf("sender stats = %+v", statsA)
	}
	statsB, err := rawB.GetStats()
	if err != nil {
		t.Fatalf("GetStats B: %v", err)
	}
	if statsB.DataMessagesReceived < 1 {
		t.Errorf("receiver stats = %+v", statsB)
	}
}
