package pionengine

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// pionDataChannel adapts one pion data channel. The native engine closes a
// channel abruptly when its send buffer overflows; Send enforces the same
// capacity so both backends behave alike.
type pionDataChannel struct {
	dc      *webrtc.DataChannel
	session *session

	mu       sync.Mutex
	observer pc.DataChannelObserver
}

func newDataChannel(dc *webrtc.DataChannel, s *session) *pionDataChannel {
	d := &pionDataChannel{dc: dc, session: s}

	dc.OnOpen(func() {
		s.stats.dataChannelsOpened.Add(1)
		s.dispatch.post(func() {
			d.notifyState(pc.DataChannelStateOpen)
		})
	})
	dc.OnClose(func() {
		s.stats.dataChannelsClosed.Add(1)
		s.dispatch.post(func() {
			d.notifyState(pc.DataChannelStateClosed)
		})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.stats.dataMessagesReceived.Add(1)
		s.stats.dataBytesReceived.Add(int64(len(msg.Data)))
		payload := make([]byte, len(msg.Data))
		copy(payload, msg.Data)
		s.dispatch.post(func() {
			d.notifyMessage(payload, !msg.IsString)
		})
	})
	dc.OnBufferedAmountLow(func() {
		previous := dc.BufferedAmount()
		s.dispatch.post(func() {
			d.notifyBufferedAmount(previous)
		})
	})
	return d
}

func (d *pionDataChannel) currentObserver() pc.DataChannelObserver {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observer
}

func (d *pionDataChannel) notifyState(state pc.DataChannelState) {
	if obs := d.currentObserver(); obs != nil {
		obs.OnStateChange(state)
	}
}

func (d *pionDataChannel) notifyMessage(payload []byte, binary bool) {
	if obs := d.currentObserver(); obs != nil {
		obs.OnMessage(payload, binary)
	}
}

func (d *pionDataChannel) notifyBufferedAmount(previous uint64) {
	if obs := d.currentObserver(); obs != nil {
		obs.OnBufferedAmountChange(previous)
	}
}

func (d *pionDataChannel) ID() int {
	if id := d.dc.ID(); id != nil {
		return int(*id)
	}
	return -1
}

func (d *pionDataChannel) Label() string { return d.dc.Label() }

func (d *pionDataChannel) State() pc.DataChannelState {
	return toDataChannelState(d.dc.ReadyState())
}

func (d *pionDataChannel) BufferedAmount() uint64 {
	return d.dc.BufferedAmount()
}

// Send queues a message. Overflowing the send buffer closes the channel,
// matching the native engine's abrupt-close behavior.
func (d *pionDataChannel) Send(payload []byte, binary bool) error {
	previous := d.dc.BufferedAmount()
	if previous+uint64(len(payload)) > pc.DataChannelBufferCapacity {
		_ = d.dc.Close()
		return pc.ErrInvalidOperation
	}

	var err error
	if binary {
		err = d.dc.Send(payload)
	} else {
		err = d.dc.SendText(string(payload))
	}
	if err != nil {
		return err
	}
	d.session.stats.dataMessagesSent.Add(1)
	d.session.stats.dataBytesSent.Add(int64(len(payload)))
	d.session.dispatch.post(func() {
		d.notifyBufferedAmount(previous)
	})
	return nil
}

// SetObserver attaches obs, replacing any previous observer. A nil obs
// detaches and stops all callbacks.
func (d *pionDataChannel) SetObserver(obs pc.DataChannelObserver) {
	d.mu.Lock()
	d.observer = obs
	d.mu.Unlock()
}

func (d *pionDataChannel) Close() error {
	return d.dc.Close()
}
