package nativeengine

import (
	"github.com/microsoft/MixedReality-WebRTC-sub003/internal/ffi"
	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/pc"
)

// dataChannel wraps one shim data channel handle.
type dataChannel struct {
	handle uintptr
}

func newDataChannel(handle uintptr) *dataChannel {
	return &dataChannel{handle: handle}
}

func (d *dataChannel) ID() int {
	return int(ffi.DataChannelID(d.handle))
}

func (d *dataChannel) Label() string {
	return ffi.DataChannelLabel(d.handle)
}

func (d *dataChannel) State() pc.DataChannelState {
	return pc.DataChannelState(ffi.DataChannelState(d.handle))
}

func (d *dataChannel) BufferedAmount() uint64 {
	return ffi.DataChannelBufferedAmount(d.handle)
}

func (d *dataChannel) Send(payload []byte, binary bool) error {
	return ffi.DataChannelSend(d.handle, payload, binary)
}

// SetObserver attaches obs, replacing any previous observer. A nil obs
// detaches and stops all callbacks.
func (d *dataChannel) SetObserver(obs pc.DataChannelObserver) {
	if obs == nil {
		_ = ffi.DataChannelSetEvents(d.handle, nil)
		return
	}
	_ = ffi.DataChannelSetEvents(d.handle, &ffi.DataChannelEvents{
		OnStateChange: func(state int32) {
			obs.OnStateChange(pc.DataChannelState(state))
		},
		OnMessage: obs.OnMessage,
		OnBufferedAmountChange: func(previous, _ uint64) {
			obs.OnBufferedAmountChange(previous)
		},
	})
}

func (d *dataChannel) Close() error {
	return ffi.DataChannelClose(d.handle)
}
