package ffi

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// DataChannelEvents receives shim callbacks for one data channel. Message
// payloads are only valid for the duration of the callback; the trampoline
// copies them before dispatch.
type DataChannelEvents struct {
	OnStateChange          func(state int32)
	OnMessage              func(payload []byte, binary bool)
	OnBufferedAmountChange func(previous, current uint64)
}

// shimDataChannelObserverBlock mirrors mrsDataChannelObserver in the shim
// header.
type shimDataChannelObserverBlock struct {
	onStateChange          uintptr
	onMessage              uintptr
	onBufferedAmountChange uintptr
}

var (
	dcEventsMu sync.RWMutex
	dcEvents   = make(map[uintptr]*DataChannelEvents)

	dcObserverBlock     shimDataChannelObserverBlock
	dcObserverBlockOnce sync.Once
)

func lookupDataChannelEvents(ctx uintptr) *DataChannelEvents {
	dcEventsMu.RLock()
	defer dcEventsMu.RUnlock()
	return dcEvents[ctx]
}

func initDataChannelObserverBlock() {
	dcObserverBlock = shimDataChannelObserverBlock{
		onStateChange: purego.NewCallback(func(ctx uintptr, state int32) {
			if ev := lookupDataChannelEvents(ctx); ev != nil && ev.OnStateChange != nil {
				safeCallback(func() { ev.OnStateChange(state) })
			}
		}),
		onMessage: purego.NewCallback(func(ctx uintptr, data uintptr, dataLen int32, binary int32) {
			ev := lookupDataChannelEvents(ctx)
			if ev == nil || ev.OnMessage == nil {
				return
			}
			var payload []byte
			if data != 0 && dataLen > 0 {
				src := unsafe.Slice((*byte)(unsafe.Pointer(data)), int(dataLen))
				payload = make([]byte, dataLen)
				copy(payload, src)
			}
			safeCallback(func() { ev.OnMessage(payload, binary != 0) })
		}),
		onBufferedAmountChange: purego.NewCallback(func(ctx uintptr, previous uint64, current uint64) {
			if ev := lookupDataChannelEvents(ctx); ev != nil && ev.OnBufferedAmountChange != nil {
				safeCallback(func() { ev.OnBufferedAmountChange(previous, current) })
			}
		}),
	}
}

// DataChannelSetEvents attaches events to a shim data channel, replacing
// any previous registration. Passing nil detaches.
func DataChannelSetEvents(dc uintptr, events *DataChannelEvents) error {
	if events == nil {
		dcEventsMu.Lock()
		delete(dcEvents, dc)
		dcEventsMu.Unlock()
		return shimError(shimDataChannelSetObserver(dc, 0, 0))
	}

	dcObserverBlockOnce.Do(initDataChannelObserverBlock)

	dcEventsMu.Lock()
	dcEvents[dc] = events
	dcEventsMu.Unlock()

	if code := shimDataChannelSetObserver(dc, uintptr(unsafe.Pointer(&dcObserverBlock)), dc); code != shimOK {
		dcEventsMu.Lock()
		delete(dcEvents, dc)
		dcEventsMu.Unlock()
		return shimError(code)
	}
	return nil
}

// DataChannelID returns the negotiated stream id, or -1 while pending.
func DataChannelID(dc uintptr) int32 {
	return shimDataChannelID(dc)
}

// DataChannelLabel returns the channel label.
func DataChannelLabel(dc uintptr) string {
	buf := make([]byte, 256)
	n := shimDataChannelLabel(dc, ByteSlicePtr(buf), int32(len(buf)))
	return bufString(buf, n)
}

// DataChannelState returns the shim state enum value.
func DataChannelState(dc uintptr) int32 {
	return shimDataChannelState(dc)
}

// DataChannelBufferedAmount returns the bytes queued but not yet sent.
func DataChannelBufferedAmount(dc uintptr) uint64 {
	return shimDataChannelBufferedAmount(dc)
}

// DataChannelSend queues a message on the channel. The shim copies the
// payload before returning.
func DataChannelSend(dc uintptr, payload []byte, binary bool) error {
	code := shimDataChannelSend(dc, ByteSlicePtr(payload), int32(len(payload)), boolInt32(binary))
	runtime.KeepAlive(payload)
	return shimError(code)
}

// DataChannelClose closes the channel and drops its event registration.
func DataChannelClose(dc uintptr) error {
	err := shimError(shimDataChannelClose(dc))

	dcEventsMu.Lock()
	delete(dcEvents, dc)
	dcEventsMu.Unlock()

	return err
}
