package pc

import (
	"fmt"
	"sync"
)

const (
	// maxDataChannelID is the highest id SCTP can negotiate.
	maxDataChannelID = 65535

	// pendingDataChannelID marks a channel whose id the engine has not
	// assigned yet (in-band negotiation).
	pendingDataChannelID = -1

	// DataChannelBufferCapacity is the engine's hard cap on buffered
	// outbound bytes. Pushing past it closes the channel abruptly.
	DataChannelBufferCapacity = 16 * 1024 * 1024
)

// DataChannel wraps one engine data channel. It is obtained from
// AddDataChannel or from the DataChannelAdded callback for remote-initiated
// channels, never constructed directly. After removal from its connection a
// DataChannel dispatches no further callbacks and its back-reference stays
// nil forever.
type DataChannel struct {
	inner    EngineDataChannel
	label    string
	ordered  bool
	reliable bool

	mu      sync.Mutex
	pc      *PeerConnection // cleared on removal, never reused
	id      int             // pendingDataChannelID until the engine assigns one
	removed bool

	onMessage          callbackSlot[func(payload []byte)]
	onStateChange      callbackSlot[func(DataChannelState)]
	onBufferingChanged callbackSlot[func(previous, current, limit uint64)]
}

func newDataChannel(pc *PeerConnection, inner EngineDataChannel) *DataChannel {
	return &DataChannel{
		inner:    inner,
		label:    inner.Label(),
		ordered:  true,
		reliable: true,
		pc:       pc,
		id:       inner.ID(),
	}
}

// ID returns the channel id, or -1 while the engine has not assigned one.
func (dc *DataChannel) ID() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.id
}

// Label returns the channel label. Labels may repeat across channels.
func (dc *DataChannel) Label() string { return dc.label }

// Ordered reports whether messages are delivered in order.
func (dc *DataChannel) Ordered() bool { return dc.ordered }

// Reliable reports whether delivery is retransmitted until acknowledged.
func (dc *DataChannel) Reliable() bool { return dc.reliable }

// State returns the engine-reported channel state.
func (dc *DataChannel) State() DataChannelState {
	dc.mu.Lock()
	removed := dc.removed
	dc.mu.Unlock()
	if removed {
		return DataChannelStateClosed
	}
	return dc.inner.State()
}

// Send queues payload for transmission. Pushing buffered bytes past
// DataChannelBufferCapacity makes the engine close the channel abruptly
// rather than fail the call quietly.
func (dc *DataChannel) Send(payload []byte) error {
	if len(payload) == 0 {
		return ErrInvalidParameter
	}
	dc.mu.Lock()
	removed := dc.removed
	dc.mu.Unlock()
	if removed {
		return ErrInvalidOperation
	}
	if err := dc.inner.Send(payload, true); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknown, err)
	}
	return nil
}

// RegisterMessageCallback installs the message callback; nil unregisters.
func (dc *DataChannel) RegisterMessageCallback(cb func(payload []byte)) {
	dc.onMessage.register(cb, cb != nil)
}

// RegisterStateChangeCallback installs the state callback; nil unregisters.
func (dc *DataChannel) RegisterStateChangeCallback(cb func(DataChannelState)) {
	dc.onStateChange.register(cb, cb != nil)
}

// RegisterBufferingCallback installs the buffering callback; nil
// unregisters. The callback receives the previous and current buffered
// amounts plus the engine capacity.
func (dc *DataChannel) RegisterBufferingCallback(cb func(previous, current, limit uint64)) {
	dc.onBufferingChanged.register(cb, cb != nil)
}

// OnStateChange implements DataChannelObserver. Invoked on the engine's
// signaling thread.
func (dc *DataChannel) OnStateChange(state DataChannelState) {
	dc.mu.Lock()
	if dc.removed {
		dc.mu.Unlock()
		return
	}
	pc := dc.pc
	needsID := dc.id == pendingDataChannelID && state == DataChannelStateOpen
	var assignedID int
	if needsID {
		assignedID = dc.inner.ID()
		dc.id = assignedID
	}
	dc.mu.Unlock()

	if needsID && assignedID >= 0 && pc != nil {
		pc.registerDataChannelID(dc, assignedID)
	}

	if cb, ok := dc.onStateChange.load(); ok {
		cb(state)
	}
}

// OnMessage implements DataChannelObserver.
func (dc *DataChannel) OnMessage(payload []byte, binary bool) {
	dc.mu.Lock()
	if dc.removed {
		dc.mu.Unlock()
		return
	}
	dc.mu.Unlock()

	if cb, ok := dc.onMessage.load(); ok {
		cb(payload)
	}
}

// OnBufferedAmountChange implements DataChannelObserver.
func (dc *DataChannel) OnBufferedAmountChange(previous uint64) {
	dc.mu.Lock()
	if dc.removed {
		dc.mu.Unlock()
		return
	}
	dc.mu.Unlock()

	if cb, ok := dc.onBufferingChanged.load(); ok {
		cb(previous, dc.inner.BufferedAmount(), DataChannelBufferCapacity)
	}
}

// onRemovedFromPeerConnection flips the removed flag and clears nothing yet:
// the caller still needs the back-reference for teardown ordering.
func (dc *DataChannel) onRemovedFromPeerConnection() {
	dc.mu.Lock()
	dc.removed = true
	dc.mu.Unlock()
}

func (dc *DataChannel) clearPeer() {
	dc.mu.Lock()
	dc.pc = nil
	dc.mu.Unlock()
}

func (dc *DataChannel) isRemoved() bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.removed
}

// AddDataChannel asks the engine to create a data channel and registers the
// wrapper in the connection's indices. id -1 requests in-band negotiation;
// ids in [0,65535] mark the channel negotiated out-of-band. The engine never
// calls OnDataChannel for locally created channels, so DataChannelAdded
// fires synchronously here.
func (pc *PeerConnection) AddDataChannel(id int, label string, ordered, reliable bool) (*DataChannel, error) {
	if pc.closed.Load() {
		return nil, ErrPeerConnectionClosed
	}
	if id > maxDataChannelID {
		return nil, ErrOutOfRange
	}
	if id < pendingDataChannelID {
		return nil, ErrInvalidParameter
	}

	pc.dcMu.Lock()
	negotiated := pc.sctpNegotiated
	pc.dcMu.Unlock()
	if !negotiated {
		// Without a proven SCTP handshake the channel would sit in
		// Connecting forever.
		return nil, ErrSctpNotNegotiated
	}

	inner, err := pc.session.CreateDataChannel(DataChannelInit{
		ID:       id,
		Label:    label,
		Ordered:  ordered,
		Reliable: reliable,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, err)
	}

	dc := newDataChannel(pc, inner)
	dc.ordered = ordered
	dc.reliable = reliable

	pc.dcMu.Lock()
	if dc.id >= 0 {
		pc.dataChannelsByID[dc.id] = dc
	}
	if label != "" {
		pc.dataChannelsByLabel[label] = append(pc.dataChannelsByLabel[label], dc)
	}
	pc.dcMu.Unlock()

	inner.SetObserver(dc)

	pc.logger.V(1).Info("data channel added", "id", dc.id, "label", label)
	if cb, ok := pc.onDataChannelAdded.load(); ok {
		cb(dc)
	}
	return dc, nil
}

// registerDataChannelID moves an in-band channel into the id index once the
// engine has assigned its id.
func (pc *PeerConnection) registerDataChannelID(dc *DataChannel, id int) {
	pc.dcMu.Lock()
	if _, taken := pc.dataChannelsByID[id]; !taken {
		pc.dataChannelsByID[id] = dc
	}
	pc.dcMu.Unlock()
}

// RemoveDataChannel removes dc from both indices, closes the engine channel
// and fires DataChannelRemoved. The engine observer is detached before the
// close so no callback can reach a half-destroyed wrapper, and the channel's
// back-reference is cleared last.
func (pc *PeerConnection) RemoveDataChannel(dc *DataChannel) error {
	if dc == nil {
		return ErrInvalidParameter
	}

	pc.dcMu.Lock()
	if !pc.removeFromIndicesLocked(dc) {
		pc.dcMu.Unlock()
		// Callers only obtain wrappers through this registry, so an
		// unregistered channel is a caller error.
		return ErrNotFound
	}
	dc.onRemovedFromPeerConnection()
	pc.dcMu.Unlock()

	pc.teardownDataChannel(dc)
	return nil
}

// RemoveDataChannelByID removes the channel with the given id.
func (pc *PeerConnection) RemoveDataChannelByID(id int) error {
	pc.dcMu.Lock()
	dc, ok := pc.dataChannelsByID[id]
	if ok {
		pc.removeFromIndicesLocked(dc)
		dc.onRemovedFromPeerConnection()
	}
	pc.dcMu.Unlock()
	if !ok {
		return ErrNotFound
	}
	pc.teardownDataChannel(dc)
	return nil
}

// RemoveDataChannelByLabel removes the earliest-registered channel carrying
// the given label.
func (pc *PeerConnection) RemoveDataChannelByLabel(label string) error {
	pc.dcMu.Lock()
	var dc *DataChannel
	if list := pc.dataChannelsByLabel[label]; len(list) > 0 {
		dc = list[0]
		pc.removeFromIndicesLocked(dc)
		dc.onRemovedFromPeerConnection()
	}
	pc.dcMu.Unlock()
	if dc == nil {
		return ErrNotFound
	}
	pc.teardownDataChannel(dc)
	return nil
}

// RemoveAllDataChannels drains the registry, firing DataChannelRemoved for
// every channel.
func (pc *PeerConnection) RemoveAllDataChannels() {
	pc.dcMu.Lock()
	channels := make([]*DataChannel, 0, len(pc.dataChannelsByLabel)+len(pc.dataChannelsByID))
	seen := make(map[*DataChannel]struct{})
	for _, dc := range pc.dataChannelsByID {
		if _, dup := seen[dc]; !dup {
			seen[dc] = struct{}{}
			channels = append(channels, dc)
		}
	}
	for _, list := range pc.dataChannelsByLabel {
		for _, dc := range list {
			if _, dup := seen[dc]; !dup {
				seen[dc] = struct{}{}
				channels = append(channels, dc)
			}
		}
	}
	pc.dataChannelsByID = make(map[int]*DataChannel)
	pc.dataChannelsByLabel = make(map[string][]*DataChannel)
	for _, dc := range channels {
		dc.onRemovedFromPeerConnection()
	}
	pc.dcMu.Unlock()

	for _, dc := range channels {
		pc.teardownDataChannel(dc)
	}
}

// removeFromIndicesLocked drops dc from both indices. Caller holds dcMu.
func (pc *PeerConnection) removeFromIndicesLocked(dc *DataChannel) bool {
	found := false
	if id := dc.id; id >= 0 {
		if current, ok := pc.dataChannelsByID[id]; ok && current == dc {
			delete(pc.dataChannelsByID, id)
			found = true
		}
	}
	if list, ok := pc.dataChannelsByLabel[dc.label]; ok {
		for i, candidate := range list {
			if candidate == dc {
				list = append(list[:i], list[i+1:]...)
				found = true
				break
			}
		}
		if len(list) == 0 {
			delete(pc.dataChannelsByLabel, dc.label)
		} else {
			pc.dataChannelsByLabel[dc.label] = list
		}
	}
	return found
}

// teardownDataChannel performs the engine-side teardown. Order matters:
// detach the observer, close the engine channel, fire DataChannelRemoved,
// clear the back-reference.
func (pc *PeerConnection) teardownDataChannel(dc *DataChannel) {
	dc.inner.SetObserver(nil)
	if err := dc.inner.Close(); err != nil {
		pc.logger.Error(err, "data channel close", "label", dc.label)
	}

	pc.logger.V(1).Info("data channel removed", "id", dc.id, "label", dc.label)
	if cb, ok := pc.onDataChannelRemoved.load(); ok {
		cb(dc)
	}

	dc.clearPeer()
}

// SendDataChannelMessage sends payload on the channel with the given id.
func (pc *PeerConnection) SendDataChannelMessage(id int, payload []byte) error {
	if pc.closed.Load() {
		return ErrPeerConnectionClosed
	}
	pc.dcMu.Lock()
	dc, ok := pc.dataChannelsByID[id]
	pc.dcMu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return dc.Send(payload)
}

// DataChannelByID looks up a channel by id.
func (pc *PeerConnection) DataChannelByID(id int) (*DataChannel, bool) {
	pc.dcMu.Lock()
	defer pc.dcMu.Unlock()
	dc, ok := pc.dataChannelsByID[id]
	return dc, ok
}

// DataChannelsByLabel returns the channels carrying label, oldest first.
func (pc *PeerConnection) DataChannelsByLabel(label string) []*DataChannel {
	pc.dcMu.Lock()
	defer pc.dcMu.Unlock()
	list := pc.dataChannelsByLabel[label]
	out := make([]*DataChannel, len(list))
	copy(out, list)
	return out
}

// DataChannelCount returns the number of registered channels.
func (pc *PeerConnection) DataChannelCount() int {
	pc.dcMu.Lock()
	defer pc.dcMu.Unlock()
	seen := make(map[*DataChannel]struct{})
	for _, dc := range pc.dataChannelsByID {
		seen[dc] = struct{}{}
	}
	for _, list := range pc.dataChannelsByLabel {
		for _, dc := range list {
			seen[dc] = struct{}{}
		}
	}
	return len(seen)
}

// SctpNegotiated reports whether a data channel has proven the SCTP
// handshake on this connection.
func (pc *PeerConnection) SctpNegotiated() bool {
	pc.dcMu.Lock()
	defer pc.dcMu.Unlock()
	return pc.sctpNegotiated
}

// onEngineDataChannel handles the engine's OnDataChannel for remote-initiated
// channels: the handshake is proven, the wrapper is built and indexed, the
// observer attached, DataChannelAdded fired.
func (pc *PeerConnection) onEngineDataChannel(inner EngineDataChannel) {
	dc := newDataChannel(pc, inner)

	// The closed check must share the registry's critical section: Close
	// flips the flag before draining under dcMu, so a channel arriving
	// after the drain is rejected here instead of being indexed on a dead
	// connection.
	pc.dcMu.Lock()
	if pc.closed.Load() {
		pc.dcMu.Unlock()
		inner.SetObserver(nil)
		_ = inner.Close()
		return
	}
	pc.sctpNegotiated = true
	if dc.id >= 0 {
		pc.dataChannelsByID[dc.id] = dc
	}
	if dc.label != "" {
		pc.dataChannelsByLabel[dc.label] = append(pc.dataChannelsByLabel[dc.label], dc)
	}
	pc.dcMu.Unlock()

	inner.SetObserver(dc)

	// The observer attaches outside dcMu; a concurrent Close may already
	// have drained the wrapper in between. Tear the engine channel down
	// instead of announcing a dead wrapper.
	if dc.isRemoved() {
		inner.SetObserver(nil)
		_ = inner.Close()
		return
	}

	pc.logger.V(1).Info("remote data channel added", "id", dc.id, "label", dc.label)
	if cb, ok := pc.onDataChannelAdded.load(); ok {
		cb(dc)
	}
}
