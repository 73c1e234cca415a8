package pc

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/microsoft/MixedReality-WebRTC-sub003/pkg/frame"
)

// LocalVideoTrack is one outbound video track. The surface allows a single
// local track per media kind.
type LocalVideoTrack struct {
	trackedObject
	pc      *PeerConnection
	sender  Sender
	trackID string
}

// TrackID returns the engine-visible track identifier.
func (t *LocalVideoTrack) TrackID() string { return t.trackID }

// SetEnabled toggles whether frames are sent. A disabled track keeps its
// sender and SDP slot.
func (t *LocalVideoTrack) SetEnabled(enabled bool) error {
	return t.sender.SetEnabled(enabled)
}

// LocalAudioTrack is one outbound audio track.
type LocalAudioTrack struct {
	trackedObject
	pc      *PeerConnection
	sender  Sender
	trackID string
}

// TrackID returns the engine-visible track identifier.
func (t *LocalAudioTrack) TrackID() string { return t.trackID }

// SetEnabled toggles whether audio is sent.
func (t *LocalAudioTrack) SetEnabled(enabled bool) error {
	return t.sender.SetEnabled(enabled)
}

// ExternalVideoTrackSource feeds application-generated I420 frames into the
// engine. It is a tracked object: creating one keeps the engine alive even
// before the source is attached to a connection.
type ExternalVideoTrackSource struct {
	trackedObject
	source     VideoSource
	dispatcher frame.VideoDispatcher
}

// NewExternalVideoTrackSource creates an engine-backed frame source.
func NewExternalVideoTrackSource() (*ExternalVideoTrackSource, error) {
	factory := InstancePtr()
	s := &ExternalVideoTrackSource{
		trackedObject: newTrackedObject(ObjectTypeExternalVideoTrackSource, factory),
	}
	if err := factory.AddObject(s); err != nil {
		return nil, err
	}
	engine, err := factory.engineRef()
	if err != nil {
		factory.RemoveObject(s)
		return nil, err
	}
	source, err := engine.CreateVideoSource()
	if err != nil {
		factory.RemoveObject(s)
		return nil, err
	}
	s.source = source
	return s, nil
}

// PushFrame validates and forwards one I420 frame to the engine, then
// notifies the LocalFrameReady taps.
func (s *ExternalVideoTrackSource) PushFrame(f *frame.VideoFrame) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	if f.Format != frame.PixelFormatI420 {
		return fmt.Errorf("%w: source accepts i420 only", ErrInvalidParameter)
	}
	if err := s.source.PushFrame(f); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknown, err)
	}
	s.dispatcher.OnVideoFrame(f)
	return nil
}

// RegisterLocalFrameCallback taps frames as they are pushed; nil
// unregisters.
func (s *ExternalVideoTrackSource) RegisterLocalFrameCallback(cb frame.I420Callback) {
	s.dispatcher.RegisterI420Callback(cb)
}

// Dispose releases the engine source and unregisters from the global
// factory.
func (s *ExternalVideoTrackSource) Dispose() {
	_ = s.source.Close()
	s.factory.RemoveObject(s)
}

// AddLocalVideoTrack attaches an outbound video track. source may be nil,
// the engine then captures from its default device. Fails if a local video
// track is already attached.
func (pc *PeerConnection) AddLocalVideoTrack(source *ExternalVideoTrackSource) (*LocalVideoTrack, error) {
	if pc.closed.Load() {
		return nil, ErrPeerConnectionClosed
	}

	pc.trackMu.Lock()
	if pc.localVideo != nil || pc.videoPending {
		pc.trackMu.Unlock()
		return nil, fmt.Errorf("%w: local video track already attached", ErrInvalidOperation)
	}
	pc.videoPending = true
	pc.trackMu.Unlock()

	release := func() {
		pc.trackMu.Lock()
		pc.videoPending = false
		pc.trackMu.Unlock()
	}

	var engineSource VideoSource
	if source != nil {
		engineSource = source.source
	}
	trackID := "video-" + uuid.NewString()
	sender, err := pc.session.AddTrack(MediaKindVideo, trackID, engineSource)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %s", ErrUnknown, err)
	}

	track := &LocalVideoTrack{
		trackedObject: newTrackedObject(ObjectTypeLocalVideoTrack, pc.factory),
		pc:            pc,
		sender:        sender,
		trackID:       trackID,
	}
	if err := pc.factory.AddObject(track); err != nil {
		_ = pc.session.RemoveTrack(sender)
		release()
		return nil, err
	}

	pc.trackMu.Lock()
	pc.localVideo = track
	pc.videoPending = false
	pc.trackMu.Unlock()

	pc.logger.V(1).Info("local video track added", "trackId", trackID)
	return track, nil
}

// RemoveLocalVideoTrack detaches the local video track; no-op when nothing
// is attached.
func (pc *PeerConnection) RemoveLocalVideoTrack() error {
	pc.trackMu.Lock()
	track := pc.localVideo
	pc.localVideo = nil
	pc.trackMu.Unlock()

	if track == nil {
		return nil
	}
	if err := pc.session.RemoveTrack(track.sender); err != nil {
		pc.logger.Error(err, "remove video track", "trackId", track.trackID)
	}
	pc.factory.RemoveObject(track)
	pc.logger.V(1).Info("local video track removed", "trackId", track.trackID)
	return nil
}

// AddLocalAudioTrack attaches an outbound audio track captured by the
// engine. Fails if a local audio track is already attached.
func (pc *PeerConnection) AddLocalAudioTrack() (*LocalAudioTrack, error) {
	if pc.closed.Load() {
		return nil, ErrPeerConnectionClosed
	}

	pc.trackMu.Lock()
	if pc.localAudio != nil || pc.audioPending {
		pc.trackMu.Unlock()
		return nil, fmt.Errorf("%w: local audio track already attached", ErrInvalidOperation)
	}
	pc.audioPending = true
	pc.trackMu.Unlock()

	release := func() {
		pc.trackMu.Lock()
		pc.audioPending = false
		pc.trackMu.Unlock()
	}

	trackID := "audio-" + uuid.NewString()
	sender, err := pc.session.AddTrack(MediaKindAudio, trackID, nil)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %s", ErrUnknown, err)
	}

	track := &LocalAudioTrack{
		trackedObject: newTrackedObject(ObjectTypeLocalAudioTrack, pc.factory),
		pc:            pc,
		sender:        sender,
		trackID:       trackID,
	}
	if err := pc.factory.AddObject(track); err != nil {
		_ = pc.session.RemoveTrack(sender)
		release()
		return nil, err
	}

	pc.trackMu.Lock()
	pc.localAudio = track
	pc.audioPending = false
	pc.trackMu.Unlock()

	pc.logger.V(1).Info("local audio track added", "trackId", trackID)
	return track, nil
}

// RemoveLocalAudioTrack detaches the local audio track; no-op when nothing
// is attached.
func (pc *PeerConnection) RemoveLocalAudioTrack() error {
	pc.trackMu.Lock()
	track := pc.localAudio
	pc.localAudio = nil
	pc.trackMu.Unlock()

	if track == nil {
		return nil
	}
	if err := pc.session.RemoveTrack(track.sender); err != nil {
		pc.logger.Error(err, "remove audio track", "trackId", track.trackID)
	}
	pc.factory.RemoveObject(track)
	pc.logger.V(1).Info("local audio track removed", "trackId", track.trackID)
	return nil
}

// onEngineAddTrack classifies the receiver, attaches the shared remote sink
// and fires TrackAdded. Unknown kinds are ignored.
func (pc *PeerConnection) onEngineAddTrack(receiver Receiver) {
	if pc.closed.Load() {
		return
	}

	kind := receiver.Kind()
	switch kind {
	case MediaKindVideo:
		if err := receiver.SetVideoSink(&pc.remoteVideo); err != nil {
			pc.logger.Error(err, "attach remote video sink", "trackId", receiver.TrackID())
			return
		}
	case MediaKindAudio:
		if err := receiver.SetAudioSink(&pc.remoteAudio); err != nil {
			pc.logger.Error(err, "attach remote audio sink", "trackId", receiver.TrackID())
			return
		}
	default:
		return
	}

	pc.trackMu.Lock()
	pc.remoteReceivers[receiver.TrackID()] = receiver
	pc.trackMu.Unlock()

	pc.logger.V(1).Info("remote track added", "kind", kind.String(), "trackId", receiver.TrackID())
	if cb, ok := pc.onTrackAdded.load(); ok {
		cb(kind)
	}
}

// onEngineRemoveTrack detaches the sink and fires TrackRemoved.
func (pc *PeerConnection) onEngineRemoveTrack(receiver Receiver) {
	if pc.closed.Load() {
		return
	}

	kind := receiver.Kind()
	switch kind {
	case MediaKindVideo:
		_ = receiver.SetVideoSink(nil)
	case MediaKindAudio:
		_ = receiver.SetAudioSink(nil)
	default:
		return
	}

	pc.trackMu.Lock()
	delete(pc.remoteReceivers, receiver.TrackID())
	pc.trackMu.Unlock()

	pc.logger.V(1).Info("remote track removed", "kind", kind.String(), "trackId", receiver.TrackID())
	if cb, ok := pc.onTrackRemoved.load(); ok {
		cb(kind)
	}
}

// RegisterRemoteVideoFrameCallback installs the I420 tap for remote video
// frames; nil unregisters.
func (pc *PeerConnection) RegisterRemoteVideoFrameCallback(cb frame.I420Callback) {
	pc.remoteVideo.RegisterI420Callback(cb)
}

// RegisterRemoteARGBFrameCallback installs the ARGB tap for remote video
// frames. Delivery requires a converter installed with SetARGBConverter.
func (pc *PeerConnection) RegisterRemoteARGBFrameCallback(cb frame.ARGBCallback) {
	pc.remoteVideo.RegisterARGBCallback(cb)
}

// SetARGBConverter installs the host-supplied I420-to-ARGB converter.
func (pc *PeerConnection) SetARGBConverter(c frame.ARGBConverter) {
	pc.remoteVideo.SetConverter(c)
}

// RegisterRemoteAudioFrameCallback installs the tap for remote audio frames;
// nil unregisters.
func (pc *PeerConnection) RegisterRemoteAudioFrameCallback(cb frame.AudioCallback) {
	pc.remoteAudio.RegisterCallback(cb)
}
