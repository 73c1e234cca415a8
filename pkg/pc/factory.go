package pc

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// ObjectType tags every wrapper object registered with the global factory.
type ObjectType int

const (
	ObjectTypePeerConnection ObjectType = iota
	ObjectTypeLocalVideoTrack
	ObjectTypeLocalAudioTrack
	ObjectTypeExternalVideoTrackSource
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypePeerConnection:
		return "peer-connection"
	case ObjectTypeLocalVideoTrack:
		return "local-video-track"
	case ObjectTypeLocalAudioTrack:
		return "local-audio-track"
	case ObjectTypeExternalVideoTrackSource:
		return "external-video-track-source"
	default:
		return "unknown"
	}
}

// TrackedObject is the base identity shared by every wrapper object. Each
// live object holds the engine alive through the global factory.
type TrackedObject interface {
	ObjectID() string
	ObjectType() ObjectType
}

type trackedObject struct {
	id      string
	typ     ObjectType
	factory *GlobalFactory
}

func newTrackedObject(typ ObjectType, factory *GlobalFactory) trackedObject {
	return trackedObject{
		id:      uuid.NewString(),
		typ:     typ,
		factory: factory,
	}
}

func (o *trackedObject) ObjectID() string { return o.id }

func (o *trackedObject) ObjectType() ObjectType { return o.typ }

// GlobalFactory owns the engine backend and keeps it alive exactly while at
// least one tracked object exists. The engine is constructed lazily when the
// first object registers and torn down, blocking until engine shutdown
// completes, when the last object unregisters. Repeated create/destroy
// cycles therefore leave no dangling engine threads.
type GlobalFactory struct {
	mu      sync.Mutex
	engine  Engine
	objects map[string]TrackedObject
	logger  logr.Logger
}

var (
	instanceMu sync.Mutex
	instance   *GlobalFactory

	engineFactoryMu sync.Mutex
	engineFactory   EngineFactory
)

// SetEngineFactory registers the constructor for the process-wide engine
// backend. It must be called before the first connection is created; the
// native backend registers itself through pkg/api, tests and pure-Go hosts
// install their own.
func SetEngineFactory(f EngineFactory) {
	engineFactoryMu.Lock()
	engineFactory = f
	engineFactoryMu.Unlock()
}

// SetDefaultEngineFactory registers f only when no factory has been
// registered yet. Backend packages use it to install themselves from init
// without clobbering an explicit choice.
func SetDefaultEngineFactory(f EngineFactory) {
	engineFactoryMu.Lock()
	if engineFactory == nil {
		engineFactory = f
	}
	engineFactoryMu.Unlock()
}

func loadEngineFactory() EngineFactory {
	engineFactoryMu.Lock()
	defer engineFactoryMu.Unlock()
	return engineFactory
}

// InstancePtr returns the singleton factory, creating it on first call. The
// returned factory owns no engine until an object registers.
func InstancePtr() *GlobalFactory {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = &GlobalFactory{
			objects: make(map[string]TrackedObject),
			logger:  NewLogger("GlobalFactory"),
		}
	}
	return instance
}

// AddObject registers obj with the live set. Registering the first object
// synchronously constructs the engine backend; construction is idempotent
// per 0-to-1 transition.
func (g *GlobalFactory) AddObject(obj TrackedObject) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.engine == nil {
		factory := loadEngineFactory()
		if factory == nil {
			return ErrNoEngineFactory
		}
		engine, err := factory()
		if err != nil {
			return fmt.Errorf("engine startup: %w", err)
		}
		g.engine = engine
		g.logger.V(1).Info("engine started", "engine", engine.Name())
	}

	g.objects[obj.ObjectID()] = obj
	return nil
}

// RemoveObject unregisters obj. Removing the last object stops the engine
// threads and releases the backend; the call blocks until shutdown
// completes. Removing an unknown object is a no-op.
func (g *GlobalFactory) RemoveObject(obj TrackedObject) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.objects, obj.ObjectID())

	if len(g.objects) == 0 && g.engine != nil {
		engine := g.engine
		g.engine = nil
		if err := engine.Close(); err != nil {
			g.logger.Error(err, "engine shutdown")
		} else {
			g.logger.V(1).Info("engine stopped", "engine", engine.Name())
		}
	}
}

// ObjectCount returns the number of live tracked objects.
func (g *GlobalFactory) ObjectCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.objects)
}

// EngineAlive reports whether the engine backend currently exists. It is
// true iff at least one tracked object is alive.
func (g *GlobalFactory) EngineAlive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine != nil
}

func (g *GlobalFactory) engineRef() (Engine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine == nil {
		return nil, ErrInvalidOperation
	}
	return g.engine, nil
}

// VideoCaptureDevices enumerates OS video capture devices through the
// engine backend. Enumeration requires a live engine, so at least one
// tracked object must exist.
func (g *GlobalFactory) VideoCaptureDevices() ([]VideoCaptureDevice, error) {
	engine, err := g.engineRef()
	if err != nil {
		return nil, err
	}
	return engine.VideoCaptureDevices()
}
