// Package pc implements the connection, track and data-channel orchestration
// core sitting between the application and a native real-time media engine.
// The engine itself (ICE/DTLS-SRTP/SCTP transport and codec pipelines) is an
// external collaborator reached through the Engine interface; this package
// only observes and forwards engine-driven state transitions while keeping
// its registries consistent under concurrent mutation.
package pc

import "errors"

var (
	// ErrInvalidParameter reports a malformed argument (unrecognized SDP
	// type, unparsable candidate, empty payload).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidOperation reports API misuse such as mutating a closed
	// connection.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound reports a lookup miss (unknown data channel id or label,
	// stale handle).
	ErrNotFound = errors.New("not found")

	// ErrSctpNotNegotiated is returned by AddDataChannel before the SCTP
	// handshake has been proven by a first in-band channel.
	ErrSctpNotNegotiated = errors.New("sctp not negotiated")

	// ErrOutOfRange is returned for data channel ids above 65535.
	ErrOutOfRange = errors.New("out of range")

	// ErrWrongThread reports a call from a thread the platform disallows.
	// The Go core never raises it itself; native backends may.
	ErrWrongThread = errors.New("wrong thread")

	// ErrUnknown wraps an opaque engine failure.
	ErrUnknown = errors.New("unknown error")

	// ErrPeerConnectionClosed is returned by operations on a closed
	// connection.
	ErrPeerConnectionClosed = errors.New("peer connection closed")

	// ErrNoEngineFactory is returned when a connection is created before an
	// engine backend has been registered.
	ErrNoEngineFactory = errors.New("no engine factory registered")

	// ErrNotSupported reports an operation the active engine backend cannot
	// perform.
	ErrNotSupported = errors.New("not supported")
)
