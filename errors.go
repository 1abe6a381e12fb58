// Package hostedhaerrors would be the natural home for these, but the
// teacher keeps its sentinel errors at module root in errors.go, so the
// whiteboard broker follows suit: every package-specific error type wraps
// one of these through %w so callers can errors.Is/As against the kinds
// named in spec §7 regardless of which component produced it.
package hostedha

import "errors"

// Error kinds from spec §7. Components wrap these with context via
// fmt.Errorf("...: %w", ErrX); callers match with errors.Is.
var (
	// ErrBackendCorrupted marks a CRC mismatch or malformed info-block chain.
	// Fatal at connect time; there is no automatic recovery.
	ErrBackendCorrupted = errors.New("block backend corrupted")

	// ErrRequest marks a transient storage I/O failure during a slot
	// read/write. The caller may retry the whole operation.
	ErrRequest = errors.New("storage request failed")

	// ErrBrokerConnection marks a control-plane failure establishing the
	// broker channel.
	ErrBrokerConnection = errors.New("broker connection failed")

	// ErrBrokerDisconnection marks a control-plane failure tearing down
	// the broker channel.
	ErrBrokerDisconnection = errors.New("broker disconnection failed")

	// ErrSanlockInit marks an exhausted retry budget while acquiring the
	// lockspace lease.
	ErrSanlockInit = errors.New("lockspace initialization failed")

	// ErrServiceNotUp marks that the external lock daemon is not running.
	ErrServiceNotUp = errors.New("lock daemon service not up")

	// ErrDuplicateStorageConnection marks that the same storage domain is
	// already mounted at a different local path.
	ErrDuplicateStorageConnection = errors.New("storage domain already connected at a different path")
)
