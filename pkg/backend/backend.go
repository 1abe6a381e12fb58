// Package backend implements the two whiteboard storage backends (spec
// §4.B, §4.C): a filesystem/LV-symlink backend and a raw-block-device
// backend with a self-describing info-block table.
//
// Dynamic dispatch across backend kinds is replaced by a closed variant
// (spec §9): Kind identifies which concrete implementation a Backend value
// wraps, and the broker switches on it rather than relying on an open
// interface with a growing set of implementations.
package backend

import "context"

// Kind identifies which concrete backend implementation is in play.
type Kind int

const (
	// Filesystem is a flat-file or LV-symlink backed backend.
	Filesystem Kind = iota
	// Block is a raw-block-device backend with an info-block table.
	Block
)

func (k Kind) String() string {
	switch k {
	case Filesystem:
		return "filesystem"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// ServiceMap describes the services to materialize at domain-creation
// time: service name to requested size in bytes.
type ServiceMap map[string]int64

// Backend is the capability set the storage broker consumes. Both
// FilesystemBackend and BlockBackend implement it; the broker holds
// exactly one, selected by Kind at construction time.
type Backend interface {
	// Kind reports which concrete variant this is.
	Kind() Kind

	// Connect locates/materializes the backend's services, readying
	// Filename for use.
	Connect(ctx context.Context) error

	// Disconnect releases any resources Connect acquired (e.g. dm
	// devices). Safe to call even if Connect partially failed.
	Disconnect(ctx context.Context) error

	// Filename resolves a service name to the (path, base offset) the
	// broker should open and seek to. ok is false for an unknown
	// service.
	Filename(service string) (path string, baseOffset int64, ok bool)

	// Create materializes the given services, then reconnects so
	// Filename reflects the newly created layout.
	Create(ctx context.Context, services ServiceMap) error

	// DirectIO reports whether the broker should add O_DIRECT to opens
	// against this backend's filenames.
	DirectIO() bool
}
