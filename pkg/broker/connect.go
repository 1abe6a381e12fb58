package broker

import (
	"context"
	"fmt"
	"path/filepath"

	hostedha "github.com/ovirt/hosted-engine-ha"
	"github.com/ovirt/hosted-engine-ha/pkg/lockspace"
)

// connectionMarker is the name of the small on-disk bookkeeping file that
// records which local path a storage domain was last connected at, used to
// detect DuplicateStorageConnection (spec §9 supplemented feature, from
// original_source/ovirt_hosted_engine_ha/lib/storage_server.py's mount-path
// consistency check).
const connectionMarker = ".heha-connection"

// Connect readies b's backend and checks for a duplicate storage
// connection: if the domain directory is already recorded as mounted at a
// different local path than the backend now reports, Connect fails with
// ErrDuplicateStorageConnection rather than silently reconnecting under a
// second path.
func (b *Broker) Connect(ctx context.Context, metadataDir string) error {
	if err := b.backend.Connect(ctx); err != nil {
		return err
	}

	markerPath := filepath.Join(metadataDir, connectionMarker)

	prev, err := b.fs.ReadFile(markerPath)
	if err == nil {
		if string(prev) != metadataDir {
			return fmt.Errorf("%w: recorded at %q, now connecting at %q", hostedha.ErrDuplicateStorageConnection, string(prev), metadataDir)
		}

		return nil
	}

	return b.fs.WriteFileAtomic(markerPath, []byte(metadataDir), 0o644)
}

// Disconnect releases the backend's resources.
func (b *Broker) Disconnect(ctx context.Context) error {
	return b.backend.Disconnect(ctx)
}

// AcquireLockspace acquires the cluster lease for hostID via mgr, storing
// the resulting Handle so a later ReleaseLockspace can drop it. A second
// AcquireLockspace call replaces the stored handle (the lockspace.Manager
// itself is idempotent for identical (hostID, leasePath) pairs: spec §3
// invariant 6).
func (b *Broker) AcquireLockspace(ctx context.Context, mgr *lockspace.Manager, hostID int, leasePath string) error {
	handle, err := mgr.Acquire(ctx, hostID, leasePath)
	if err != nil {
		return err
	}

	b.lockMu.Lock()
	defer b.lockMu.Unlock()

	b.lockHandle = handle

	return nil
}

// ReleaseLockspace releases the held lease, if any.
func (b *Broker) ReleaseLockspace(ctx context.Context) error {
	b.lockMu.Lock()
	handle := b.lockHandle
	b.lockHandle = nil
	b.lockMu.Unlock()

	if handle == nil {
		return nil
	}

	return handle.Close(ctx)
}
