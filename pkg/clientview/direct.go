package clientview

import (
	"context"

	"github.com/ovirt/hosted-engine-ha/internal/osfs"
	"github.com/ovirt/hosted-engine-ha/pkg/backend"
	"github.com/ovirt/hosted-engine-ha/pkg/broker"
	"github.com/ovirt/hosted-engine-ha/pkg/liveness"
)

// directBackend is a single-file backend.Backend used only by
// GetAllStatsDirect: domPath names the whiteboard file directly, so there
// is nothing to discover or materialize at Connect time. Every service
// name resolves to the same file at offset 0, since a direct read targets
// one already-known file rather than a full service map.
type directBackend struct {
	path string
}

func (directBackend) Kind() backend.Kind                       { return backend.Filesystem }
func (directBackend) Connect(context.Context) error            { return nil }
func (directBackend) Disconnect(context.Context) error         { return nil }
func (d directBackend) Filename(string) (string, int64, bool)  { return d.path, 0, true }
func (directBackend) Create(context.Context, backend.ServiceMap) error {
	return nil
}
func (directBackend) DirectIO() bool { return false }

// GetAllStatsDirect reads serviceType's slots through a locally
// constructed broker over domPath rather than through a Channel (spec
// §4.G get_all_stats_direct). Per the Open Question decision (spec §9,
// DESIGN.md #3), the signature takes (domPath, serviceType, mode) rather
// than threading a path through service_type as the original's mismatched
// call sites do.
func GetAllStatsDirect(ctx context.Context, fs osfs.FS, domPath string, serviceType string, mode Mode) ([]Record, error) {
	b := broker.New(fs, directBackend{path: domPath}, nil, nil, "", liveness.NewCache(nil, 0))

	return GetAllStats(ctx, b, serviceType, mode)
}
