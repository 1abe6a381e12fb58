// Package broker implements the storage broker (spec §4.D): the
// whiteboard I/O engine sitting on top of a pkg/backend.Backend, serializing
// all storage access through one mutex, and owning the liveness cache,
// lockspace handle, and domain-monitor lifecycle.
package broker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"

	hostedha "github.com/ovirt/hosted-engine-ha"
	"github.com/ovirt/hosted-engine-ha/internal/osfs"
	"github.com/ovirt/hosted-engine-ha/pkg/alignbuf"
	"github.com/ovirt/hosted-engine-ha/pkg/backend"
	"github.com/ovirt/hosted-engine-ha/pkg/liveness"
	"github.com/ovirt/hosted-engine-ha/pkg/lockspace"
)

// Broker is the whiteboard I/O engine for one storage domain. It holds
// exactly one backend (spec §9's closed-variant design note), a storage
// access mutex, a lockspace handle, a liveness cache, and the domain
// identifiers. The zero value is not usable; construct with New.
type Broker struct {
	fs      osfs.FS
	backend backend.Backend
	hv      Hypervisor
	clock   Clock

	sdUUID string

	// storageMu serializes every operation that touches the storage
	// device (spec §5: "the broker serializes all storage I/O through a
	// single mutex; reads and writes do not overlap").
	storageMu sync.Mutex

	liveness *liveness.Cache

	lockMu     sync.Mutex
	lockHandle *lockspace.Handle

	domainMu     sync.Mutex
	domainStatus DomainMonitorStatus
}

// New constructs a Broker over the given backend for domain sdUUID.
func New(fs osfs.FS, be backend.Backend, hv Hypervisor, clock Clock, sdUUID string, livenessCache *liveness.Cache) *Broker {
	if clock == nil {
		clock = RealClock{}
	}

	return &Broker{
		fs:       fs,
		backend:  be,
		hv:       hv,
		clock:    clock,
		sdUUID:   sdUUID,
		liveness: livenessCache,
	}
}

func (b *Broker) openFlags(rw int) int {
	if b.backend.DirectIO() {
		return alignbuf.OpenFlags(rw)
	}

	return rw | os.O_SYNC
}

// GetRawStats implements spec §4.D get_raw_stats: read every host slot for
// serviceType, dropping any slot whose first byte is 0x00 (absent).
func (b *Broker) GetRawStats(ctx context.Context, serviceType string) (map[int][]byte, error) {
	b.storageMu.Lock()
	defer b.storageMu.Unlock()

	path, baseOffset, ok := b.backend.Filename(serviceType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown service %q", hostedha.ErrRequest, serviceType)
	}

	totalLen := hostedha.HostSegmentBytes * (hostedha.MaxHostIDScan + 1)

	buf, err := alignbuf.New(totalLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hostedha.ErrRequest, err)
	}
	defer buf.Release()

	f, err := b.fs.OpenFile(path, b.openFlags(os.O_RDONLY), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", hostedha.ErrRequest, path, err)
	}
	defer f.Close()

	if _, err := f.Seek(baseOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek %s: %v", hostedha.ErrRequest, path, err)
	}

	region := buf.Bytes()[:totalLen]
	if _, err := readFull(f, region); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", hostedha.ErrRequest, path, err)
	}

	result := make(map[int][]byte)

	for i := 0; i <= hostedha.MaxHostIDScan; i++ {
		chunk := region[i*hostedha.HostSegmentBytes : (i+1)*hostedha.HostSegmentBytes]
		if chunk[0] == 0x00 {
			continue
		}

		result[i] = append([]byte(nil), chunk...)
	}

	return result, nil
}

// PutStats implements spec §4.D put_stats: write one host's slot, right-padded
// with zeros, in a single uninterruptible write.
func (b *Broker) PutStats(ctx context.Context, serviceType string, hostID int, payload []byte) error {
	if len(payload) > hostedha.HostSegmentBytes {
		return fmt.Errorf("%w: payload of %d bytes exceeds slot size %d", hostedha.ErrRequest, len(payload), hostedha.HostSegmentBytes)
	}

	b.storageMu.Lock()
	defer b.storageMu.Unlock()

	path, baseOffset, ok := b.backend.Filename(serviceType)
	if !ok {
		return fmt.Errorf("%w: unknown service %q", hostedha.ErrRequest, serviceType)
	}

	offset := baseOffset + int64(hostID)*hostedha.HostSegmentBytes

	buf, err := alignbuf.New(hostedha.HostSegmentBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", hostedha.ErrRequest, err)
	}
	defer buf.Release()

	slot := buf.Bytes()[:hostedha.HostSegmentBytes]
	copy(slot, payload)
	// remaining bytes are already zero from alignbuf.New's fresh allocation.

	f, err := b.fs.OpenFile(path, b.openFlags(os.O_WRONLY), 0)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", hostedha.ErrRequest, path, err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek %s: %v", hostedha.ErrRequest, path, err)
	}

	if err := alignbuf.WriteUninterrupted(f, slot); err != nil {
		return fmt.Errorf("%w: write %s: %v", hostedha.ErrRequest, path, err)
	}

	return nil
}

// GetAllStats implements spec §4.D get_all_stats: same as GetRawStats, but
// keyed by the string form of each host id for the external channel.
func (b *Broker) GetAllStats(ctx context.Context, serviceType string) (map[string][]byte, error) {
	raw, err := b.GetRawStats(ctx, serviceType)
	if err != nil {
		return nil, err
	}

	hostIDs := make([]int, 0, len(raw))
	for id := range raw {
		hostIDs = append(hostIDs, id)
	}

	sort.Ints(hostIDs)

	result := make(map[string][]byte, len(raw))
	for _, id := range hostIDs {
		result[strconv.Itoa(id)] = raw[id]
	}

	return result, nil
}

func readFull(f osfs.File, buf []byte) (int, error) {
	total := 0

	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n

		if err != nil {
			return total, err
		}

		if n == 0 {
			return total, fmt.Errorf("short read: got %d of %d bytes", total, len(buf))
		}
	}

	return total, nil
}
