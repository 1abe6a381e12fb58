package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	hostedha "github.com/ovirt/hosted-engine-ha"
	"github.com/ovirt/hosted-engine-ha/internal/cmdrunner"
	"github.com/ovirt/hosted-engine-ha/internal/osfs"
)

// BlockBackend reads and writes the self-describing info-block table at
// the head of a raw block device, and materializes one device-mapper
// linear device per service.
//
// Grounded on the teacher's pkg/slotcache self-describing-format approach
// (CRC-checked chained header records), generalized from a single mmap'd
// file to a chain of fixed records addressing arbitrary device pieces, and
// on pkg/slotcache/model's property-based verification style (see
// pkg/backend/model).
type BlockBackend struct {
	fs     osfs.FS
	runner cmdrunner.Runner

	device   string
	dmPrefix string

	// services is an ordered mapping name -> piece list, built fresh on
	// every connect by following the info-block chain. Order is
	// insertion order (ascending size at create time, per spec §4.C);
	// it is never mutated in place while iterating (spec §9 open
	// question #1).
	names    []string
	services map[string][]piece

	connected bool
}

// NewBlockBackend constructs a backend bound to one raw block device.
// dmPrefix is the "/dev/mapper/<dm_prefix>/<service>" path component.
func NewBlockBackend(fs osfs.FS, runner cmdrunner.Runner, device, dmPrefix string) *BlockBackend {
	return &BlockBackend{
		fs:       fs,
		runner:   runner,
		device:   device,
		dmPrefix: dmPrefix,
		services: make(map[string][]piece),
	}
}

func (b *BlockBackend) Kind() Kind { return Block }

// Connect parses the info-block chain from the device origin, then creates
// one dm device per discovered service.
func (b *BlockBackend) Connect(ctx context.Context) error {
	names, services, err := b.parseServiceTable(ctx)
	if err != nil {
		return err
	}

	b.names = names
	b.services = services

	for _, name := range b.names {
		if err := b.createDMDevice(ctx, name, b.services[name]); err != nil {
			return err
		}
	}

	b.connected = true

	return nil
}

// parseServiceTable starts at the info-block at the device origin and
// follows each block's next index until a block with next==0, decoding
// each as an info-block and appending its pieces to its service's list in
// chain order. Any invalid block on the chain fails connect, and so does a
// next index that points back at a block already read.
func (b *BlockBackend) parseServiceTable(ctx context.Context) ([]string, map[string][]piece, error) {
	f, err := b.fs.Open(b.device)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening %s: %v", hostedha.ErrBackendCorrupted, b.device, err)
	}
	defer f.Close()

	services := make(map[string][]piece)

	var names []string

	seen := make(map[string]bool)
	visited := make(map[uint64]bool)
	index := uint64(0)

	for {
		if visited[index] {
			return nil, nil, fmt.Errorf("%w: info-block chain loops back to index %d", hostedha.ErrBackendCorrupted, index)
		}

		visited[index] = true

		blk, err := b.readBlock(f, index)
		if err != nil {
			return nil, nil, err
		}

		if !blk.Valid {
			return nil, nil, fmt.Errorf("%w: invalid info-block at index %d", hostedha.ErrBackendCorrupted, index)
		}

		if !seen[blk.Name] {
			seen[blk.Name] = true
			names = append(names, blk.Name)
		}

		services[blk.Name] = append(services[blk.Name], blk.Pieces...)

		if blk.Next == 0 {
			break
		}

		index = blk.Next
	}

	return names, services, nil
}

func (b *BlockBackend) readBlock(f osfs.File, index uint64) (infoBlock, error) {
	buf := make([]byte, InfoBlockSize)

	if _, err := f.Seek(int64(index)*InfoBlockSize, io.SeekStart); err != nil {
		return infoBlock{}, fmt.Errorf("%w: seeking to block %d: %v", hostedha.ErrBackendCorrupted, index, err)
	}

	if _, err := readFull(f, buf); err != nil {
		return infoBlock{}, fmt.Errorf("%w: reading block %d: %v", hostedha.ErrBackendCorrupted, index, err)
	}

	return decodeInfoBlock(buf), nil
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
			break
		}
	}

	return total, nil
}

func (b *BlockBackend) createDMDevice(ctx context.Context, name string, pieces []piece) error {
	table := composeDMTable(b.device, pieces)

	_, err := b.runner.Run(ctx, "dmsetup", "create", b.dmName(name), "--table", table)
	if err != nil {
		return fmt.Errorf("%w: dmsetup create %s: %v", hostedha.ErrBrokerConnection, name, err)
	}

	return nil
}

func (b *BlockBackend) dmName(service string) string {
	return b.dmPrefix + "/" + service
}

// Disconnect removes every dm device this backend created.
func (b *BlockBackend) Disconnect(ctx context.Context) error {
	var firstErr error

	for _, name := range b.names {
		if _, err := b.runner.Run(ctx, "dmsetup", "remove", b.dmName(name)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: dmsetup remove %s: %v", hostedha.ErrBrokerDisconnection, name, err)
		}
	}

	b.connected = false

	if firstErr != nil {
		return firstErr
	}

	return nil
}

func (b *BlockBackend) Filename(service string) (string, int64, bool) {
	if !b.connected {
		return "", 0, false
	}

	if _, ok := b.services[service]; !ok {
		return "", 0, false
	}

	return "/dev/mapper/" + b.dmName(service), 0, true
}

// Create writes the info-block table for services, then reconnects to
// materialize the corresponding dm devices.
func (b *BlockBackend) Create(ctx context.Context, services ServiceMap) error {
	blocks := createInfoBlocks(services)

	f, err := b.fs.OpenFile(b.device, os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", hostedha.ErrBrokerConnection, b.device, err)
	}
	defer f.Close()

	for i, blk := range blocks {
		if _, err := f.Seek(int64(i)*InfoBlockSize, io.SeekStart); err != nil {
			return fmt.Errorf("%w: seeking block %d: %v", hostedha.ErrBrokerConnection, i, err)
		}

		if _, err := f.Write(blk); err != nil {
			return fmt.Errorf("%w: writing block %d: %v", hostedha.ErrBrokerConnection, i, err)
		}
	}

	if err := b.Disconnect(ctx); err != nil {
		return err
	}

	return b.Connect(ctx)
}

func (b *BlockBackend) DirectIO() bool { return true }

var _ Backend = (*BlockBackend)(nil)

// createInfoBlocks implements spec §4.C's "create info blocks from a
// service map" algorithm: sort services by size ascending, lay the
// info-table out as the first N blocks (N = len(services)), data starting
// at block N, one piece per service, chained next = (index+1) mod N.
func createInfoBlocks(services ServiceMap) [][]byte {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if services[names[i]] != services[names[j]] {
			return services[names[i]] < services[names[j]]
		}

		return names[i] < names[j]
	})

	n := uint64(len(names))
	dataStart := n

	blocks := make([][]byte, 0, n)

	for i, name := range names {
		sizeBlocks := ceilDivBlocks(services[name])

		next := uint64(i+1) % n

		blk := encodeInfoBlock(next, name, []piece{{Start: dataStart, Size: sizeBlocks}})
		blocks = append(blocks, blk)

		dataStart += sizeBlocks
	}

	return blocks
}

func ceilDivBlocks(sizeBytes int64) uint64 {
	if sizeBytes <= 0 {
		return 0
	}

	return uint64((sizeBytes + InfoBlockSize - 1) / InfoBlockSize)
}
