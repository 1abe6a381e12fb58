package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	hostedha "github.com/ovirt/hosted-engine-ha"
	"github.com/ovirt/hosted-engine-ha/internal/cmdrunner"
	"github.com/ovirt/hosted-engine-ha/internal/osfs"
)

// FilesystemBackend resolves services as flat files under a discovered
// domain directory, or (in LV-backed mode) as symlinks into /dev/<sd_uuid>.
// Grounded on the shape of cuemby-warren's LocalDriver (base-path discovery
// + GetPath-style resolution), generalized to the spec's two-mode
// discovery (plain filesystem vs blockSD/LV) and sparse-file creation.
type FilesystemBackend struct {
	fs      osfs.FS
	runner  cmdrunner.Runner
	sdUUID  string
	domType string

	metadataDirPrefix string

	metadataDir string
	lvMode      bool
}

// NewFilesystemBackend constructs a backend bound to one storage domain.
// metadataDirPrefix is the LV name prefix ("<prefix>-<service>") used in
// LV-backed mode.
func NewFilesystemBackend(fs osfs.FS, runner cmdrunner.Runner, sdUUID, domType, metadataDirPrefix string) *FilesystemBackend {
	return &FilesystemBackend{
		fs:                fs,
		runner:            runner,
		sdUUID:            sdUUID,
		domType:           domType,
		metadataDirPrefix: metadataDirPrefix,
	}
}

func (b *FilesystemBackend) Kind() Kind { return Filesystem }

// Connect locates the domain directory under SDMountParent, descending into
// glusterSD when domType is glusterfs, matching the first child (in
// ReadDir order) that directly contains a directory named sdUUID. If the matched parent is literally
// "blockSD", connect switches to LV-backed mode and symlinks every
// "<prefix>-<service>" logical volume found under /dev/<sdUUID> into the
// metadata directory.
func (b *FilesystemBackend) Connect(_ context.Context) error {
	scanRoot := hostedha.SDMountParent
	if b.domType == "glusterfs" {
		scanRoot = filepath.Join(scanRoot, hostedha.GlusterSDSubdir)
	}

	parent, metadataDir, err := b.discoverDomainDir(scanRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", hostedha.ErrBrokerConnection, err)
	}

	b.metadataDir = metadataDir

	if err := b.fs.MkdirAll(b.metadataDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating metadata dir: %v", hostedha.ErrBrokerConnection, err)
	}

	if filepath.Base(parent) != hostedha.BlockSDMarker {
		b.lvMode = false
		return nil
	}

	b.lvMode = true

	return b.materializeLVSymlinks()
}

// discoverDomainDir scans root for a child directory containing a
// subdirectory named sdUUID, returning the matched parent and the resolved
// metadata directory path (<parent>/<child>/<sdUUID>).
func (b *FilesystemBackend) discoverDomainDir(root string) (parent, metadataDir string, err error) {
	entries, err := b.fs.ReadDir(root)
	if err != nil {
		return "", "", fmt.Errorf("scanning %s: %w", root, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		candidate := filepath.Join(root, e.Name(), b.sdUUID)

		exists, err := b.fs.Exists(candidate)
		if err != nil {
			return "", "", err
		}

		if exists {
			return filepath.Join(root, e.Name()), candidate, nil
		}
	}

	return "", "", fmt.Errorf("no domain directory under %s matches sd_uuid %s", root, b.sdUUID)
}

func (b *FilesystemBackend) materializeLVSymlinks() error {
	devDir := filepath.Join("/dev", b.sdUUID)

	entries, err := b.fs.ReadDir(devDir)
	if err != nil {
		return fmt.Errorf("%w: listing %s: %v", hostedha.ErrBrokerConnection, devDir, err)
	}

	prefixDash := b.metadataDirPrefix + "-"

	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefixDash) {
			continue
		}

		service := strings.TrimPrefix(e.Name(), prefixDash)
		target := filepath.Join(devDir, e.Name())
		link := filepath.Join(b.metadataDir, service)

		if exists, _ := b.fs.Exists(link); exists {
			continue
		}

		if err := b.fs.Symlink(target, link); err != nil {
			return fmt.Errorf("%w: symlinking %s -> %s: %v", hostedha.ErrBrokerConnection, link, target, err)
		}
	}

	return nil
}

func (b *FilesystemBackend) Disconnect(_ context.Context) error { return nil }

func (b *FilesystemBackend) Filename(service string) (string, int64, bool) {
	if b.metadataDir == "" {
		return "", 0, false
	}

	return filepath.Join(b.metadataDir, service), 0, true
}

// Create materializes each requested service: an LV via lvcreate in
// LV-backed mode, or a sparse flat file otherwise. It reconnects afterward
// so Filename/symlinks reflect the new layout.
func (b *FilesystemBackend) Create(ctx context.Context, services ServiceMap) error {
	for service, size := range services {
		if err := b.createOne(ctx, service, size); err != nil {
			return err
		}
	}

	if err := b.Disconnect(ctx); err != nil {
		return err
	}

	return b.Connect(ctx)
}

func (b *FilesystemBackend) createOne(ctx context.Context, service string, size int64) error {
	if b.lvMode {
		lvName := b.metadataDirPrefix + "-" + service
		_, err := b.runner.Run(ctx, "lvcreate",
			"-L", fmt.Sprintf("%dB", size),
			"-n", lvName,
			b.sdUUID,
		)
		if err != nil {
			return fmt.Errorf("%w: lvcreate %s: %v", hostedha.ErrBrokerConnection, lvName, err)
		}

		return nil
	}

	path := filepath.Join(b.metadataDir, service)

	f, err := b.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", hostedha.ErrBrokerConnection, path, err)
	}
	defer f.Close()

	if size <= 0 {
		return nil
	}

	// Sparse file: seek to size-1 and write a single NUL byte (spec §9
	// open question: the original's "0" byte is a literal zero, not the
	// character '0').
	if _, err := f.Seek(size-1, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seeking %s: %v", hostedha.ErrBrokerConnection, path, err)
	}

	if _, err := f.Write([]byte{0x00}); err != nil {
		return fmt.Errorf("%w: sizing %s: %v", hostedha.ErrBrokerConnection, path, err)
	}

	return nil
}

func (b *FilesystemBackend) DirectIO() bool { return b.lvMode }

var _ Backend = (*FilesystemBackend)(nil)
