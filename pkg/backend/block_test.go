package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/ovirt/hosted-engine-ha/internal/cmdrunner"
	"github.com/ovirt/hosted-engine-ha/internal/osfs"
)

func writeInfoBlocksToFake(t *testing.T, fs *osfs.Fake, device string, blocks [][]byte) {
	t.Helper()

	var all []byte
	for _, b := range blocks {
		all = append(all, b...)
	}

	if err := fs.WriteFileAtomic(device, all, 0o644); err != nil {
		t.Fatalf("seeding device: %v", err)
	}
}

func TestBlockBackend_ConnectBuildsServiceTableAndDMDevices(t *testing.T) {
	fs := osfs.NewFake()
	runner := &cmdrunner.Fake{}

	services := ServiceMap{"metadata": 4096, "lockspace": 4096}
	blocks := createInfoBlocks(services)

	device := "/dev/sdx"
	writeInfoBlocksToFake(t, fs, device, blocks)

	b := NewBlockBackend(fs, runner, device, "ha-dm")

	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if len(runner.Calls) != 2 {
		t.Fatalf("dmsetup create calls=%d, want 2", len(runner.Calls))
	}

	for _, call := range runner.Calls {
		if call.Name != "dmsetup" || call.Args[0] != "create" {
			t.Fatalf("unexpected call: %+v", call)
		}
	}

	path, offset, ok := b.Filename("metadata")
	if !ok {
		t.Fatalf("Filename(metadata) not found after connect")
	}

	if offset != 0 {
		t.Fatalf("offset=%d, want 0", offset)
	}

	wantPath := "/dev/mapper/ha-dm/metadata"
	if path != wantPath {
		t.Fatalf("path=%q, want %q", path, wantPath)
	}
}

func TestBlockBackend_Connect_CorruptBlockFails(t *testing.T) {
	fs := osfs.NewFake()
	runner := &cmdrunner.Fake{}

	blocks := createInfoBlocks(ServiceMap{"metadata": 4096})
	blocks[0][10] ^= 0xFF // corrupt the only block

	device := "/dev/sdx"
	writeInfoBlocksToFake(t, fs, device, blocks)

	b := NewBlockBackend(fs, runner, device, "ha-dm")

	err := b.Connect(context.Background())
	if err == nil {
		t.Fatalf("expected error connecting to corrupted device")
	}
}

func TestBlockBackend_Disconnect_RemovesEachDMDevice(t *testing.T) {
	fs := osfs.NewFake()
	runner := &cmdrunner.Fake{}

	blocks := createInfoBlocks(ServiceMap{"metadata": 4096, "lockspace": 4096})
	device := "/dev/sdx"
	writeInfoBlocksToFake(t, fs, device, blocks)

	b := NewBlockBackend(fs, runner, device, "ha-dm")

	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	runner.Calls = nil

	if err := b.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if len(runner.Calls) != 2 {
		t.Fatalf("dmsetup remove calls=%d, want 2", len(runner.Calls))
	}

	if _, _, ok := b.Filename("metadata"); ok {
		t.Fatalf("Filename should fail after Disconnect")
	}
}

func TestBlockBackend_Create_WritesTableThenReconnects(t *testing.T) {
	fs := osfs.NewFake()
	runner := &cmdrunner.Fake{}

	device := "/dev/sdx"
	// Pre-create the device file so OpenFile(O_WRONLY) succeeds.
	if err := fs.WriteFileAtomic(device, make([]byte, 1<<20), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b := NewBlockBackend(fs, runner, device, "ha-dm")

	services := ServiceMap{"metadata": 4096, "lockspace": 4096}
	if err := b.Create(context.Background(), services); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, _, ok := b.Filename("metadata"); !ok {
		t.Fatalf("Filename(metadata) not resolvable after Create")
	}
}

func TestBlockBackend_DirectIOIsAlwaysTrue(t *testing.T) {
	b := NewBlockBackend(osfs.NewFake(), &cmdrunner.Fake{}, "/dev/sdx", "ha-dm")

	if !b.DirectIO() {
		t.Fatalf("DirectIO()=false, want true for block backend")
	}
}

func TestBlockBackend_Kind(t *testing.T) {
	b := NewBlockBackend(osfs.NewFake(), &cmdrunner.Fake{}, "/dev/sdx", "ha-dm")

	if b.Kind() != Block {
		t.Fatalf("Kind()=%v, want Block", b.Kind())
	}
}

func TestBlockBackend_Connect_PropagatesDMSetupFailure(t *testing.T) {
	fs := osfs.NewFake()
	runner := &cmdrunner.Fake{
		Results: []cmdrunner.FakeResult{{Err: errors.New("boom")}},
	}

	blocks := createInfoBlocks(ServiceMap{"metadata": 4096})
	device := "/dev/sdx"
	writeInfoBlocksToFake(t, fs, device, blocks)

	b := NewBlockBackend(fs, runner, device, "ha-dm")

	if err := b.Connect(context.Background()); err == nil {
		t.Fatalf("expected dmsetup failure to propagate")
	}
}
