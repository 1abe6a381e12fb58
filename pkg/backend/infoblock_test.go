package backend

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// -----------------------------------------------------------------------------
// encode/decode round-trip
// -----------------------------------------------------------------------------

func TestEncodeDecodeInfoBlock_RoundTrip(t *testing.T) {
	pieces := []piece{{Start: 5, Size: 102400}}
	buf := encodeInfoBlock(0, "c", pieces)

	got := decodeInfoBlock(buf)

	if !got.Valid {
		t.Fatalf("decoded block not valid")
	}

	if got.Name != "c" {
		t.Fatalf("Name=%q, want %q", got.Name, "c")
	}

	if diff := cmp.Diff(pieces, got.Pieces); diff != "" {
		t.Fatalf("Pieces mismatch (-want +got):\n%s", diff)
	}

	if got.Next != 0 {
		t.Fatalf("Next=%d, want 0", got.Next)
	}
}

func TestEncodeDecodeInfoBlock_CRCCoversHeaderThroughSentinel(t *testing.T) {
	buf := encodeInfoBlock(7, "metadata", []piece{{Start: 1, Size: 2}, {Start: 10, Size: 5}})

	got := decodeInfoBlock(buf)
	if !got.Valid {
		t.Fatalf("expected valid block")
	}

	if got.Next != 7 {
		t.Fatalf("Next=%d, want 7", got.Next)
	}
}

// TestDecodeInfoBlock_CRCMismatchIsFatal is testable property #1 /
// scenario S4: flipping one byte anywhere in a valid info-block must
// invalidate it.
func TestDecodeInfoBlock_CRCMismatchIsFatal(t *testing.T) {
	buf := encodeInfoBlock(0, "a", []piece{{Start: 3, Size: 1}})

	for i := range buf {
		corrupted := append([]byte(nil), buf...)
		corrupted[i] ^= 0xFF

		got := decodeInfoBlock(corrupted)
		if got.Valid {
			t.Fatalf("byte %d: flipped block still decoded as valid", i)
		}
	}
}

func TestEncodeName_TruncatesOverlongNames(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}

	buf := encodeInfoBlock(0, string(long), nil)
	got := decodeInfoBlock(buf)

	if !got.Valid {
		t.Fatalf("expected valid block")
	}

	if len(got.Name) != maxNameLen {
		t.Fatalf("len(Name)=%d, want %d", len(got.Name), maxNameLen)
	}
}

// -----------------------------------------------------------------------------
// createInfoBlocks — scenario S3
// -----------------------------------------------------------------------------

func TestCreateInfoBlocks_S3(t *testing.T) {
	services := ServiceMap{"a": 300, "b": 512, "c": 52428800}

	blocks := createInfoBlocks(services)

	if len(blocks) != 3 {
		t.Fatalf("len(blocks)=%d, want 3", len(blocks))
	}

	decoded := make([]infoBlock, len(blocks))
	for i, b := range blocks {
		decoded[i] = decodeInfoBlock(b)

		if !decoded[i].Valid {
			t.Fatalf("block %d not valid", i)
		}
	}

	byName := map[string]infoBlock{}
	for _, d := range decoded {
		byName[d.Name] = d
	}

	wantPieces := map[string][]piece{
		"a": {{Start: 3, Size: 1}},
		"b": {{Start: 4, Size: 1}},
		"c": {{Start: 5, Size: 102400}},
	}

	for name, want := range wantPieces {
		got, ok := byName[name]
		if !ok {
			t.Fatalf("service %q missing from output", name)
		}

		if len(got.Pieces) != 1 || got.Pieces[0] != want[0] {
			t.Fatalf("service %q pieces=%v, want %v", name, got.Pieces, want)
		}
	}

	// Chain order follows ascending size: a -> b -> c -> 0.
	if byName["a"].Next != 1 || byName["b"].Next != 2 || byName["c"].Next != 0 {
		t.Fatalf("chain next links = a:%d b:%d c:%d, want a:1 b:2 c:0",
			byName["a"].Next, byName["b"].Next, byName["c"].Next)
	}
}

func TestCreateInfoBlocks_PieceSizeIsBlockCeiling(t *testing.T) {
	blocks := createInfoBlocks(ServiceMap{"only": 1})

	d := decodeInfoBlock(blocks[0])
	if !d.Valid {
		t.Fatalf("expected valid block")
	}

	if got, want := d.Pieces[0].Size, uint64(1); got != want {
		t.Fatalf("Size=%d, want %d (ceil(1/512))", got, want)
	}
}
