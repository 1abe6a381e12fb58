package clientview

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRecord_RoundTrip(t *testing.T) {
	fields := map[string]string{
		"score": "3400",
		"ts":    "1700000000",
	}

	buf, err := encodeRecord(fields)
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}

	got, err := decodeRecord(buf)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}

	if diff := cmp.Diff(fields, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecord_AbsentOnZeroFirstByte(t *testing.T) {
	buf := make([]byte, 4096)

	_, err := decodeRecord(buf)
	if !errors.Is(err, ErrRecordAbsent) {
		t.Fatalf("decodeRecord(zeroed) = %v, want ErrRecordAbsent", err)
	}
}

func TestDecodeRecord_TolerantOfZeroPaddingAfterFields(t *testing.T) {
	fields := map[string]string{"score": "1"}

	buf, err := encodeRecord(fields)
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}

	padded := append(buf, make([]byte, 4096-len(buf))...)

	got, err := decodeRecord(padded)
	if err != nil {
		t.Fatalf("decodeRecord(padded): %v", err)
	}

	if diff := cmp.Diff(fields, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRecord_RejectsOversizedValue(t *testing.T) {
	_, err := encodeRecord(map[string]string{"k": string(make([]byte, 0x10000))})
	if err == nil {
		t.Fatalf("expected error for oversized value")
	}
}
