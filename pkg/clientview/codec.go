// Package clientview implements the client-facing metadata view (spec
// §4.G): parsing the broker's opaque per-slot bytes into field maps and
// filtering/aggregating them by mode.
//
// Field semantics are out of scope for the core (spec §9 design note:
// "expose as opaque fixed-length slot blobs at the core, with parsing
// layered strictly above in the client view"); the codec here only needs
// to round-trip opaque string fields and recognize the reserved
// is-absent marker, not interpret what any particular field means.
package clientview

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ErrRecordAbsent is returned by decode when the slot's reserved
// is-absent marker (first byte 0x00) is set.
var ErrRecordAbsent = errors.New("record absent")

const maxFieldKeyLen = 255

// encodeRecord serializes fields as a sequence of
// [1-byte keylen][key][2-byte BE vallen][value], terminated by an explicit
// zero keylen byte (which also occurs naturally as zero padding once the
// caller right-pads the slot, the same chained-sentinel trick the
// info-block codec uses). Keys are written in sorted order for
// deterministic output.
func encodeRecord(fields map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var buf []byte

	for _, k := range keys {
		if len(k) == 0 || len(k) > maxFieldKeyLen {
			return nil, fmt.Errorf("clientview: field key %q has invalid length", k)
		}

		v := fields[k]
		if len(v) > 0xFFFF {
			return nil, fmt.Errorf("clientview: field %q value too large (%d bytes)", k, len(v))
		}

		buf = append(buf, byte(len(k)))
		buf = append(buf, k...)

		var vlen [2]byte
		binary.BigEndian.PutUint16(vlen[:], uint16(len(v)))
		buf = append(buf, vlen[:]...)
		buf = append(buf, v...)
	}

	// Trailing zero keylen sentinel, matching the info-block chain's
	// (0,0) terminator convention.
	buf = append(buf, 0x00)

	return buf, nil
}

// decodeRecord parses a slot payload into its field map. An all-zero (or
// empty) buffer is ErrRecordAbsent.
func decodeRecord(buf []byte) (map[string]string, error) {
	if len(buf) == 0 || buf[0] == 0x00 {
		return nil, ErrRecordAbsent
	}

	fields := make(map[string]string)
	pos := 0

	for pos < len(buf) {
		keyLen := int(buf[pos])
		pos++

		if keyLen == 0 {
			break
		}

		if pos+keyLen > len(buf) {
			return nil, fmt.Errorf("clientview: truncated key at offset %d", pos)
		}

		key := string(buf[pos : pos+keyLen])
		pos += keyLen

		if pos+2 > len(buf) {
			return nil, fmt.Errorf("clientview: truncated value length at offset %d", pos)
		}

		valLen := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2

		if pos+valLen > len(buf) {
			return nil, fmt.Errorf("clientview: truncated value at offset %d", pos)
		}

		fields[key] = string(buf[pos : pos+valLen])
		pos += valLen
	}

	return fields, nil
}
