package backend

import (
	"encoding/binary"
	"hash/crc32"
)

// Info-block field offsets within one 512-byte record (spec §3, §6).
// All multi-byte fields are big-endian ("network byte order").
const (
	offNext        = 0  // uint64
	offName        = 8  // 64 bytes: 1 length byte + 63 name bytes
	nameFieldSize  = 64
	maxNameLen     = nameFieldSize - 1
	offPieces      = offName + nameFieldSize // repeated (start,size) uint64 pairs
	pieceSize      = 16                      // two uint64s
	crcSize        = 4
)

// maxPiecesPerBlock bounds how many (start,size) pairs a 512-byte block can
// hold after the header and before the trailing CRC, counting the sentinel
// pair itself. Used to length-bound chain parsing against corrupt/runaway
// data (spec §4.C: "piece chains are validated length-bounded").
const maxPiecesPerBlock = (InfoBlockSize - offPieces - crcSize) / pieceSize

// piece is a (start_block, block_count) span, spec §3 Info-Block / Piece.
type piece struct {
	Start uint64
	Size  uint64
}

// infoBlock is the decoded form of one 512-byte info-block record.
type infoBlock struct {
	Next   uint64
	Name   string
	Pieces []piece
	Valid  bool
}

// encodeInfoBlock serializes name/pieces/next into a 512-byte record and
// computes its trailing CRC32 (IEEE polynomial, the same table
// hash/crc32.IEEETable / zlib uses).
func encodeInfoBlock(next uint64, name string, pieces []piece) []byte {
	buf := make([]byte, InfoBlockSize)

	binary.BigEndian.PutUint64(buf[offNext:], next)
	encodeName(buf[offName:offName+nameFieldSize], name)

	off := offPieces
	for _, p := range pieces {
		binary.BigEndian.PutUint64(buf[off:], p.Start)
		binary.BigEndian.PutUint64(buf[off+8:], p.Size)
		off += pieceSize
	}

	// Sentinel (0,0).
	binary.BigEndian.PutUint64(buf[off:], 0)
	binary.BigEndian.PutUint64(buf[off+8:], 0)
	off += pieceSize

	crc := crc32.ChecksumIEEE(buf[:off])
	binary.BigEndian.PutUint32(buf[off:], crc)

	// off+crcSize may be less than InfoBlockSize; the remainder is
	// unused padding and stays zero.
	return buf
}

func encodeName(dst []byte, name string) {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	dst[0] = byte(len(name))
	copy(dst[1:], name)
}

// decodeInfoBlock parses one 512-byte record, following (start,size) pairs
// until the (0,0) sentinel, and validates the trailing CRC32 over the
// consumed prefix (header through and including the sentinel). The padding
// after the CRC must be all zero bytes, as encodeInfoBlock writes it;
// anything else marks the block invalid.
func decodeInfoBlock(buf []byte) infoBlock {
	var b infoBlock

	if len(buf) < InfoBlockSize {
		return b
	}

	b.Next = binary.BigEndian.Uint64(buf[offNext:])
	b.Name = decodeName(buf[offName : offName+nameFieldSize])

	off := offPieces

	for i := 0; i < maxPiecesPerBlock; i++ {
		if off+pieceSize > InfoBlockSize-crcSize {
			// Ran out of room before hitting a sentinel: corrupt.
			return b
		}

		start := binary.BigEndian.Uint64(buf[off:])
		size := binary.BigEndian.Uint64(buf[off+8:])
		off += pieceSize

		if start == 0 && size == 0 {
			// Sentinel consumed; off now points past it.
			storedCRC := binary.BigEndian.Uint32(buf[off:])
			computedCRC := crc32.ChecksumIEEE(buf[:off])

			b.Valid = storedCRC == computedCRC

			for _, pad := range buf[off+crcSize : InfoBlockSize] {
				if pad != 0 {
					b.Valid = false
					break
				}
			}

			return b
		}

		b.Pieces = append(b.Pieces, piece{Start: start, Size: size})
	}

	// Never hit a sentinel within the bound: corrupt/runaway chain.
	return b
}

func decodeName(field []byte) string {
	n := int(field[0])
	if n > maxNameLen {
		n = maxNameLen
	}

	return string(field[1 : 1+n])
}
