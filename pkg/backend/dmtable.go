package backend

import (
	"fmt"
	"strings"
)

// composeDMTable builds a device-mapper linear table for pieces against
// device, one line per piece: "<logical_start> <length> linear <device>
// <physical_start>", all in 512-byte sectors, logical offsets accumulating
// from 0. Spec §4.C / §6, tested bit-exactly by scenario S5.
func composeDMTable(device string, pieces []piece) string {
	lines := make([]string, 0, len(pieces))

	var logicalStart uint64

	for _, p := range pieces {
		lines = append(lines, fmt.Sprintf("%d %d linear %s %d", logicalStart, p.Size, device, p.Start))
		logicalStart += p.Size
	}

	return strings.Join(lines, "\n")
}
