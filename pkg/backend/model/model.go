// Package model provides a deliberately simple, independent reimplementation
// of the block backend's info-table layout algorithm (spec §4.C), used as
// an oracle in property-based tests rather than a mirror of the bit-exact
// encoding.
//
// The model favors clarity over performance: it never encodes or decodes
// bytes, it only predicts the logical (name -> piece, chain-order) result
// that backend.createInfoBlocks + backend.parse should agree on.
package model

import "sort"

// InfoBlockSize mirrors backend.InfoBlockSize without importing the
// package under test, keeping the model decoupled from the implementation
// it verifies.
const InfoBlockSize = 512

// Piece is a (start_block, block_count) span, spec §3.
type Piece struct {
	Start uint64
	Size  uint64
}

// ServiceLayout is the predicted outcome for one service: its piece list
// and its position in the chain (0-based, ascending size order).
type ServiceLayout struct {
	Name      string
	Pieces    []Piece
	ChainNext uint64
}

// Layout predicts the full table layout for a service map, matching spec
// §4.C's "create info blocks from a service map" algorithm: sort services
// by size ascending (ties broken by name for determinism), info-table
// occupies the first N blocks, data starts at block N, each service gets a
// single piece, and data_start advances by ceil(size/512) per service.
func Layout(services map[string]int64) []ServiceLayout {
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

	layouts := make([]ServiceLayout, 0, n)

	for i, name := range names {
		size := ceilDivBlocks(services[name])

		layouts = append(layouts, ServiceLayout{
			Name:      name,
			Pieces:    []Piece{{Start: dataStart, Size: size}},
			ChainNext: uint64(i+1) % n,
		})

		dataStart += size
	}

	return layouts
}

func ceilDivBlocks(sizeBytes int64) uint64 {
	if sizeBytes <= 0 {
		return 0
	}

	return uint64((sizeBytes + InfoBlockSize - 1) / InfoBlockSize)
}
