package graph

import (
	"math/bits"

	"github.com/zhaoc1/mccortex/bkmer"
)

// Edges is one byte of adjacency for a (node, color): the low nibble marks
// which of A,C,G,T extend the node in the forward orientation, the high
// nibble the reverse orientation.
type Edges uint8

// EdgeBit returns the bit for a single-base extension n in orientation o.
func EdgeBit(n bkmer.Nuc, o bkmer.Orientation) Edges {
	return Edges(1) << (uint8(n) + 4*uint8(o))
}

// WithOrientation extracts the nibble of outgoing extensions for o.
func (e Edges) WithOrientation(o bkmer.Orientation) uint8 {
	return uint8(e>>(4*uint8(o))) & 0xf
}

// Has reports whether the extension (n, o) is present.
func (e Edges) Has(n bkmer.Nuc, o bkmer.Orientation) bool {
	return e&EdgeBit(n, o) != 0
}

// Outdegree counts the outgoing extensions in orientation o.
func (e Edges) Outdegree(o bkmer.Orientation) int {
	return bits.OnesCount8(e.WithOrientation(o))
}

// Indegree counts extensions in the opposite orientation, i.e. the ways
// into the node when traversing with orientation o.
func (e Edges) Indegree(o bkmer.Orientation) int {
	return e.Outdegree(o.Opposite())
}

// Covg is a saturating per-(node, color) read count.
type Covg uint32

// CovgMax is the saturation ceiling.
const CovgMax = ^Covg(0)
