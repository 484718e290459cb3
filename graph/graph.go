// Package graph holds the in-memory colored de Bruijn graph: a hash table
// of canonical kmers with per-color coverage counts and edge bytes.
package graph

import (
	"sync"
	"sync/atomic"

	"github.com/zhaoc1/mccortex/bkmer"
)

// Graph is the kmer table plus per-slot payload. Nodes are identified by
// hkey, the slot index returned by the table; payload arrays are indexed
// hkey*NumCols+col. The access-mode contract of Table carries over: loads
// may insert concurrently, traversal is shared-read, cleaning is exclusive.
type Graph struct {
	KmerSize int
	NumCols  int
	Table    *Table
	Infos    []GraphInfo

	covgs []Covg
	edges []Edges

	edgeLocks [256]sync.Mutex
}

// Next describes one single-base extension out of a node.
type Next struct {
	Node   uint64
	Orient bkmer.Orientation
	Nuc    bkmer.Nuc
	BKmer  bkmer.Kmer // oriented in the direction of travel
}

// New allocates a graph sized for nkmers keys across ncols colors.
func New(ksize, ncols int, nkmers int64) *Graph {
	t := NewTable(nkmers)
	n := (t.Capacity() + 1) * uint64(ncols)
	return &Graph{
		KmerSize: ksize,
		NumCols:  ncols,
		Table:    t,
		Infos:    make([]GraphInfo, ncols),
		covgs:    make([]Covg, n),
		edges:    make([]Edges, n),
	}
}

// Close releases the table mapping.
func (g *Graph) Close() error { return g.Table.Close() }

// NumKmers returns the live node count.
func (g *Graph) NumKmers() int64 { return g.Table.NumKmers() }

// Capacity returns the hkey upper bound.
func (g *Graph) Capacity() uint64 { return g.Table.Capacity() }

// FindOrInsert canonicalizes bk and inserts it if new. The returned
// orientation records which strand of the stored key bk was.
func (g *Graph) FindOrInsert(bk bkmer.Kmer) (hkey uint64, orient bkmer.Orientation, inserted bool, err error) {
	bkey, orient := bk.Canonical(g.KmerSize)
	hkey, inserted, err = g.Table.FindOrInsert(bkey)
	return hkey, orient, inserted, err
}

// Find canonicalizes bk and looks it up.
func (g *Graph) Find(bk bkmer.Kmer) (hkey uint64, orient bkmer.Orientation, ok bool) {
	bkey, orient := bk.Canonical(g.KmerSize)
	hkey = g.Table.Find(bkey)
	return hkey, orient, hkey != KeyNil
}

// BKmer returns the canonical kmer at hkey.
func (g *Graph) BKmer(hkey uint64) bkmer.Kmer { return g.Table.KmerAt(hkey) }

// OrientedBKmer returns the kmer at hkey read in orientation o.
func (g *Graph) OrientedBKmer(hkey uint64, o bkmer.Orientation) bkmer.Kmer {
	return g.BKmer(hkey).Oriented(g.KmerSize, o)
}

// Orientation returns the orientation that reads the node at hkey as bk.
func (g *Graph) Orientation(hkey uint64, bk bkmer.Kmer) bkmer.Orientation {
	if g.BKmer(hkey) == bk {
		return bkmer.Forward
	}
	return bkmer.Reverse
}

func (g *Graph) payloadIdx(hkey uint64, col int) uint64 {
	return hkey*uint64(g.NumCols) + uint64(col)
}

// Covg returns the coverage of (hkey, col).
func (g *Graph) Covg(hkey uint64, col int) Covg {
	return Covg(atomic.LoadUint32((*uint32)(&g.covgs[g.payloadIdx(hkey, col)])))
}

// AddCovg increments coverage, saturating at CovgMax. Safe during
// concurrent loads.
func (g *Graph) AddCovg(hkey uint64, col int, delta Covg) {
	p := (*uint32)(&g.covgs[g.payloadIdx(hkey, col)])
	for {
		cur := atomic.LoadUint32(p)
		next := cur + uint32(delta)
		if next < cur {
			next = uint32(CovgMax)
		}
		if cur == next || atomic.CompareAndSwapUint32(p, cur, next) {
			return
		}
	}
}

// SumCovg sums coverage across colors, saturating.
func (g *Graph) SumCovg(hkey uint64) Covg {
	var sum uint64
	for col := 0; col < g.NumCols; col++ {
		sum += uint64(g.Covg(hkey, col))
	}
	if sum > uint64(CovgMax) {
		return CovgMax
	}
	return Covg(sum)
}

// HasCol reports whether the node carries any coverage in col.
func (g *Graph) HasCol(hkey uint64, col int) bool { return g.Covg(hkey, col) > 0 }

// ColEdges returns the edge byte for (hkey, col).
func (g *Graph) ColEdges(hkey uint64, col int) Edges {
	return g.edges[g.payloadIdx(hkey, col)]
}

// UnionEdges ORs the edge bytes of all colors.
func (g *Graph) UnionEdges(hkey uint64) Edges {
	var e Edges
	base := g.payloadIdx(hkey, 0)
	for col := 0; col < g.NumCols; col++ {
		e |= g.edges[base+uint64(col)]
	}
	return e
}

// SetEdge adds the extension (n, o) to (hkey, col). Striped-locked so
// concurrent loaders can update the same byte.
func (g *Graph) SetEdge(hkey uint64, col int, n bkmer.Nuc, o bkmer.Orientation) {
	mu := &g.edgeLocks[hkey&255]
	mu.Lock()
	g.edges[g.payloadIdx(hkey, col)] |= EdgeBit(n, o)
	mu.Unlock()
}

// SetEdgeByte ORs a whole edge byte into (hkey, col).
func (g *Graph) SetEdgeByte(hkey uint64, col int, e Edges) {
	mu := &g.edgeLocks[hkey&255]
	mu.Lock()
	g.edges[g.payloadIdx(hkey, col)] |= e
	mu.Unlock()
}

// ClearEdgeAllCols removes the extension (n, o) from every color of hkey.
// Exclusive-mutate mode only.
func (g *Graph) ClearEdgeAllCols(hkey uint64, n bkmer.Nuc, o bkmer.Orientation) {
	bit := EdgeBit(n, o)
	base := g.payloadIdx(hkey, 0)
	for col := 0; col < g.NumCols; col++ {
		g.edges[base+uint64(col)] &^= bit
	}
}

// LinkNodes records the edge between two consecutive oriented kmers of a
// read: prev extends forward with the last base of next's kmer, and next
// extends backward with the complement of prev's first base.
func (g *Graph) LinkNodes(col int, prev, next Next) {
	g.SetEdge(prev.Node, col, next.BKmer.LastNuc(), prev.Orient)
	g.SetEdge(next.Node, col, prev.BKmer.FirstNuc(g.KmerSize).Complement(), next.Orient.Opposite())
}

// DelNode removes hkey and zeroes its payload. Exclusive-mutate mode only;
// callers are responsible for clearing edges pointing at the node from its
// neighbors.
func (g *Graph) DelNode(hkey uint64) {
	base := g.payloadIdx(hkey, 0)
	for col := 0; col < g.NumCols; col++ {
		g.covgs[base+uint64(col)] = 0
		g.edges[base+uint64(col)] = 0
	}
	g.Table.Remove(hkey)
}

// NextNodes expands the extensions of the oriented kmer bk selected by the
// edge nibble (as returned by Edges.WithOrientation) into out, returning
// the count. Extensions whose kmer is missing from the table are skipped.
func (g *Graph) NextNodes(bk bkmer.Kmer, nibble uint8, out *[4]Next) int {
	n := 0
	for nuc := bkmer.NucA; nuc <= bkmer.NucT; nuc++ {
		if nibble&(1<<uint8(nuc)) == 0 {
			continue
		}
		nk := bk.ShiftLeftAdd(g.KmerSize, nuc)
		bkey, orient := nk.Canonical(g.KmerSize)
		hkey := g.Table.Find(bkey)
		if hkey == KeyNil {
			continue
		}
		out[n] = Next{Node: hkey, Orient: orient, Nuc: nuc, BKmer: nk}
		n++
	}
	return n
}

// PrevNodes lists the nodes with an edge into (hkey, orient), excluding the
// backward step that re-reads loseNuc (the first base of the kmer the walk
// just left). Orientations in out point toward hkey, matching the frame a
// path stored at the predecessor would be read in.
func (g *Graph) PrevNodes(hkey uint64, orient bkmer.Orientation, exclude bool, loseNuc bkmer.Nuc, out *[4]Next) int {
	back := orient.Opposite()
	nibble := g.UnionEdges(hkey).WithOrientation(back)
	if exclude {
		nibble &^= 1 << uint8(loseNuc.Complement())
	}
	rc := g.OrientedBKmer(hkey, back)
	n := g.NextNodes(rc, nibble, out)
	for i := 0; i < n; i++ {
		out[i].Orient = out[i].Orient.Opposite()
	}
	return n
}
