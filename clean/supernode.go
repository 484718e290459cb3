// Package clean implements graph cleaning: tip clipping and supernode
// coverage thresholding, with threshold inference from the supernode
// coverage histogram.
package clean

import (
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
)

// OrientedNode is one node of a supernode, read in walk order.
type OrientedNode struct {
	Node   uint64
	Orient bkmer.Orientation
}

// extend grows sn from its last node while the walk is unambiguous: the
// current node has exactly one extension and the next node has exactly one
// way in. Cycles terminate when the walk reaches sn's first node again.
func extend(g *graph.Graph, sn []OrientedNode) []OrientedNode {
	var out [4]graph.Next
	for {
		cur := sn[len(sn)-1]
		nibble := g.UnionEdges(cur.Node).WithOrientation(cur.Orient)
		n := g.NextNodes(g.OrientedBKmer(cur.Node, cur.Orient), nibble, &out)
		if n != 1 {
			return sn
		}
		next := OrientedNode{out[0].Node, out[0].Orient}
		if g.UnionEdges(next.Node).Indegree(next.Orient) != 1 {
			return sn
		}
		if next == sn[0] || next.Node == cur.Node {
			return sn // closed a cycle or stepped onto a self-loop
		}
		sn = append(sn, next)
	}
}

// Supernode returns the maximal unambiguous path through hkey, reusing
// buf. The returned slice is ordered; hkey appears somewhere inside it.
func Supernode(g *graph.Graph, hkey uint64, buf []OrientedNode) []OrientedNode {
	buf = append(buf[:0], OrientedNode{hkey, bkmer.Reverse})
	buf = extend(g, buf)
	// Flip the walk so it runs in the forward frame of hkey, then grow
	// the other end.
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	for i := range buf {
		buf[i].Orient = buf[i].Orient.Opposite()
	}
	return extend(g, buf)
}

// deadEnd reports whether the supernode cannot be entered from before its
// first node (mirrored for the last node by passing it flipped).
func deadEnd(g *graph.Graph, end OrientedNode) bool {
	return g.UnionEdges(end.Node).Indegree(end.Orient) == 0
}

// MeanCovg returns the rounded mean coverage of the supernode in col, or
// summed across colors when col is negative.
func MeanCovg(g *graph.Graph, sn []OrientedNode, col int) graph.Covg {
	var sum uint64
	for _, n := range sn {
		if col < 0 {
			sum += uint64(g.SumCovg(n.Node))
		} else {
			sum += uint64(g.Covg(n.Node, col))
		}
	}
	mean := (sum + uint64(len(sn))/2) / uint64(len(sn))
	if mean > uint64(graph.CovgMax) {
		return graph.CovgMax
	}
	return graph.Covg(mean)
}

// prune deletes every node of sn and clears the edge bits pointing at them
// from surviving neighbors.
func prune(g *graph.Graph, sn []OrientedNode) {
	doomed := make(map[uint64]bool, len(sn))
	for _, n := range sn {
		doomed[n.Node] = true
	}
	var out [4]graph.Next
	for _, n := range sn {
		for _, o := range [2]bkmer.Orientation{bkmer.Forward, bkmer.Reverse} {
			bk := g.OrientedBKmer(n.Node, o)
			nibble := g.UnionEdges(n.Node).WithOrientation(o)
			cnt := g.NextNodes(bk, nibble, &out)
			for i := 0; i < cnt; i++ {
				if doomed[out[i].Node] {
					continue
				}
				g.ClearEdgeAllCols(out[i].Node,
					bk.FirstNuc(g.KmerSize).Complement(),
					out[i].Orient.Opposite())
			}
		}
	}
	for _, n := range sn {
		g.DelNode(n.Node)
	}
}

// visitAll marks every node of sn.
func visitAll(v BitSet, sn []OrientedNode) {
	for _, n := range sn {
		v.Set(n.Node)
	}
}

// forEachSupernode runs fn over each unvisited supernode. Exclusive
// access; v is dirtied.
func forEachSupernode(g *graph.Graph, v BitSet, fn func(sn []OrientedNode)) {
	v.MarkDirty()
	var buf []OrientedNode
	capacity := g.Capacity()
	for hkey := uint64(1); hkey <= capacity; hkey++ {
		if !g.Table.Occupied(hkey) || v.Test(hkey) {
			continue
		}
		buf = Supernode(g, hkey, buf)
		visitAll(v, buf)
		fn(buf)
	}
}

// Seq reconstructs the supernode's sequence: the first node's oriented
// kmer followed by the last base of each subsequent node.
func Seq(g *graph.Graph, sn []OrientedNode) string {
	k := g.KmerSize
	buf := make([]byte, 0, k+len(sn)-1)
	buf = append(buf, g.OrientedBKmer(sn[0].Node, sn[0].Orient).String(k)...)
	for _, n := range sn[1:] {
		buf = append(buf, g.OrientedBKmer(n.Node, n.Orient).LastNuc().Char())
	}
	return string(buf)
}
