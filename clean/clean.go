package clean

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/graph"
)

// CovgHistCap caps the supernode coverage histogram.
const CovgHistCap = 1000

// LenHistCap caps the supernode length histogram, in kmers.
const LenHistCap = 2000

// RemoveTips deletes every tip shorter than maxLen kmers: supernodes with
// a dead end on at least one side. Exclusive access required. Returns the
// number of nodes removed.
func RemoveTips(g *graph.Graph, maxLen int, v BitSet) int {
	removed := 0
	var doomed [][]OrientedNode
	forEachSupernode(g, v, func(sn []OrientedNode) {
		if len(sn) >= maxLen {
			return
		}
		first := sn[0]
		last := sn[len(sn)-1]
		last.Orient = last.Orient.Opposite()
		if deadEnd(g, first) || deadEnd(g, last) {
			doomed = append(doomed, append([]OrientedNode(nil), sn...))
		}
	})
	for _, sn := range doomed {
		prune(g, sn)
		removed += len(sn)
	}
	log.Printf("[clean] removed %d nodes in %d tips shorter than %d kmers",
		removed, len(doomed), maxLen)
	return removed
}

// SupernodeCovgHist builds the histogram of rounded supernode mean
// coverages in col (col < 0 sums colors). The graph is unchanged.
func SupernodeCovgHist(g *graph.Graph, col int, v BitSet) []uint64 {
	hist := make([]uint64, CovgHistCap)
	forEachSupernode(g, v, func(sn []OrientedNode) {
		m := MeanCovg(g, sn, col)
		if m < 1 {
			m = 1
		}
		if m >= CovgHistCap {
			m = CovgHistCap - 1
		}
		hist[m]++
	})
	return hist
}

// SupernodeLenHist builds the histogram of supernode lengths in kmers,
// capped at LenHistCap.
func SupernodeLenHist(g *graph.Graph, v BitSet) []uint64 {
	hist := make([]uint64, LenHistCap+1)
	forEachSupernode(g, v, func(sn []OrientedNode) {
		n := len(sn)
		if n > LenHistCap {
			n = LenHistCap
		}
		hist[n]++
	})
	return hist
}

// AutoThreshold inspects a supernode coverage histogram for the point
// where the error regime ends: the smallest c >= 2 at which the histogram
// stops decreasing. Empty bins after the last non-empty one are ignored.
// Returns 0 when the histogram never turns, in which case the graph should
// be left untouched.
func AutoThreshold(hist []uint64) graph.Covg {
	end := len(hist)
	for end > 0 && hist[end-1] == 0 {
		end--
	}
	for c := 2; c+1 < end; c++ {
		if hist[c] <= hist[c+1] {
			return graph.Covg(c)
		}
	}
	return 0
}

// DepthThreshold derives a cleaning threshold from sequencing depth:
// depth*(R-K+1)/R, the expected kmer coverage of a single-copy region.
func DepthThreshold(depth float64, meanReadLen uint32, kmerSize int) graph.Covg {
	r := float64(meanReadLen)
	if r < float64(kmerSize) {
		return 0
	}
	return graph.Covg(math.Ceil(depth * (r - float64(kmerSize) + 1) / r))
}

// RemoveSupernodes deletes supernodes whose mean coverage in col is below
// threshold. Exclusive access required. Returns the number of nodes
// removed.
func RemoveSupernodes(g *graph.Graph, col int, threshold graph.Covg, v BitSet) int {
	removed := 0
	ndropped := 0
	var doomed [][]OrientedNode
	forEachSupernode(g, v, func(sn []OrientedNode) {
		if MeanCovg(g, sn, col) < threshold {
			doomed = append(doomed, append([]OrientedNode(nil), sn...))
		}
	})
	for _, sn := range doomed {
		prune(g, sn)
		removed += len(sn)
		ndropped++
	}
	log.Printf("[clean] removed %d nodes in %d supernodes with coverage < %d",
		removed, ndropped, threshold)
	return removed
}
