package main

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/graph"
)

func inferedgesMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("inferedges")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() != 1 {
		printUsage("inferedges: give exactly one graph file")
	}
	if c.out == "" {
		printUsage("inferedges: -out <out.ctx> is required")
	}
	path := fs.Arg(0)

	g, starts, err := openGraphs(ctx0, c, []string{path}, false)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck
	if _, err := ctx.LoadGraph(ctx0, g, path, starts[0], false); err != nil {
		return err
	}

	added := inferAllEdges(g, c.threads)
	log.Printf("[inferedges] added %d edges", added)
	_, err = ctx.WriteGraphFile(c.out, g, nil)
	return err
}

// inferAllEdges adds, per color, every edge whose two endpoint kmers are
// both present with coverage in that color. Each worker owns a disjoint
// hkey range; a node's own edge byte is only written by its owner, and
// the reciprocal bit is discovered independently from the other side.
func inferAllEdges(g *graph.Graph, threads int) int64 {
	if threads < 1 {
		threads = 1
	}
	capacity := g.Capacity()
	shard := capacity/uint64(threads) + 1
	counts := make([]int64, threads)
	_ = traverse.Each(threads, func(w int) error { // nolint: errcheck
		lo := 1 + uint64(w)*shard
		hi := lo + shard
		if hi > capacity+1 {
			hi = capacity + 1
		}
		for hkey := lo; hkey < hi; hkey++ {
			if !g.Table.Occupied(hkey) {
				continue
			}
			for _, o := range [2]bkmer.Orientation{bkmer.Forward, bkmer.Reverse} {
				bk := g.OrientedBKmer(hkey, o)
				for nuc := bkmer.NucA; nuc <= bkmer.NucT; nuc++ {
					nk := bk.ShiftLeftAdd(g.KmerSize, nuc)
					key, _ := nk.Canonical(g.KmerSize)
					next := g.Table.Find(key)
					if next == graph.KeyNil {
						continue
					}
					for col := 0; col < g.NumCols; col++ {
						if !g.HasCol(hkey, col) || !g.HasCol(next, col) {
							continue
						}
						if !g.ColEdges(hkey, col).Has(nuc, o) {
							g.SetEdge(hkey, col, nuc, o)
							counts[w]++
						}
					}
				}
			}
		}
		return nil
	})
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}
