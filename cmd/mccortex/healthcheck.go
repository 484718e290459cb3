package main

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/graph"
)

func healthcheckMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("healthcheck")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() != 1 {
		printUsage("healthcheck: give exactly one graph file")
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

	bad := 0
	var out [4]graph.Next
	g.Table.ForEach(func(hkey uint64) {
		bk := g.BKmer(hkey)
		if key, _ := bk.Canonical(g.KmerSize); key != bk {
			log.Error.Printf("non-canonical stored kmer %s", bk.String(g.KmerSize))
			bad++
		}
		if g.SumCovg(hkey) == 0 {
			log.Error.Printf("kmer %s has no coverage in any color", bk.String(g.KmerSize))
			bad++
		}
		for col := 0; col < g.NumCols; col++ {
			e := g.ColEdges(hkey, col)
			for _, o := range [2]bkmer.Orientation{bkmer.Forward, bkmer.Reverse} {
				nibble := e.WithOrientation(o)
				n := g.NextNodes(g.OrientedBKmer(hkey, o), nibble, &out)
				want := 0
				for nuc := bkmer.NucA; nuc <= bkmer.NucT; nuc++ {
					if nibble&(1<<uint8(nuc)) != 0 {
						want++
					}
				}
				if n != want {
					log.Error.Printf("kmer %s color %d: edge to missing kmer",
						bk.String(g.KmerSize), col)
					bad++
					continue
				}
				for i := 0; i < n; i++ {
					back := bk.Oriented(g.KmerSize, o).FirstNuc(g.KmerSize).Complement()
					if !g.ColEdges(out[i].Node, col).Has(back, out[i].Orient.Opposite()) {
						log.Error.Printf("kmer %s color %d: missing reciprocal edge from %s",
							bk.String(g.KmerSize), col, g.BKmer(out[i].Node).String(g.KmerSize))
						bad++
					}
				}
			}
		}
	})
	if bad > 0 {
		return errors.E("healthcheck failed:", bad, "problems found in", path)
	}
	log.Printf("[healthcheck] %s: %d kmers ok", path, g.NumKmers())
	return nil
}
