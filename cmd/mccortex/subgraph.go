package main

import (
	"context"
	"io"

	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/clean"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/encoding/fastx"
	"github.com/zhaoc1/mccortex/graph"
)

func subgraphMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("subgraph")
	seq := fs.String("seq", "", "seed sequences (FASTA/FASTQ; comma separated)")
	dist := fs.Int("dist", 0, "hops to extend the subgraph around the seeds")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() == 0 {
		printUsage("subgraph: give input graph files")
	}
	if *seq == "" {
		printUsage("subgraph: -seq <seeds> is required")
	}
	if c.out == "" {
		printUsage("subgraph: -out <out.ctx> is required")
	}

	g, starts, err := openGraphs(ctx0, c, fs.Args(), false)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck
	for i, path := range fs.Args() {
		if _, err := ctx.LoadGraph(ctx0, g, path, starts[i], false); err != nil {
			return err
		}
	}

	// Seed the frontier with every present kmer of the seed sequences.
	keep := clean.NewBitSet(g.Capacity())
	var frontier []uint64
	sc := bkmer.NewScanner(g.KmerSize)
	for _, path := range splitList(*seq) {
		r, closer, err := fastx.Open(ctx0, path)
		if err != nil {
			return err
		}
		var rec fastx.Read
		for {
			err := r.Scan(&rec)
			if err == io.EOF {
				break
			}
			if err != nil {
				closer.Close() // nolint: errcheck
				return err
			}
			sc.Reset(rec.Seq)
			for sc.Scan() {
				if hkey, _, ok := g.Find(sc.Kmer()); ok && !keep.Test(hkey) {
					keep.Set(hkey)
					frontier = append(frontier, hkey)
				}
			}
		}
		if err := closer.Close(); err != nil {
			return err
		}
	}
	log.Printf("[subgraph] %d seed kmers", len(frontier))

	// Breadth-first expansion through union edges, both orientations.
	var out [4]graph.Next
	for hop := 0; hop < *dist && len(frontier) > 0; hop++ {
		var next []uint64
		for _, hkey := range frontier {
			for _, o := range [2]bkmer.Orientation{bkmer.Forward, bkmer.Reverse} {
				nibble := g.UnionEdges(hkey).WithOrientation(o)
				n := g.NextNodes(g.OrientedBKmer(hkey, o), nibble, &out)
				for i := 0; i < n; i++ {
					if !keep.Test(out[i].Node) {
						keep.Set(out[i].Node)
						next = append(next, out[i].Node)
					}
				}
			}
		}
		frontier = next
	}

	// Drop everything outside the kept set, then clear edges that now
	// point at nothing.
	var doomed []uint64
	g.Table.ForEach(func(hkey uint64) {
		if !keep.Test(hkey) {
			doomed = append(doomed, hkey)
		}
	})
	for _, hkey := range doomed {
		g.DelNode(hkey)
	}
	g.Table.ForEach(func(hkey uint64) {
		for _, o := range [2]bkmer.Orientation{bkmer.Forward, bkmer.Reverse} {
			bk := g.OrientedBKmer(hkey, o)
			for nuc := bkmer.NucA; nuc <= bkmer.NucT; nuc++ {
				if !g.UnionEdges(hkey).Has(nuc, o) {
					continue
				}
				key, _ := bk.ShiftLeftAdd(g.KmerSize, nuc).Canonical(g.KmerSize)
				if g.Table.Find(key) == graph.KeyNil {
					g.ClearEdgeAllCols(hkey, nuc, o)
				}
			}
		}
	})
	log.Printf("[subgraph] kept %s kmers, removed %s",
		fmtCount(uint64(g.NumKmers())), fmtCount(uint64(len(doomed))))
	_, err = ctx.WriteGraphFile(c.out, g, nil)
	return err
}
