package main

import (
	"context"
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/clean"
	"github.com/zhaoc1/mccortex/encoding/ctp"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/graph"
	"github.com/zhaoc1/mccortex/paths"
	"github.com/zhaoc1/mccortex/walk"
)

func contigsMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("contigs")
	col := fs.Int("col", 0, "color to assemble")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() != 1 {
		printUsage("contigs: give exactly one graph file")
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
	if *col < 0 || *col >= g.NumCols {
		printUsage("contigs: -col out of range")
	}

	arena := pathArenaBytes(c)
	if c.paths != "" {
		hdr, err := ctp.Probe(ctx0, c.paths)
		if err != nil {
			return err
		}
		if min := hdr.NumPathBytes + hdr.NumPathBytes/4 + 1024; arena < min {
			arena = min
		}
	}
	ps := paths.NewStore(g.NumCols, arena, g.Capacity())
	if c.paths != "" {
		if err := ctp.ReadPathsFile(ctx0, c.paths, g, ps); err != nil {
			return err
		}
	}

	out, finish, err := openOut(ctx0, c.out)
	if err != nil {
		return err
	}
	w := walk.New(g, ps, *col)
	visited := clean.NewBitSet(g.Capacity())
	n := 0
	var werr error
	g.Table.ForEach(func(seed uint64) {
		if werr != nil || visited.Test(seed) || !g.HasCol(seed, *col) {
			return
		}
		seq := assembleContig(g, w, *col, seed, visited)
		werr = writeFASTA(out, fmt.Sprintf("contig%d", n), seq)
		n++
	})
	if werr != nil {
		return werr
	}
	log.Printf("[contigs] assembled %d contigs in color %d", n, *col)
	return finish()
}

// assembleContig walks right and left from seed, guided by stored paths,
// stopping at unresolved forks, dead ends, or previously assembled nodes.
func assembleContig(g *graph.Graph, w *walk.Walker, col int, seed uint64, visited clean.BitSet) string {
	visited.Set(seed)

	// Rightward walk, seed kmer included.
	w.Init(col, seed, bkmer.Forward)
	right := []byte(g.OrientedBKmer(seed, bkmer.Forward).String(g.KmerSize))
	for w.Traverse() && !visited.Test(w.Node) {
		visited.Set(w.Node)
		right = append(right, w.BKmer.LastNuc().Char())
	}
	w.Finish()

	// Leftward: walk the reverse strand, then flip the extension back.
	w.Init(col, seed, bkmer.Reverse)
	var left []byte
	for w.Traverse() && !visited.Test(w.Node) {
		visited.Set(w.Node)
		left = append(left, w.BKmer.LastNuc().Char())
	}
	w.Finish()

	buf := make([]byte, 0, len(left)+len(right))
	for i := len(left) - 1; i >= 0; i-- {
		n, _ := bkmer.NucFromChar(left[i])
		buf = append(buf, n.Complement().Char())
	}
	return string(append(buf, right...))
}
