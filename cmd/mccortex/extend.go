package main

import (
	"context"
	"io"

	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/encoding/fastx"
	"github.com/zhaoc1/mccortex/graph"
)

func extendMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("extend")
	seq := fs.String("seq", "", "contigs to extend (FASTA; comma separated)")
	dist := fs.Int("dist", 100, "max bases to extend each end")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() == 0 {
		printUsage("extend: give input graph files")
	}
	if *seq == "" {
		printUsage("extend: -seq <contigs> is required")
	}

	g, starts, err := openGraphs(ctx0, c, fs.Args(), true)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck
	for i, path := range fs.Args() {
		if _, err := ctx.LoadGraph(ctx0, g, path, starts[i], true); err != nil {
			return err
		}
	}

	out, finish, err := openOut(ctx0, c.out)
	if err != nil {
		return err
	}
	var total uint64
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
			total++
			ext := extendContig(g, rec.Seq, *dist)
			if err := writeFASTA(out, rec.Name, ext); err != nil {
				closer.Close() // nolint: errcheck
				return err
			}
		}
		if err := closer.Close(); err != nil {
			return err
		}
	}
	log.Printf("[extend] processed %d contigs", total)
	return finish()
}

// extendContig grows both ends of seq through the graph while the
// extension is unambiguous, up to dist bases per end.
func extendContig(g *graph.Graph, seq string, dist int) string {
	right := extendEnd(g, seq[max(0, len(seq)-g.KmerSize):], dist)
	leftRC := extendEnd(g, revcompStr(seq[:min(len(seq), g.KmerSize)]), dist)
	return revcompStr(string(leftRC)) + seq + string(right)
}

// extendEnd walks right from the last kmer of tail, returning appended
// bases.
func extendEnd(g *graph.Graph, tail string, dist int) []byte {
	if len(tail) < g.KmerSize {
		return nil
	}
	bk, ok := bkmer.FromString(tail[len(tail)-g.KmerSize:])
	if !ok {
		return nil
	}
	hkey, orient, found := g.Find(bk)
	if !found {
		return nil
	}
	var out [4]graph.Next
	var ext []byte
	for len(ext) < dist {
		nibble := g.UnionEdges(hkey).WithOrientation(orient)
		if g.NextNodes(bk, nibble, &out) != 1 {
			break
		}
		hkey, orient, bk = out[0].Node, out[0].Orient, out[0].BKmer
		ext = append(ext, bk.LastNuc().Char())
	}
	return ext
}

func revcompStr(seq string) string {
	buf := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		if n, ok := bkmer.NucFromChar(seq[len(seq)-1-i]); ok {
			buf[i] = n.Complement().Char()
		} else {
			buf[i] = 'N'
		}
	}
	return string(buf)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
