package main

import (
	"context"
	"fmt"

	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/encoding/ctp"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/paths"
)

func pviewMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("pview")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() != 2 {
		printUsage("pview: give a graph file and a path file")
	}
	gpath, ppath := fs.Arg(0), fs.Arg(1)

	g, starts, err := openGraphs(ctx0, c, []string{gpath}, false)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck
	if _, err := ctx.LoadGraph(ctx0, g, gpath, starts[0], false); err != nil {
		return err
	}

	hdr, err := ctp.Probe(ctx0, ppath)
	if err != nil {
		return err
	}
	fmt.Printf("paths: %d\n", hdr.NumPaths)
	fmt.Printf("path bytes: %d\n", hdr.NumPathBytes)
	fmt.Printf("kmers with paths: %d\n", hdr.NumKmersWithPaths)
	fmt.Printf("colors: %d\n", hdr.NumCols)

	ps := paths.NewStore(g.NumCols, hdr.NumPathBytes+hdr.NumPathBytes/4+1024, g.Capacity())
	if err := ctp.ReadPathsFile(ctx0, ppath, g, ps); err != nil {
		return err
	}

	out, finish, err := openOut(ctx0, c.out)
	if err != nil {
		return err
	}
	var werr error
	ps.ForEachHead(func(hkey, head uint64) {
		if werr != nil {
			return
		}
		if _, werr = fmt.Fprintf(out, "%s\n", g.BKmer(hkey).String(g.KmerSize)); werr != nil {
			return
		}
		for off := head; off != paths.NullOffset; off = ps.Prev(off) {
			n, orient := ps.LenOrient(off)
			bases := make([]bkmer.Nuc, n)
			ps.Fetch(off, bases)
			buf := make([]byte, n)
			for i, b := range bases {
				buf[i] = b.Char()
			}
			cols := ""
			for col := 0; col < ps.NumCols(); col++ {
				if ps.HasCol(off, col) {
					cols += fmt.Sprintf("%d,", col)
				}
			}
			if len(cols) > 0 {
				cols = cols[:len(cols)-1]
			}
			if _, werr = fmt.Fprintf(out, "  %s %d:%s cols=%s\n",
				orient, n, buf, cols); werr != nil {
				return
			}
		}
	})
	if werr != nil {
		return werr
	}
	return finish()
}
