package main

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/encoding/ctp"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/paths"
)

func pjoinMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("pjoin")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() < 2 {
		printUsage("pjoin: give a graph file and at least one path file")
	}
	if c.out == "" {
		printUsage("pjoin: -out <out.ctp> is required")
	}
	gpath, ppaths := fs.Arg(0), fs.Args()[1:]

	g, starts, err := openGraphs(ctx0, c, []string{gpath}, false)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck
	if _, err := ctx.LoadGraph(ctx0, g, gpath, starts[0], false); err != nil {
		return err
	}

	var arena uint64 = 1024
	for _, p := range ppaths {
		hdr, err := ctp.Probe(ctx0, p)
		if err != nil {
			return err
		}
		arena += hdr.NumPathBytes + hdr.NumPathBytes/4
	}
	ps := paths.NewStore(g.NumCols, arena, g.Capacity())
	for _, p := range ppaths {
		if err := ctp.ReadPathsFile(ctx0, p, g, ps); err != nil {
			return err
		}
	}
	log.Printf("[pjoin] merged %d files: %d paths on %d kmers",
		len(ppaths), ps.NumPaths(), ps.NumKmersWithPaths())
	return ctp.WritePathsFile(c.out, g, ps)
}
