package main

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/zhaoc1/mccortex/encoding/ctx"
)

func joinMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("join")
	flatten := fs.Bool("flatten", false, "merge all input colors into one")
	fs.Parse(args) // nolint: errcheck
	if c.out == "" {
		printUsage("join: -out <out.ctx> is required")
	}
	if fs.NArg() < 1 {
		printUsage("join: give input graph files")
	}

	// Colors from successive files land in successive ranges of the
	// output graph.
	g, starts, err := openGraphs(ctx0, c, fs.Args(), *flatten)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck

	inputs := fs.Args()
	if *flatten {
		// All files share color 0; header merging is not concurrent.
		for i, path := range inputs {
			if _, err := ctx.LoadGraph(ctx0, g, path, starts[i], true); err != nil {
				return err
			}
		}
	} else {
		err = traverse.Each(len(inputs), func(i int) error {
			_, err := ctx.LoadGraph(ctx0, g, inputs[i], starts[i], false)
			return err
		})
		if err != nil {
			return err
		}
	}
	log.Printf("[join] %d files, %d colors, %s kmers",
		len(inputs), g.NumCols, fmtCount(uint64(g.NumKmers())))
	_, err = ctx.WriteGraphFile(c.out, g, nil)
	return err
}
