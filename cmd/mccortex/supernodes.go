package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/zhaoc1/mccortex/clean"
	"github.com/zhaoc1/mccortex/encoding/ctx"
)

// openOut opens the -out target for text output, "" or "-" meaning
// stdout.
func openOut(ctx0 context.Context, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}
	f, err := file.Create(ctx0, path)
	if err != nil {
		return nil, nil, errors.E(err, "creating output:", path)
	}
	w := bufio.NewWriter(f.Writer(ctx0))
	return w, func() error {
		e := errors.Once{}
		e.Set(w.Flush())
		e.Set(f.Close(ctx0))
		return e.Err()
	}, nil
}

func writeFASTA(w io.Writer, name, seq string) error {
	_, err := fmt.Fprintf(w, ">%s\n%s\n", name, seq)
	return err
}

func supernodesMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("supernodes")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() == 0 {
		printUsage("supernodes: give input graph files")
	}

	g, starts, err := openGraphs(ctx0, c, fs.Args(), false)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck
	inputs := fs.Args()
	err = traverse.Each(len(inputs), func(i int) error {
		_, err := ctx.LoadGraph(ctx0, g, inputs[i], starts[i], false)
		return err
	})
	if err != nil {
		return err
	}

	out, finish, err := openOut(ctx0, c.out)
	if err != nil {
		return err
	}
	visited := clean.NewBitSet(g.Capacity())
	n := 0
	var buf []clean.OrientedNode
	var werr error
	g.Table.ForEach(func(hkey uint64) {
		if werr != nil || visited.Test(hkey) {
			return
		}
		buf = clean.Supernode(g, hkey, buf)
		for _, on := range buf {
			visited.Set(on.Node)
		}
		werr = writeFASTA(out, fmt.Sprintf("supernode%d", n), clean.Seq(g, buf))
		n++
	})
	if werr != nil {
		return werr
	}
	log.Printf("[supernodes] wrote %d supernodes", n)
	return finish()
}
