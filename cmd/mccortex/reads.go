package main

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/encoding/fastx"
)

func readsMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("reads")
	seq := fs.String("seq", "", "reads to filter (FASTA/FASTQ; comma separated)")
	invert := fs.Bool("invert", false, "keep reads NOT touching the graph")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() == 0 {
		printUsage("reads: give input graph files")
	}
	if *seq == "" {
		printUsage("reads: -seq <reads> is required")
	}

	// Membership only: flatten every input into one color.
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
	sc := bkmer.NewScanner(g.KmerSize)
	var kept, total uint64
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
			hit := false
			sc.Reset(rec.Seq)
			for sc.Scan() {
				if _, _, ok := g.Find(sc.Kmer()); ok {
					hit = true
					break
				}
			}
			if hit == *invert {
				continue
			}
			kept++
			if rec.Qual != "" {
				_, err = fmt.Fprintf(out, "@%s\n%s\n+\n%s\n", rec.Name, rec.Seq, rec.Qual)
			} else {
				err = writeFASTA(out, rec.Name, rec.Seq)
			}
			if err != nil {
				closer.Close() // nolint: errcheck
				return err
			}
		}
		if err := closer.Close(); err != nil {
			return err
		}
	}
	log.Printf("[reads] kept %d of %d reads", kept, total)
	return finish()
}
