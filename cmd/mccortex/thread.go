package main

import (
	"context"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/encoding/ctp"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/encoding/fastx"
	"github.com/zhaoc1/mccortex/graph"
	"github.com/zhaoc1/mccortex/paths"
	"github.com/zhaoc1/mccortex/thread"
)

func threadMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("thread")
	col := fs.Int("col", 0, "color the reads belong to")
	seq := fs.String("seq", "", "reads to thread (FASTA/FASTQ; comma separated)")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() != 1 {
		printUsage("thread: give exactly one graph file")
	}
	if *seq == "" {
		printUsage("thread: -seq <reads> is required")
	}
	if c.out == "" {
		printUsage("thread: -out <out.ctp> is required")
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
		printUsage("thread: -col out of range")
	}

	arena := pathArenaBytes(c)
	if c.paths != "" {
		hdr, err := ctp.Probe(ctx0, c.paths)
		if err != nil {
			return err
		}
		if min := hdr.NumPathBytes * 2; arena < min {
			arena = min
		}
	}
	ps := paths.NewStore(g.NumCols, arena, g.Capacity())
	if c.paths != "" {
		if err := ctp.ReadPathsFile(ctx0, c.paths, g, ps); err != nil {
			return err
		}
	}

	for _, rpath := range splitList(*seq) {
		if err := threadFile(ctx0, g, ps, *col, c.threads, rpath); err != nil {
			return err
		}
	}
	log.Printf("[thread] %d paths (%s of arena) on %d kmers",
		ps.NumPaths(), fmtCount(ps.NumBytes()), ps.NumKmersWithPaths())
	return ctp.WritePathsFile(c.out, g, ps)
}

func splitList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// threadFile streams reads through a pool of threader goroutines. The
// path store serializes per-node appends itself.
func threadFile(ctx0 context.Context, g *graph.Graph, ps *paths.Store, col, threads int, path string) error {
	r, closer, err := fastx.Open(ctx0, path)
	if err != nil {
		return err
	}
	reqCh := make(chan string, 1024)
	e := errors.Once{}
	var wg sync.WaitGroup
	if threads < 1 {
		threads = 1
	}
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th := thread.New(g, ps, col)
			for seq := range reqCh {
				if _, err := th.ThreadRead(seq); err != nil {
					e.Set(err)
					return
				}
			}
		}()
	}
	var nReads uint64
	var rec fastx.Read
	for {
		err := r.Scan(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			e.Set(err)
			break
		}
		nReads++
		reqCh <- rec.Seq
	}
	close(reqCh)
	wg.Wait()
	e.Set(closer.Close())
	if e.Err() == nil {
		log.Printf("[thread] %s: %d reads threaded", path, nReads)
	}
	return e.Err()
}
