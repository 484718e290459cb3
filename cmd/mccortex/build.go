package main

import (
	"context"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/encoding/fastx"
	"github.com/zhaoc1/mccortex/graph"
)

func buildMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("build")
	sample := fs.String("sample", "", "sample name recorded in the graph header")
	fs.Parse(args) // nolint: errcheck
	if c.kmer < bkmer.MinK || c.kmer > bkmer.MaxK || c.kmer%2 == 0 {
		printUsage("build: -kmer must be odd and in [%d,%d]", bkmer.MinK, bkmer.MaxK)
	}
	if c.out == "" {
		printUsage("build: -out <out.ctx> is required")
	}
	if fs.NArg() == 0 {
		printUsage("build: no input sequence files given")
	}

	nkmers, err := decideNKmers(c, 1, 0)
	if err != nil {
		return err
	}
	g := graph.New(c.kmer, 1, nkmers)
	defer g.Close() // nolint: errcheck
	g.Infos[0].SampleName = *sample

	for _, path := range fs.Args() {
		if err := buildFromFile(ctx0, g, c.threads, path); err != nil {
			return err
		}
	}
	log.Printf("[build] total kmers: %s", fmtCount(uint64(g.NumKmers())))
	_, err = ctx.WriteGraphFile(c.out, g, nil)
	return err
}

// buildFromFile streams reads from one sequence file through a pool of
// inserter goroutines. Inserts run in concurrent-insert mode; read-length
// stats are folded in at the end.
func buildFromFile(ctx0 context.Context, g *graph.Graph, threads int, path string) error {
	r, closer, err := fastx.Open(ctx0, path)
	if err != nil {
		return err
	}

	reqCh := make(chan string, 1024)
	e := errors.Once{}
	var wg sync.WaitGroup
	var mu sync.Mutex // guards g.Infos[0]
	if threads < 1 {
		threads = 1
	}
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc := bkmer.NewScanner(g.KmerSize)
			for seq := range reqCh {
				if err := insertRead(g, sc, seq); err != nil {
					e.Set(err)
					return
				}
				mu.Lock()
				g.Infos[0].AddReadStats(len(seq))
				mu.Unlock()
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
		log.Printf("[build] %s: %d reads", path, nReads)
	}
	return e.Err()
}

// insertRead adds every kmer of seq to color 0 and links consecutive
// kmers.
func insertRead(g *graph.Graph, sc *bkmer.Scanner, seq string) error {
	sc.Reset(seq)
	var prev graph.Next
	prevPos := -2
	for sc.Scan() {
		bk := sc.Kmer()
		hkey, orient, _, err := g.FindOrInsert(bk)
		if err != nil {
			return err
		}
		g.AddCovg(hkey, 0, 1)
		cur := graph.Next{Node: hkey, Orient: orient, BKmer: bk}
		if sc.Pos() == prevPos+1 {
			g.LinkNodes(0, prev, cur)
		}
		prev, prevPos = cur, sc.Pos()
	}
	return nil
}
