package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/graph"
)

// commonFlags are the options shared by every subcommand.
type commonFlags struct {
	memory  string
	nkmers  string
	ncols   int
	threads int
	kmer    int
	out     string
	paths   string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	c := &commonFlags{}
	fs.StringVar(&c.memory, "memory", "", "memory to use, e.g. 1G")
	fs.StringVar(&c.nkmers, "nkmers", "", "hash table entries, e.g. 4M")
	fs.IntVar(&c.ncols, "ncols", 1, "number of graph colours to load at once")
	fs.IntVar(&c.threads, "threads", 2, "number of worker threads")
	fs.IntVar(&c.kmer, "kmer", 0, "kmer size (odd, 3..63)")
	fs.StringVar(&c.out, "out", "", "output file")
	fs.StringVar(&c.paths, "paths", "", "input path file (.ctp)")
	return fs, c
}

// parseSize parses counts like 4M, 1G, 500000 (suffix factor 1024).
func parseSize(s string) (uint64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")
	factor := uint64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		factor = 1 << 10
	case strings.HasSuffix(s, "M"):
		factor = 1 << 20
	case strings.HasSuffix(s, "G"):
		factor = 1 << 30
	case strings.HasSuffix(s, "T"):
		factor = 1 << 40
	}
	if factor > 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0, errors.E("cannot parse size:", s)
	}
	return uint64(n * float64(factor)), nil
}

// bytesPerKmer is the in-memory footprint of one hash slot: two kmer
// words, per-color coverage and edges, and a path head.
func bytesPerKmer(ncols int) uint64 {
	return 16 + uint64(ncols)*5 + 8
}

// decideNKmers picks the hash table size from -nkmers, -memory, or an
// estimate of the input kmer count, in that order of preference.
func decideNKmers(c *commonFlags, ncols int, estimate uint64) (int64, error) {
	if c.nkmers != "" {
		n, err := parseSize(c.nkmers)
		if err != nil {
			return 0, err
		}
		return int64(n), nil
	}
	if c.memory != "" {
		mem, err := parseSize(c.memory)
		if err != nil {
			return 0, err
		}
		n := int64(mem / bytesPerKmer(ncols))
		if n < 1024 {
			return 0, errors.E("memory budget too small:", c.memory)
		}
		if estimate > 0 && estimate > uint64(n) {
			return 0, errors.E("input needs more than the memory budget:", c.memory)
		}
		return n, nil
	}
	if estimate > 0 {
		return int64(estimate + estimate/4), nil
	}
	return 4 << 20, nil
}

// pathArenaBytes sizes the path arena: a quarter of the memory budget,
// with a floor so small runs never fail on arena space.
func pathArenaBytes(c *commonFlags) uint64 {
	const floor = 64 << 20
	if c.memory == "" {
		return floor
	}
	mem, err := parseSize(c.memory)
	if err != nil || mem/4 < floor {
		return floor
	}
	return mem / 4
}

// openGraphs probes every input, checks kmer sizes agree, and allocates a
// graph with one color range per file. Returns the graph and each file's
// starting color.
func openGraphs(ctx0 context.Context, c *commonFlags, inputs []string, flatten bool) (*graph.Graph, []int, error) {
	if len(inputs) == 0 {
		return nil, nil, errors.New("no input graph files given")
	}
	var (
		kmerSize  uint32
		totalCols int
		estimate  uint64
		starts    []int
	)
	for i, path := range inputs {
		hdr, est, err := ctx.Probe(ctx0, path)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			kmerSize = hdr.KmerSize
		} else if hdr.KmerSize != kmerSize {
			return nil, nil, errors.E("kmer sizes don't match:", kmerSize, "vs", hdr.KmerSize, path)
		}
		starts = append(starts, totalCols)
		if !flatten {
			totalCols += int(hdr.NumCols)
		}
		estimate += est
	}
	if flatten {
		totalCols = 1
		for i := range starts {
			starts[i] = 0
		}
	}
	if c.kmer != 0 && uint32(c.kmer) != kmerSize {
		return nil, nil, errors.E("-kmer disagrees with graph files:", c.kmer, "vs", kmerSize)
	}
	nkmers, err := decideNKmers(c, totalCols, estimate)
	if err != nil {
		return nil, nil, err
	}
	g := graph.New(int(kmerSize), totalCols, nkmers)
	log.Printf("[graph] kmer size %d, %d colors, capacity %d kmers",
		kmerSize, totalCols, g.Capacity())
	return g, starts, nil
}

func fmtCount(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/float64(1<<10))
	}
	return fmt.Sprintf("%d", n)
}
