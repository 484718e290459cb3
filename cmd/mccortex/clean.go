package main

import (
	"context"
	"os"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/zhaoc1/mccortex/clean"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/graph"
)

func cleanMain(ctx0 context.Context, args []string) error {
	fs, c := newFlagSet("clean")
	tips := fs.Int("tips", 0, "clip tips shorter than L kmers (0 = default 2*kmer)")
	snodes := fs.Bool("supernodes", false, "remove low coverage supernodes")
	kdepth := fs.Float64("kdepth", 0, "derive threshold from kmer depth: depth*(R-K+1)/R")
	threshold := fs.Uint("threshold", 0, "remove supernodes with coverage < T")
	dumpCovgs := fs.String("covgs", "", "dump supernode coverage distribution as tab-separated text")
	lenBefore := fs.String("len-before", "", "write supernode length histogram before cleaning")
	lenAfter := fs.String("len-after", "", "write supernode length histogram after cleaning")
	fs.Parse(args) // nolint: errcheck

	tipCleaning := *tips != 0
	snodeCleaning := *snodes
	if fs.NArg() == 0 {
		printUsage("clean: please give input graph files")
	}
	if *threshold == 1 {
		printUsage("clean: -threshold <T> needs an integer > 1")
	}
	if *kdepth != 0 && *kdepth <= 1 {
		printUsage("clean: -kdepth <C> needs a number > 1")
	}
	if !tipCleaning && !snodeCleaning {
		if c.out != "" {
			tipCleaning, snodeCleaning = true, true // default: do both
		} else {
			log.Error.Printf("no cleaning being done: specify -out <out.ctx>")
		}
	}
	doingCleaning := tipCleaning || snodeCleaning
	if doingCleaning && c.out == "" {
		printUsage("clean: please specify -out <out.ctx> for the cleaned graph")
	}
	if !snodeCleaning && *threshold > 0 {
		printUsage("clean: -threshold <T> is not needed without -supernodes")
	}
	if !snodeCleaning && *kdepth > 0 {
		printUsage("clean: -kdepth <C> is not needed without -supernodes")
	}
	if snodeCleaning && *threshold > 0 && *kdepth > 0 {
		printUsage("clean: use only one of -threshold <T>, -kdepth <C>")
	}
	if !doingCleaning && *lenAfter != "" {
		printUsage("clean: -len-after without any cleaning")
	}
	if c.out != "" && c.out != "-" {
		if _, err := os.Stat(c.out); err == nil {
			printUsage("clean: output file already exists: %s", c.out)
		}
	}

	g, starts, err := openGraphs(ctx0, c, fs.Args(), false)
	if err != nil {
		return err
	}
	defer g.Close() // nolint: errcheck
	maxTipLen := *tips
	if maxTipLen <= 0 {
		maxTipLen = 2 * g.KmerSize
	}

	inputs := fs.Args()
	err = traverse.Each(len(inputs), func(i int) error {
		_, err := ctx.LoadGraph(ctx0, g, inputs[i], starts[i], false)
		return err
	})
	if err != nil {
		return err
	}
	initialKmers := g.NumKmers()
	log.Printf("[clean] total kmers loaded: %s", fmtCount(uint64(initialKmers)))

	for col := 0; col < g.NumCols; col++ {
		cl := g.Infos[col].Cleaning
		if cl.CleanedSupernodes && snodeCleaning {
			log.Error.Printf("color %d already has supernode cleaning (threshold <%d)",
				col, cl.SupernodeThreshold)
		}
		if cl.CleanedTips && tipCleaning {
			log.Error.Printf("color %d already had tips cleaned", col)
		}
	}

	visited := clean.NewBitSet(g.Capacity())

	if *lenBefore != "" {
		visited.Reset()
		if err := writeLenHist(ctx0, *lenBefore, clean.SupernodeLenHist(g, visited)); err != nil {
			return err
		}
	}

	if tipCleaning {
		visited.Reset()
		clean.RemoveTips(g, maxTipLen, visited)
	}

	thresh := graph.Covg(*threshold)
	if snodeCleaning || *dumpCovgs != "" {
		visited.Reset()
		hist := clean.SupernodeCovgHist(g, -1, visited)
		if *dumpCovgs != "" {
			if err := writeCovgHist(ctx0, *dumpCovgs, hist); err != nil {
				return err
			}
		}
		if snodeCleaning {
			if thresh == 0 && *kdepth > 0 {
				thresh = clean.DepthThreshold(*kdepth, meanReadLen(g), g.KmerSize)
				log.Printf("[clean] threshold %d derived from kmer depth %.1f", thresh, *kdepth)
			}
			if thresh == 0 {
				thresh = clean.AutoThreshold(hist)
				log.Printf("[clean] auto-detected threshold %d", thresh)
			}
			if thresh == 0 {
				log.Printf("[clean] threshold 0: leaving supernodes untouched")
				snodeCleaning = false
				doingCleaning = tipCleaning
			} else {
				visited.Reset()
				clean.RemoveSupernodes(g, -1, thresh, visited)
			}
		}
	}

	if *lenAfter != "" {
		visited.Reset()
		if err := writeLenHist(ctx0, *lenAfter, clean.SupernodeLenHist(g, visited)); err != nil {
			return err
		}
	}

	if !doingCleaning {
		return nil
	}

	for col := 0; col < g.NumCols; col++ {
		cl := &g.Infos[col].Cleaning
		cl.CleanedTips = cl.CleanedTips || tipCleaning
		if snodeCleaning {
			if !cl.CleanedSupernodes || uint32(thresh) < cl.SupernodeThreshold {
				cl.SupernodeThreshold = uint32(thresh)
			}
			cl.CleanedSupernodes = true
		}
	}

	removed := initialKmers - g.NumKmers()
	pct := 0.0
	if initialKmers > 0 {
		pct = 100 * float64(removed) / float64(initialKmers)
	}
	log.Printf("[clean] removed %s of %s (%.2f%%) kmers",
		fmtCount(uint64(removed)), fmtCount(uint64(initialKmers)), pct)
	_, err = ctx.WriteGraphFile(c.out, g, nil)
	return err
}

// meanReadLen returns the sequence-weighted mean read length across
// colors, for kmer-depth threshold derivation.
func meanReadLen(g *graph.Graph) uint32 {
	var sum, total uint64
	for _, gi := range g.Infos {
		sum += uint64(gi.MeanReadLength) * gi.TotalSequence
		total += gi.TotalSequence
	}
	if total == 0 {
		return 0
	}
	return uint32(sum / total)
}

func writeHist(ctx0 context.Context, path, col0, col1 string, hist []uint64) error {
	out, err := file.Create(ctx0, path)
	if err != nil {
		return errors.E(err, "creating histogram output:", path)
	}
	w := tsv.NewWriter(out.Writer(ctx0))
	w.WriteString(col0 + "\t" + col1)
	if err := w.EndLine(); err != nil {
		return err
	}
	for i, n := range hist {
		if n == 0 {
			continue
		}
		w.WriteString(strconv.Itoa(i))
		w.WriteString(strconv.FormatUint(n, 10))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	e := errors.Once{}
	e.Set(w.Flush())
	e.Set(out.Close(ctx0))
	return e.Err()
}

func writeCovgHist(ctx0 context.Context, path string, hist []uint64) error {
	log.Printf("[clean] saving coverage distribution to %s", path)
	return writeHist(ctx0, path, "covg", "supernodes", hist)
}

func writeLenHist(ctx0 context.Context, path string, hist []uint64) error {
	log.Printf("[clean] saving supernode length distribution to %s", path)
	return writeHist(ctx0, path, "len", "supernodes", hist)
}
