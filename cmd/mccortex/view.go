package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/encoding/ctx"
	"github.com/zhaoc1/mccortex/graph"
)

func viewMain(ctx0 context.Context, args []string) error {
	fs, _ := newFlagSet("view")
	printKmers := fs.Bool("print-kmers", false, "print each kmer record")
	fs.Parse(args) // nolint: errcheck
	if fs.NArg() != 1 {
		printUsage("view: give exactly one graph file")
	}
	path := fs.Arg(0)

	r, closer, err := ctx.Open(ctx0, path)
	if err != nil {
		return err
	}
	defer closer.Close() // nolint: errcheck

	hdr := r.Hdr
	fmt.Printf("version: %d\n", hdr.Version)
	fmt.Printf("kmer size: %d\n", hdr.KmerSize)
	fmt.Printf("bitfields: %d\n", hdr.NumWords)
	fmt.Printf("colors: %d\n", hdr.NumCols)
	for i, gi := range hdr.Infos {
		fmt.Printf("-- color %d: '%s'\n", i, gi.SampleName)
		fmt.Printf("   mean read length: %d\n", gi.MeanReadLength)
		fmt.Printf("   total sequence: %d\n", gi.TotalSequence)
		fmt.Printf("   sequencing error rate: %g\n", gi.ErrorRate)
		fmt.Printf("   tip clipping: %v\n", gi.Cleaning.CleanedTips)
		fmt.Printf("   supernode cleaning: %v (threshold %d)\n",
			gi.Cleaning.CleanedSupernodes, gi.Cleaning.SupernodeThreshold)
	}

	var nKmers uint64
	var rec ctx.Record
	for {
		err := r.Read(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		nKmers++
		if *printKmers {
			printRecord(os.Stdout, &rec, int(hdr.KmerSize))
		}
	}
	fmt.Printf("kmers: %d\n", nKmers)
	return nil
}

func printRecord(w io.Writer, rec *ctx.Record, k int) {
	fmt.Fprint(w, rec.BKmer.String(k))
	for _, c := range rec.Covgs {
		fmt.Fprintf(w, " %d", c)
	}
	for _, e := range rec.Edges {
		fmt.Fprintf(w, " %s", edgesString(e))
	}
	fmt.Fprintln(w)
}

// edgesString renders an edge byte as eight slots: incoming (reverse
// nibble, lowercase) then outgoing (forward nibble, uppercase).
func edgesString(e graph.Edges) string {
	var buf [8]byte
	for n := bkmer.NucA; n <= bkmer.NucT; n++ {
		buf[n] = '.'
		buf[4+n] = '.'
		if e.Has(n, bkmer.Reverse) {
			buf[n] = n.Char() + 'a' - 'A'
		}
		if e.Has(n, bkmer.Forward) {
			buf[4+n] = n.Char()
		}
	}
	return string(buf[:])
}
