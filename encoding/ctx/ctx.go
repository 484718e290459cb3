// Package ctx reads and writes CORTEX binary graph files: a fixed header
// carrying per-color sample info, then a flat sequence of
// (kmer, coverages, edges) records.
package ctx

import (
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
)

// Magic opens every graph file.
const Magic = "CORTEX"

// Version is the format version written by this package.
const Version = 6

// Header is the decoded file header. NumWords is the number of 64-bit
// words per kmer record, ceil(2K/64).
type Header struct {
	Version  uint32
	KmerSize uint32
	NumWords uint32
	NumCols  uint32
	Infos    []graph.GraphInfo
}

// HeaderFor builds the header describing g.
func HeaderFor(g *graph.Graph) Header {
	return Header{
		Version:  Version,
		KmerSize: uint32(g.KmerSize),
		NumWords: uint32(bkmer.NumWords(g.KmerSize)),
		NumCols:  uint32(g.NumCols),
		Infos:    append([]graph.GraphInfo(nil), g.Infos...),
	}
}

// Record is one graph node on disk: the canonical kmer plus per-color
// coverage and edge bytes.
type Record struct {
	BKmer bkmer.Kmer
	Covgs []graph.Covg
	Edges []graph.Edges
}
