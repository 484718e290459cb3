package ctx

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
)

// Open opens a graph file (transparently ungzipping by extension) and
// decodes its header. Close the returned closer when done.
func Open(ctx context.Context, path string) (*Reader, io.Closer, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "opening graph file:", path)
	}
	var rd io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(rd, in.Name()); u != nil {
		rd = u
	}
	r, err := NewReader(rd, path)
	if err != nil {
		in.Close(ctx) // nolint: errcheck
		return nil, nil, err
	}
	return r, closer{in, ctx}, nil
}

type closer struct {
	f   file.File
	ctx context.Context
}

func (c closer) Close() error { return c.f.Close(c.ctx) }

// Probe decodes just the header of path and estimates its kmer count from
// the file size (0 when the size cannot help, e.g. compressed input).
func Probe(ctx context.Context, path string) (Header, uint64, error) {
	r, c, err := Open(ctx, path)
	if err != nil {
		return Header{}, 0, err
	}
	defer c.Close() // nolint: errcheck
	info, err := file.Stat(ctx, path)
	if err != nil {
		return r.Hdr, 0, nil // header is good; size is best-effort
	}
	if strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".bz2") ||
		strings.HasSuffix(path, ".zst") {
		return r.Hdr, 0, nil // compressed size says nothing useful
	}
	recSize := int64(r.Hdr.NumWords)*8 + int64(r.Hdr.NumCols)*5
	body := info.Size() - headerBytes(r.Hdr)
	if body < 0 {
		return r.Hdr, 0, nil
	}
	return r.Hdr, uint64(body / recSize), nil
}

func headerBytes(hdr Header) int64 {
	n := int64(len(Magic) + 4*4)
	for i := range hdr.Infos {
		gi := &hdr.Infos[i]
		n += 4 + 8 + int64(len(gi.SampleName)) + 1 + 8
		n += 1 + 1 + 4 + 4 + 1 + int64(len(gi.Cleaning.CleanedAgainstName)) + 1
	}
	return n
}

// LoadGraph reads path into g, mapping the file's colors onto
// intoCol..intoCol+C-1, or all onto intoCol when flatten is set. The
// file's kmer size must match g's. Returns the number of records loaded.
// Safe to call from multiple goroutines with distinct files
// (concurrent-insert mode).
func LoadGraph(ctx context.Context, g *graph.Graph, path string, intoCol int, flatten bool) (uint64, error) {
	r, c, err := Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer c.Close() // nolint: errcheck

	if int(r.Hdr.KmerSize) != g.KmerSize {
		return 0, errors.E("kmer size mismatch:", path, r.Hdr.KmerSize, "vs", g.KmerSize)
	}
	ncols := int(r.Hdr.NumCols)
	if !flatten && intoCol+ncols > g.NumCols {
		return 0, errors.E("graph has too few colors for", path)
	}

	var rec Record
	var n uint64
	for {
		err := r.Read(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if _, orient := rec.BKmer.Canonical(g.KmerSize); orient != bkmer.Forward {
			return n, errors.E("non-canonical kmer in graph file:", path)
		}
		hkey, _, err := g.Table.FindOrInsert(rec.BKmer)
		if err != nil {
			return n, err
		}
		for i := 0; i < ncols; i++ {
			col := intoCol + i
			if flatten {
				col = intoCol
			}
			g.AddCovg(hkey, col, rec.Covgs[i])
			g.SetEdgeByte(hkey, col, rec.Edges[i])
		}
		n++
	}
	for i := 0; i < ncols; i++ {
		col := intoCol + i
		if flatten {
			col = intoCol
		}
		g.Infos[col].Merge(r.Hdr.Infos[i])
	}
	log.Printf("[ctx] loaded %d kmers from %s", n, path)
	return n, nil
}
