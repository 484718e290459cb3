package ctx

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/natefinch/atomic"
	"github.com/zhaoc1/mccortex/graph"
)

// Writer encodes a graph file.
type Writer struct {
	w   *bufio.Writer
	hdr Header
	buf [8]byte
	n   uint64
}

// NewWriter writes the header for hdr to w.
func NewWriter(w io.Writer, hdr Header) (*Writer, error) {
	gw := &Writer{w: bufio.NewWriterSize(w, 1<<16), hdr: hdr}
	if _, err := gw.w.WriteString(Magic); err != nil {
		return nil, err
	}
	gw.u32(hdr.Version)
	gw.u32(hdr.KmerSize)
	gw.u32(hdr.NumWords)
	gw.u32(hdr.NumCols)
	for i := range hdr.Infos {
		gw.writeInfo(&hdr.Infos[i])
	}
	return gw, gw.w.Flush()
}

func (w *Writer) writeInfo(gi *graph.GraphInfo) {
	w.u32(gi.MeanReadLength)
	w.u64(gi.TotalSequence)
	w.cstring(gi.SampleName)
	w.u64(math.Float64bits(gi.ErrorRate))
	cl := &gi.Cleaning
	w.flag(cl.CleanedTips)
	w.flag(cl.CleanedSupernodes)
	w.u32(cl.SupernodeThreshold)
	w.u32(cl.NodeThreshold)
	w.flag(cl.IsCleanedAgainst)
	w.cstring(cl.CleanedAgainstName)
}

// Write appends one record.
func (w *Writer) Write(rec *Record) error {
	if w.hdr.NumWords == 2 {
		w.u64(rec.BKmer[0])
	}
	w.u64(rec.BKmer[1])
	for _, c := range rec.Covgs {
		w.u32(uint32(c))
	}
	for _, e := range rec.Edges {
		w.w.WriteByte(byte(e))
	}
	w.n++
	return nil
}

// Flush flushes buffered records and returns the count written.
func (w *Writer) Flush() (uint64, error) {
	return w.n, w.w.Flush()
}

func (w *Writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.w.Write(w.buf[:4]) // nolint: errcheck
}

func (w *Writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.w.Write(w.buf[:8]) // nolint: errcheck
}

func (w *Writer) flag(b bool) {
	v := byte(0)
	if b {
		v = 1
	}
	w.w.WriteByte(v) // nolint: errcheck
}

func (w *Writer) cstring(s string) {
	w.w.WriteString(s) // nolint: errcheck
	w.w.WriteByte(0)   // nolint: errcheck
}

// WriteGraphFile dumps the live nodes of g, restricted to cols (nil means
// all colors in order), to path. The file is written to a temporary
// sibling and renamed into place on success, so a failed write leaves any
// existing output untouched. "-" writes to stdout with no rename.
func WriteGraphFile(path string, g *graph.Graph, cols []int) (uint64, error) {
	if cols == nil {
		cols = make([]int, g.NumCols)
		for i := range cols {
			cols[i] = i
		}
	}
	hdr := HeaderFor(g)
	hdr.NumCols = uint32(len(cols))
	hdr.Infos = hdr.Infos[:0]
	for _, c := range cols {
		hdr.Infos = append(hdr.Infos, g.Infos[c])
	}

	if path == "-" {
		n, err := writeRecords(os.Stdout, hdr, g, cols)
		return n, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ctx-*")
	if err != nil {
		return 0, errors.E(err, "creating temporary output for:", path)
	}
	defer os.Remove(tmp.Name()) // nolint: errcheck
	n, err := writeRecords(tmp, hdr, g, cols)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, errors.E(err, "writing graph:", path)
	}
	if err := atomic.ReplaceFile(tmp.Name(), path); err != nil {
		return 0, errors.E(err, "renaming graph into place:", path)
	}
	log.Printf("[ctx] wrote %d kmers to %s", n, path)
	return n, nil
}

func writeRecords(out io.Writer, hdr Header, g *graph.Graph, cols []int) (uint64, error) {
	w, err := NewWriter(out, hdr)
	if err != nil {
		return 0, err
	}
	rec := Record{
		Covgs: make([]graph.Covg, len(cols)),
		Edges: make([]graph.Edges, len(cols)),
	}
	g.Table.ForEach(func(hkey uint64) {
		rec.BKmer = g.BKmer(hkey)
		for i, c := range cols {
			rec.Covgs[i] = g.Covg(hkey, c)
			rec.Edges[i] = g.ColEdges(hkey, c)
		}
		w.Write(&rec) // nolint: errcheck
	})
	return w.Flush()
}
