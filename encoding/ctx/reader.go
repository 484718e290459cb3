package ctx

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
)

// Reader decodes a graph file. Scalar fields are little-endian; kmer words
// pack the first base in the most significant bits.
type Reader struct {
	r    *bufio.Reader
	path string
	Hdr  Header
	buf  [8]byte
}

// NewReader reads and validates the header from rd. path is used in error
// messages only.
func NewReader(rd io.Reader, path string) (*Reader, error) {
	r := &Reader{r: bufio.NewReaderSize(rd, 1<<16), path: path}
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r.r, magic); err != nil {
		return nil, errors.E(err, "reading magic:", path)
	}
	if string(magic) != Magic {
		return nil, errors.E("not a graph file (bad magic):", path)
	}
	var err error
	if r.Hdr.Version, err = r.u32(); err != nil {
		return nil, errors.E(err, "reading version:", path)
	}
	if r.Hdr.Version != Version {
		return nil, errors.E("unsupported graph file version:", r.Hdr.Version, path)
	}
	if r.Hdr.KmerSize, err = r.u32(); err != nil {
		return nil, errors.E(err, "reading kmer size:", path)
	}
	if r.Hdr.KmerSize < bkmer.MinK || r.Hdr.KmerSize > bkmer.MaxK {
		return nil, errors.E("kmer size out of range:", r.Hdr.KmerSize, path)
	}
	if r.Hdr.NumWords, err = r.u32(); err != nil {
		return nil, errors.E(err, "reading bitfield count:", path)
	}
	if int(r.Hdr.NumWords) != bkmer.NumWords(int(r.Hdr.KmerSize)) {
		return nil, errors.E("bitfield count does not match kmer size:", r.Hdr.NumWords, path)
	}
	if r.Hdr.NumCols, err = r.u32(); err != nil {
		return nil, errors.E(err, "reading color count:", path)
	}
	if r.Hdr.NumCols == 0 {
		return nil, errors.E("graph file with zero colors:", path)
	}
	r.Hdr.Infos = make([]graph.GraphInfo, r.Hdr.NumCols)
	for i := range r.Hdr.Infos {
		if err := r.readInfo(&r.Hdr.Infos[i]); err != nil {
			return nil, errors.E(err, "reading color info:", path)
		}
	}
	return r, nil
}

func (r *Reader) readInfo(gi *graph.GraphInfo) error {
	var err error
	if gi.MeanReadLength, err = r.u32(); err != nil {
		return err
	}
	if gi.TotalSequence, err = r.u64(); err != nil {
		return err
	}
	if gi.SampleName, err = r.cstring(); err != nil {
		return err
	}
	bits, err := r.u64()
	if err != nil {
		return err
	}
	gi.ErrorRate = math.Float64frombits(bits)
	cl := &gi.Cleaning
	if cl.CleanedTips, err = r.flag(); err != nil {
		return err
	}
	if cl.CleanedSupernodes, err = r.flag(); err != nil {
		return err
	}
	if cl.SupernodeThreshold, err = r.u32(); err != nil {
		return err
	}
	if cl.NodeThreshold, err = r.u32(); err != nil {
		return err
	}
	if cl.IsCleanedAgainst, err = r.flag(); err != nil {
		return err
	}
	if cl.CleanedAgainstName, err = r.cstring(); err != nil {
		return err
	}
	return nil
}

// Read decodes the next record into rec, reusing its slices. It returns
// io.EOF at a clean end of file; a partial record is an error.
func (r *Reader) Read(rec *Record) error {
	ncols := int(r.Hdr.NumCols)
	for w := uint32(0); w < r.Hdr.NumWords; w++ {
		v, err := r.u64()
		if err != nil {
			if err == io.ErrUnexpectedEOF || w > 0 {
				return errors.E("truncated kmer record:", r.path)
			}
			return err // clean EOF before the first word
		}
		// File words are most-significant first; for a one-word kmer
		// only the low word is stored.
		if r.Hdr.NumWords == 2 && w == 0 {
			rec.BKmer[0] = v
		} else {
			rec.BKmer[1] = v
			if r.Hdr.NumWords == 1 {
				rec.BKmer[0] = 0
			}
		}
	}
	if cap(rec.Covgs) < ncols {
		rec.Covgs = make([]graph.Covg, ncols)
		rec.Edges = make([]graph.Edges, ncols)
	}
	rec.Covgs = rec.Covgs[:ncols]
	rec.Edges = rec.Edges[:ncols]
	for i := 0; i < ncols; i++ {
		v, err := r.u32()
		if err != nil {
			return errors.E("truncated coverage record:", r.path)
		}
		rec.Covgs[i] = graph.Covg(v)
	}
	for i := 0; i < ncols; i++ {
		b, err := r.r.ReadByte()
		if err != nil {
			return errors.E("truncated edge record:", r.path)
		}
		rec.Edges[i] = graph.Edges(b)
	}
	return nil
}

func (r *Reader) u32() (uint32, error) {
	if _, err := io.ReadFull(r.r, r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

func (r *Reader) u64() (uint64, error) {
	if _, err := io.ReadFull(r.r, r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.buf[:8]), nil
}

func (r *Reader) flag() (bool, error) {
	b, err := r.r.ReadByte()
	return b != 0, err
}

func (r *Reader) cstring() (string, error) {
	s, err := r.r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}
