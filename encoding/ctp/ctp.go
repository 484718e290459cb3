// Package ctp reads and writes path files: the serialized form of the
// path store, plus an index mapping kmers to their first path entry.
package ctp

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/natefinch/atomic"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
	"github.com/zhaoc1/mccortex/paths"
)

// Magic opens every path file.
const Magic = "PATHS01"

// Header is the decoded path file header.
type Header struct {
	NumPaths          uint64
	NumPathBytes      uint64
	NumKmersWithPaths uint64
	NumCols           uint32
}

// WritePathsFile dumps the path store to path: header, arena bytes, then
// (kmer, first offset) index records for every node with paths. Written
// via a temporary file renamed on success.
func WritePathsFile(path string, g *graph.Graph, ps *paths.Store) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ctp-*")
	if err != nil {
		return errors.E(err, "creating temporary output for:", path)
	}
	defer os.Remove(tmp.Name()) // nolint: errcheck
	err = writeTo(tmp, g, ps)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.E(err, "writing paths:", path)
	}
	if err := atomic.ReplaceFile(tmp.Name(), path); err != nil {
		return errors.E(err, "renaming paths into place:", path)
	}
	log.Printf("[ctp] wrote %d paths (%d bytes) to %s", ps.NumPaths(), ps.NumBytes(), path)
	return nil
}

func writeTo(out io.Writer, g *graph.Graph, ps *paths.Store) error {
	w := bufio.NewWriterSize(out, 1<<16)
	var buf [8]byte
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:8], v)
		w.Write(buf[:8]) // nolint: errcheck
	}
	if _, err := w.WriteString(Magic); err != nil {
		return err
	}
	u64(ps.NumPaths())
	u64(ps.NumBytes())
	u64(ps.NumKmersWithPaths())
	binary.LittleEndian.PutUint32(buf[:4], uint32(ps.NumCols()))
	w.Write(buf[:4]) // nolint: errcheck
	w.Write(ps.Arena())

	nwords := bkmer.NumWords(g.KmerSize)
	ps.ForEachHead(func(hkey, head uint64) {
		bk := g.BKmer(hkey)
		if nwords == 2 {
			u64(bk[0])
		}
		u64(bk[1])
		u64(head)
	})
	return w.Flush()
}

func openRaw(ctx context.Context, path string) (*bufio.Reader, io.Closer, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "opening path file:", path)
	}
	var rd io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(rd, in.Name()); u != nil {
		rd = u
	}
	return bufio.NewReaderSize(rd, 1<<16), fileCloser{in, ctx}, nil
}

type fileCloser struct {
	f   file.File
	ctx context.Context
}

func (c fileCloser) Close() error { return c.f.Close(c.ctx) }

func readHeader(r *bufio.Reader, path string) (Header, error) {
	var hdr Header
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return hdr, errors.E(err, "reading magic:", path)
	}
	if string(magic) != Magic {
		return hdr, errors.E("not a path file (bad magic):", path)
	}
	var buf [8]byte
	var err error
	u64 := func() (uint64, error) {
		_, err := io.ReadFull(r, buf[:8])
		return binary.LittleEndian.Uint64(buf[:8]), err
	}
	if hdr.NumPaths, err = u64(); err != nil {
		return hdr, errors.E(err, "reading path count:", path)
	}
	if hdr.NumPathBytes, err = u64(); err != nil {
		return hdr, errors.E(err, "reading arena size:", path)
	}
	if hdr.NumKmersWithPaths, err = u64(); err != nil {
		return hdr, errors.E(err, "reading kmer count:", path)
	}
	if _, err = io.ReadFull(r, buf[:4]); err != nil {
		return hdr, errors.E(err, "reading color count:", path)
	}
	hdr.NumCols = binary.LittleEndian.Uint32(buf[:4])
	return hdr, nil
}

// Probe decodes just the header of a path file.
func Probe(ctx context.Context, path string) (Header, error) {
	r, c, err := openRaw(ctx, path)
	if err != nil {
		return Header{}, err
	}
	defer c.Close() // nolint: errcheck
	return readHeader(r, path)
}

// ReadPathsFile loads a path file into ps, attaching chains to the nodes
// of g. Entries merge through the store's normal append path, so loading
// several files unions color bitmaps of identical paths.
func ReadPathsFile(ctx context.Context, path string, g *graph.Graph, ps *paths.Store) error {
	r, c, err := openRaw(ctx, path)
	if err != nil {
		return err
	}
	defer c.Close() // nolint: errcheck
	hdr, err := readHeader(r, path)
	if err != nil {
		return err
	}
	var buf [8]byte
	u64 := func() (uint64, error) {
		_, err := io.ReadFull(r, buf[:8])
		return binary.LittleEndian.Uint64(buf[:8]), err
	}
	if int(hdr.NumCols) != ps.NumCols() {
		return errors.E("path file color count mismatch:", path, hdr.NumCols, "vs", ps.NumCols())
	}

	arena := make([]byte, hdr.NumPathBytes)
	if _, err := io.ReadFull(r, arena); err != nil {
		return errors.E(err, "reading path arena:", path)
	}

	nwords := bkmer.NumWords(g.KmerSize)
	colBytes := (int(hdr.NumCols) + 7) / 8
	var loaded uint64
	for i := uint64(0); i < hdr.NumKmersWithPaths; i++ {
		var bk bkmer.Kmer
		if nwords == 2 {
			if bk[0], err = u64(); err != nil {
				return errors.E(err, "truncated kmer index:", path)
			}
		}
		if bk[1], err = u64(); err != nil {
			return errors.E(err, "truncated kmer index:", path)
		}
		head, err := u64()
		if err != nil {
			return errors.E(err, "truncated kmer index:", path)
		}
		hkey := g.Table.Find(bk)
		if hkey == graph.KeyNil {
			return errors.E("path file kmer missing from graph:", path, bk.String(g.KmerSize))
		}
		n, err := attachChain(ps, hkey, arena, head, colBytes)
		if err != nil {
			return errors.E(err, "loading paths for kmer:", path, bk.String(g.KmerSize))
		}
		loaded += n
	}
	log.Printf("[ctp] loaded %d path entries from %s", loaded, path)
	return nil
}

// attachChain replays one node's chain from a file arena into the store,
// oldest entry first so publication order matches the original file.
func attachChain(ps *paths.Store, hkey uint64, arena []byte, head uint64, colBytes int) (uint64, error) {
	type rawEntry struct {
		cols  []byte
		bases []bkmer.Nuc
		or    bkmer.Orientation
	}
	var chain []rawEntry
	for off := head; off != paths.NullOffset; {
		if off+uint64(8+colBytes+4) > uint64(len(arena)) {
			return 0, errors.E("path entry offset out of range:", off)
		}
		prev := binary.LittleEndian.Uint64(arena[off:])
		cols := arena[off+8 : off+8+uint64(colBytes)]
		n, or := paths.SplitLenOrient(binary.LittleEndian.Uint32(arena[off+8+uint64(colBytes):]))
		base := off + 8 + uint64(colBytes) + 4
		nbytes := uint64(paths.PackedLen(int(n)))
		if base+nbytes > uint64(len(arena)) {
			return 0, errors.E("path entry bases out of range:", off)
		}
		bases := make([]bkmer.Nuc, n)
		paths.UnpackBases(arena[base:base+nbytes], bases, int(n))
		chain = append(chain, rawEntry{cols, bases, or})
		off = prev
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if _, err := ps.Append(hkey, chain[i].or, chain[i].bases, chain[i].cols); err != nil {
			return 0, err
		}
	}
	return uint64(len(chain)), nil
}
