// Package fastx is a minimal reader for FASTA and FASTQ sequence files,
// detected by the first record marker, with transparent gzip decoding by
// file extension.
package fastx

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// Read is one sequence record. Qual is empty for FASTA input.
type Read struct {
	Name string
	Seq  string
	Qual string
}

// Reader scans FASTA or FASTQ records.
type Reader struct {
	r     *bufio.Reader
	path  string
	fasta bool
	// peeked holds the next FASTA header line once the previous record
	// has been scanned.
	peeked string
	eof    bool
}

// Open opens path for reading, ungzipping *.gz.
func Open(ctx context.Context, path string) (*Reader, io.Closer, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "opening sequence file:", path)
	}
	var rd io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(rd)
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, nil, errors.E(err, "ungzipping sequence file:", path)
		}
		rd = gz
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

// NewReader wraps rd, sniffing the format from the first byte.
func NewReader(rd io.Reader, path string) (*Reader, error) {
	r := &Reader{r: bufio.NewReaderSize(rd, 1<<16), path: path}
	first, err := r.r.Peek(1)
	if err == io.EOF {
		r.eof = true
		return r, nil
	}
	if err != nil {
		return nil, errors.E(err, "reading sequence file:", path)
	}
	switch first[0] {
	case '>':
		r.fasta = true
	case '@':
	default:
		return nil, errors.E("unrecognized sequence format (expected '>' or '@'):", path)
	}
	return r, nil
}

// Scan reads the next record into out. It returns io.EOF at the end of
// input and a descriptive error on malformed records.
func (r *Reader) Scan(out *Read) error {
	if r.eof {
		return io.EOF
	}
	if r.fasta {
		return r.scanFASTA(out)
	}
	return r.scanFASTQ(out)
}

func (r *Reader) line() (string, error) {
	s, err := r.r.ReadString('\n')
	if err == io.EOF && s != "" {
		err = nil
	}
	return strings.TrimRight(s, "\r\n"), err
}

func (r *Reader) scanFASTA(out *Read) error {
	hdr := r.peeked
	if hdr == "" {
		var err error
		if hdr, err = r.line(); err != nil {
			return err
		}
	}
	if !strings.HasPrefix(hdr, ">") {
		return errors.E("malformed FASTA record:", r.path, hdr)
	}
	out.Name = strings.TrimPrefix(hdr, ">")
	out.Qual = ""
	var sb strings.Builder
	r.peeked = ""
	for {
		s, err := r.line()
		if err == io.EOF {
			r.eof = true
			break
		}
		if err != nil {
			return err
		}
		if strings.HasPrefix(s, ">") {
			r.peeked = s
			break
		}
		sb.WriteString(s)
	}
	out.Seq = sb.String()
	return nil
}

func (r *Reader) scanFASTQ(out *Read) error {
	hdr, err := r.line()
	if err == io.EOF {
		r.eof = true
		return io.EOF
	}
	if err != nil {
		return err
	}
	if !strings.HasPrefix(hdr, "@") {
		return errors.E("malformed FASTQ record:", r.path, hdr)
	}
	out.Name = strings.TrimPrefix(hdr, "@")
	if out.Seq, err = r.line(); err != nil {
		return errors.E("truncated FASTQ record:", r.path, out.Name)
	}
	plus, err := r.line()
	if err != nil || !strings.HasPrefix(plus, "+") {
		return errors.E("malformed FASTQ separator:", r.path, out.Name)
	}
	if out.Qual, err = r.line(); err != nil {
		return errors.E("truncated FASTQ record:", r.path, out.Name)
	}
	if len(out.Qual) != len(out.Seq) {
		return errors.E("FASTQ quality length mismatch:", r.path, out.Name)
	}
	return nil
}
