// Package bkmer implements fixed-width binary kmers: DNA sequences of K
// bases, 3 <= K <= 63, packed two bits per base into a pair of 64-bit
// words. The first base occupies the most significant bits, so comparing
// the words as a 128-bit integer matches lexicographic comparison of the
// sequence.
package bkmer

import (
	farm "github.com/dgryski/go-farm"
)

// MinK and MaxK bound the supported kmer sizes. MaxK is 63 so that a kmer
// always fits in two words with at least one spare high bit (the hash table
// reserves all-ones word patterns as slot sentinels).
const (
	MinK = 3
	MaxK = 63
)

// Nuc is a two-bit nucleotide code.
type Nuc uint8

// Nucleotide codes. Complement is XOR with 3.
const (
	NucA Nuc = 0
	NucC Nuc = 1
	NucG Nuc = 2
	NucT Nuc = 3
)

var nucChars = [4]byte{'A', 'C', 'G', 'T'}

// Complement returns the Watson-Crick complement.
func (n Nuc) Complement() Nuc { return n ^ 3 }

// Char returns the ASCII base for n.
func (n Nuc) Char() byte { return nucChars[n&3] }

// NucFromChar converts an ASCII base (either case) to its two-bit code.
// The second result is false for ambiguity codes such as 'N'.
func NucFromChar(c byte) (Nuc, bool) {
	switch c {
	case 'A', 'a':
		return NucA, true
	case 'C', 'c':
		return NucC, true
	case 'G', 'g':
		return NucG, true
	case 'T', 't':
		return NucT, true
	}
	return 0, false
}

// Orientation distinguishes the two strands of a stored canonical kmer.
type Orientation uint8

const (
	Forward Orientation = 0
	Reverse Orientation = 1
)

// Opposite flips the orientation.
func (o Orientation) Opposite() Orientation { return o ^ 1 }

func (o Orientation) String() string {
	if o == Forward {
		return "fw"
	}
	return "rv"
}

// Kmer holds K bases right-aligned in the low 2K bits of [hi, lo].
type Kmer [2]uint64

// NumWords returns the number of 64-bit words needed to hold a kmer of
// size k. This is the per-record word count used by the graph file format.
func NumWords(k int) int { return (2*k + 63) / 64 }

// FromString parses a kmer from ASCII bases. ok is false if s contains a
// base without a two-bit code.
func FromString(s string) (bk Kmer, ok bool) {
	for i := 0; i < len(s); i++ {
		n, ok := NucFromChar(s[i])
		if !ok {
			return Kmer{}, false
		}
		bk[0] = (bk[0] << 2) | (bk[1] >> 62)
		bk[1] = (bk[1] << 2) | uint64(n)
	}
	return bk, true
}

// String renders the kmer as k ASCII bases.
func (bk Kmer) String(k int) string {
	buf := make([]byte, k)
	for i := 0; i < k; i++ {
		buf[k-1-i] = bk.nucAt(uint(2 * i)).Char()
	}
	return string(buf)
}

func (bk Kmer) nucAt(shift uint) Nuc {
	if shift >= 64 {
		return Nuc(bk[0]>>(shift-64)) & 3
	}
	return Nuc(bk[1]>>shift) & 3
}

// FirstNuc returns the first (most significant) base of a size-k kmer.
func (bk Kmer) FirstNuc(k int) Nuc { return bk.nucAt(uint(2 * (k - 1))) }

// LastNuc returns the final base.
func (bk Kmer) LastNuc() Nuc { return Nuc(bk[1] & 3) }

// ShiftLeftAdd drops the first base and appends n at the end: the forward
// extension of a kmer walk.
func (bk Kmer) ShiftLeftAdd(k int, n Nuc) Kmer {
	r := Kmer{(bk[0] << 2) | (bk[1] >> 62), (bk[1] << 2) | uint64(n)}
	return r.maskTop(k)
}

// ShiftRightAdd drops the last base and prepends n at the front: the
// reverse extension.
func (bk Kmer) ShiftRightAdd(k int, n Nuc) Kmer {
	r := Kmer{bk[0] >> 2, (bk[1] >> 2) | (bk[0] << 62)}
	shift := uint(2 * (k - 1))
	if shift >= 64 {
		r[0] |= uint64(n) << (shift - 64)
	} else {
		r[1] |= uint64(n) << shift
	}
	return r
}

func (bk Kmer) maskTop(k int) Kmer {
	bits := uint(2 * k)
	if bits >= 64 {
		if bits < 128 {
			bk[0] &= (1 << (bits - 64)) - 1
		}
	} else {
		bk[0] = 0
		bk[1] &= (1 << bits) - 1
	}
	return bk
}

// rev2comp reverses the 32 two-bit groups of w and complements each.
func rev2comp(w uint64) uint64 {
	w = ^w
	w = ((w >> 2) & 0x3333333333333333) | ((w & 0x3333333333333333) << 2)
	w = ((w >> 4) & 0x0f0f0f0f0f0f0f0f) | ((w & 0x0f0f0f0f0f0f0f0f) << 4)
	w = ((w >> 8) & 0x00ff00ff00ff00ff) | ((w & 0x00ff00ff00ff00ff) << 8)
	w = ((w >> 16) & 0x0000ffff0000ffff) | ((w & 0x0000ffff0000ffff) << 16)
	return (w >> 32) | (w << 32)
}

// ReverseComplement returns the reverse complement of a size-k kmer.
func (bk Kmer) ReverseComplement(k int) Kmer {
	hi, lo := rev2comp(bk[1]), rev2comp(bk[0])
	shift := uint(128 - 2*k)
	switch {
	case shift < 64:
		return Kmer{hi >> shift, (lo >> shift) | (hi << (64 - shift))}
	default:
		return Kmer{0, hi >> (shift - 64)}
	}
}

// Less reports whether bk sorts lexicographically before o.
func (bk Kmer) Less(o Kmer) bool {
	if bk[0] != o[0] {
		return bk[0] < o[0]
	}
	return bk[1] < o[1]
}

// Canonical returns the lexicographically smaller of bk and its reverse
// complement, plus the orientation that maps the canonical form back to bk:
// Forward if bk itself is canonical.
func (bk Kmer) Canonical(k int) (Kmer, Orientation) {
	rc := bk.ReverseComplement(k)
	if rc.Less(bk) {
		return rc, Reverse
	}
	return bk, Forward
}

// Oriented returns bk if o is Forward, else the reverse complement. Applied
// to a canonical kmer it recovers the strand a lookup matched on.
func (bk Kmer) Oriented(k int, o Orientation) Kmer {
	if o == Forward {
		return bk
	}
	return bk.ReverseComplement(k)
}

// Hash64 mixes both words through farmhash. attempt perturbs the hash for
// bounded rehashing in the kmer table.
func (bk Kmer) Hash64(attempt uint32) uint64 {
	return farm.Hash64WithSeeds(nil, bk[0], bk[1]+uint64(attempt)*0x9e3779b97f4a7c15)
}
