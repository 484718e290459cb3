// Package paths implements the path store: an append-only arena of packed
// variable-length nucleotide paths chained per graph node, each tagged with
// the set of colors that witnessed it.
package paths

import (
	"github.com/zhaoc1/mccortex/bkmer"
)

// LenMask extracts the length from a combined lenorient word; the top bit
// holds the orientation at the anchor node.
const LenMask uint32 = 1<<31 - 1

// CombineLenOrient packs a path length (31 bits) and orientation into one
// word.
func CombineLenOrient(n uint32, o bkmer.Orientation) uint32 {
	return (n & LenMask) | uint32(o)<<31
}

// SplitLenOrient is the inverse of CombineLenOrient.
func SplitLenOrient(w uint32) (n uint32, o bkmer.Orientation) {
	return w & LenMask, bkmer.Orientation(w >> 31)
}

// PackedLen returns the bytes needed for n packed bases.
func PackedLen(n int) int { return (2*n + 7) / 8 }

// PackBases packs bases two bits each: base i occupies bits (2i, 2i+1) of
// byte i/4. Trailing bits of the final byte are zero.
func PackBases(dst []byte, bases []bkmer.Nuc) {
	nbytes := PackedLen(len(bases))
	for i := 0; i < nbytes; i++ {
		dst[i] = 0
	}
	for i, n := range bases {
		dst[i>>2] |= byte(n) << uint((i&3)*2)
	}
}

// UnpackBases expands n packed bases from src into dst.
func UnpackBases(src []byte, dst []bkmer.Nuc, n int) {
	for i := 0; i < n; i++ {
		dst[i] = bkmer.Nuc(src[i>>2]>>uint((i&3)*2)) & 3
	}
}

// PackedCpy copies n-shift bases starting at base offset shift of src into
// dst, re-aligned to base offset 0. Trailing bits of the last written byte
// are zeroed; bytes beyond it are untouched.
func PackedCpy(dst, src []byte, shift, n int) {
	m := n - shift
	if m <= 0 {
		return
	}
	nbytes := PackedLen(m)
	src = src[shift>>2:]
	if bitShift := uint((shift & 3) * 2); bitShift == 0 {
		copy(dst[:nbytes], src)
	} else {
		for i := 0; i < nbytes; i++ {
			b := src[i] >> bitShift
			if i+1 < len(src) {
				b |= src[i+1] << (8 - bitShift)
			}
			dst[i] = b
		}
	}
	if rem := uint((2 * m) & 7); rem != 0 {
		dst[nbytes-1] &= 1<<rem - 1
	}
}
