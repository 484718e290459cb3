package paths

import (
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/zhaoc1/mccortex/bkmer"
)

func randNucs(r *rand.Rand, n int) []bkmer.Nuc {
	nucs := make([]bkmer.Nuc, n)
	for i := range nucs {
		nucs[i] = bkmer.Nuc(r.Intn(4))
	}
	return nucs
}

func TestPackUnpackRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for iter := 0; iter < 200; iter++ {
		n := r.Intn(101)
		bases := randNucs(r, n)
		packed := make([]byte, PackedLen(n))
		PackBases(packed, bases)
		out := make([]bkmer.Nuc, n)
		UnpackBases(packed, out, n)
		expect.EQ(t, out, bases)
	}
}

func TestPackedCpyShiftRoundTrip(t *testing.T) {
	// unpack(packed_cpy(pack(s), shift)) == s[shift:] for every shift.
	r := rand.New(rand.NewSource(2))
	for iter := 0; iter < 200; iter++ {
		n := 1 + r.Intn(100)
		bases := randNucs(r, n)
		packed := make([]byte, PackedLen(n))
		PackBases(packed, bases)
		for shift := 0; shift <= n; shift++ {
			dst := make([]byte, PackedLen(n))
			for i := range dst {
				dst[i] = 0xff
			}
			PackedCpy(dst, packed, shift, n)
			out := make([]bkmer.Nuc, n-shift)
			UnpackBases(dst, out, n-shift)
			expect.EQ(t, out, bases[shift:])
		}
	}
}

func TestPackedCpyZerosIntoDirtyBuffer(t *testing.T) {
	// Copying 15 zero bases into a 0xff-filled buffer must zero exactly
	// the four packed bytes and leave the rest alone.
	src := make([]byte, 10)
	out := make([]byte, 100)
	for i := range out {
		out[i] = 0xff
	}
	for shift := 0; shift < 4; shift++ {
		PackedCpy(out[1:], src, shift, 15)
		assert.EqualValues(t, 0xff, out[0])
		for i := 1; i < 5; i++ {
			assert.EqualValues(t, 0, out[i], "byte %d, shift %d", i, shift)
		}
		for i := 5; i < 100; i++ {
			assert.EqualValues(t, 0xff, out[i], "byte %d, shift %d", i, shift)
		}
	}
}

func TestCombineLenOrientRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for iter := 0; iter < 1000; iter++ {
		n := uint32(r.Uint64()) & LenMask
		o := bkmer.Orientation(r.Intn(2))
		n2, o2 := SplitLenOrient(CombineLenOrient(n, o))
		expect.EQ(t, n2, n)
		expect.EQ(t, o2, o)
	}
}
