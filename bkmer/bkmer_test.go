package bkmer

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randSeq(r *rand.Rand, k int) string {
	var sb strings.Builder
	for i := 0; i < k; i++ {
		sb.WriteByte(nucChars[r.Intn(4)])
	}
	return sb.String()
}

func revcompStr(s string) string {
	buf := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		n, _ := NucFromChar(s[len(s)-1-i])
		buf[i] = n.Complement().Char()
	}
	return string(buf)
}

func TestStringRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for iter := 0; iter < 200; iter++ {
		k := MinK + r.Intn(MaxK-MinK+1)
		s := randSeq(r, k)
		bk, ok := FromString(s)
		require.True(t, ok)
		expect.EQ(t, bk.String(k), s)
	}
}

func TestFromStringRejectsAmbiguous(t *testing.T) {
	_, ok := FromString("ACGNT")
	assert.False(t, ok)
}

func TestReverseComplement(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for iter := 0; iter < 200; iter++ {
		k := MinK + r.Intn(MaxK-MinK+1)
		s := randSeq(r, k)
		bk, _ := FromString(s)
		rc := bk.ReverseComplement(k)
		expect.EQ(t, rc.String(k), revcompStr(s))
		expect.EQ(t, rc.ReverseComplement(k), bk)
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for iter := 0; iter < 500; iter++ {
		k := MinK + r.Intn(MaxK-MinK+1)
		bk, _ := FromString(randSeq(r, k))
		key, orient := bk.Canonical(k)
		key2, orient2 := key.Canonical(k)
		expect.EQ(t, key2, key)
		expect.EQ(t, orient2, Forward)
		// The canonical form is min(bk, revcomp(bk)) lexicographically.
		rc := bk.ReverseComplement(k)
		if bk.String(k) <= rc.String(k) {
			expect.EQ(t, key, bk)
			expect.EQ(t, orient, Forward)
		} else {
			expect.EQ(t, key, rc)
			expect.EQ(t, orient, Reverse)
		}
		expect.EQ(t, key.Oriented(k, orient), bk)
	}
}

func TestShiftLeftAdd(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for iter := 0; iter < 200; iter++ {
		k := MinK + r.Intn(MaxK-MinK+1)
		s := randSeq(r, k)
		bk, _ := FromString(s)
		n := Nuc(r.Intn(4))
		next := bk.ShiftLeftAdd(k, n)
		expect.EQ(t, next.String(k), s[1:]+string(n.Char()))
		prev := bk.ShiftRightAdd(k, n)
		expect.EQ(t, prev.String(k), string(n.Char())+s[:k-1])
	}
}

func TestFirstLastNuc(t *testing.T) {
	for _, k := range []int{3, 31, 32, 33, 63} {
		s := randSeq(rand.New(rand.NewSource(int64(k))), k)
		bk, _ := FromString(s)
		first, _ := NucFromChar(s[0])
		last, _ := NucFromChar(s[k-1])
		assert.Equal(t, first, bk.FirstNuc(k), "k=%d seq=%s", k, s)
		assert.Equal(t, last, bk.LastNuc())
	}
}

func TestComplement(t *testing.T) {
	expect.EQ(t, NucA.Complement(), NucT)
	expect.EQ(t, NucC.Complement(), NucG)
	expect.EQ(t, NucG.Complement(), NucC)
	expect.EQ(t, NucT.Complement(), NucA)
}

func TestHashVariesByAttempt(t *testing.T) {
	bk, _ := FromString("ACGTACGTACG")
	assert.NotEqual(t, bk.Hash64(0), bk.Hash64(1))
}
