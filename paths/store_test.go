package paths

import (
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaoc1/mccortex/bkmer"
)

type flatPath struct {
	orient bkmer.Orientation
	bases  string
	cols   byte
}

func flatten(t *testing.T, s *Store, hkey uint64) []flatPath {
	var out []flatPath
	for off := s.Head(hkey); off != NullOffset; off = s.Prev(off) {
		n, orient := s.LenOrient(off)
		bases := make([]bkmer.Nuc, n)
		s.Fetch(off, bases)
		buf := make([]byte, n)
		for i, b := range bases {
			buf[i] = b.Char()
		}
		out = append(out, flatPath{orient, string(buf), s.Cols(off)[0]})
	}
	return out
}

func TestAppendAndIterate(t *testing.T) {
	s := NewStore(3, 1<<16, 100)
	_, err := s.AppendCol(7, bkmer.Forward, []bkmer.Nuc{bkmer.NucA, bkmer.NucG}, 0)
	require.NoError(t, err)
	_, err = s.AppendCol(7, bkmer.Reverse, []bkmer.Nuc{bkmer.NucA, bkmer.NucG}, 1)
	require.NoError(t, err)
	_, err = s.AppendCol(9, bkmer.Forward, []bkmer.Nuc{bkmer.NucT}, 0)
	require.NoError(t, err)

	expect.EQ(t, flatten(t, s, 7), []flatPath{
		{bkmer.Reverse, "AG", 0x02},
		{bkmer.Forward, "AG", 0x01},
	})
	expect.EQ(t, flatten(t, s, 9), []flatPath{{bkmer.Forward, "T", 0x01}})
	expect.EQ(t, s.NumPaths(), uint64(3))
	expect.EQ(t, s.NumKmersWithPaths(), uint64(2))
}

func TestAppendMergesDuplicateColors(t *testing.T) {
	// The same path appended in two colors yields one entry with both
	// color bits set.
	s := NewStore(4, 1<<16, 100)
	p := []bkmer.Nuc{bkmer.NucA, bkmer.NucC, bkmer.NucG}
	off1, err := s.AppendCol(5, bkmer.Forward, p, 0)
	require.NoError(t, err)
	off2, err := s.AppendCol(5, bkmer.Forward, p, 2)
	require.NoError(t, err)
	expect.EQ(t, off2, off1)
	expect.EQ(t, flatten(t, s, 5), []flatPath{{bkmer.Forward, "ACG", 0x05}})
	expect.EQ(t, s.NumPaths(), uint64(1))

	// Same bases, different orientation: distinct entry.
	_, err = s.AppendCol(5, bkmer.Reverse, p, 0)
	require.NoError(t, err)
	expect.EQ(t, s.NumPaths(), uint64(2))
}

func TestChainConsistencyRandomized(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	s := NewStore(8, 1<<20, 50)
	type key struct {
		hkey   uint64
		orient bkmer.Orientation
		bases  string
	}
	want := map[key]byte{}
	for iter := 0; iter < 2000; iter++ {
		hkey := uint64(1 + r.Intn(50))
		orient := bkmer.Orientation(r.Intn(2))
		bases := randNucs(r, 1+r.Intn(12))
		col := r.Intn(8)
		_, err := s.AppendCol(hkey, orient, bases, col)
		require.NoError(t, err)
		buf := make([]byte, len(bases))
		for i, b := range bases {
			buf[i] = b.Char()
		}
		want[key{hkey, orient, string(buf)}] |= 1 << uint(col)
	}
	got := map[key]byte{}
	var total int
	for hkey := uint64(1); hkey <= 50; hkey++ {
		for _, p := range flatten(t, s, hkey) {
			got[key{hkey, p.orient, p.bases}] = p.cols
			total++
		}
	}
	expect.EQ(t, got, want)
	assert.Equal(t, uint64(total), s.NumPaths())
}

func TestArenaFull(t *testing.T) {
	s := NewStore(1, 8, 10)
	_, err := s.AppendCol(1, bkmer.Forward, []bkmer.Nuc{0, 1, 2, 3, 0, 1, 2, 3}, 0)
	assert.Error(t, err)
}
