package clean

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
)

func buildSeq(t *testing.T, g *graph.Graph, col int, seq string, covg graph.Covg) {
	var prev graph.Next
	havePrev := false
	for i := 0; i+g.KmerSize <= len(seq); i++ {
		bk, ok := bkmer.FromString(seq[i : i+g.KmerSize])
		require.True(t, ok)
		hkey, orient, _, err := g.FindOrInsert(bk)
		require.NoError(t, err)
		g.AddCovg(hkey, col, covg)
		cur := graph.Next{Node: hkey, Orient: orient, BKmer: bk}
		if havePrev {
			g.LinkNodes(col, prev, cur)
		}
		prev, havePrev = cur, true
	}
}

func kmerSet(g *graph.Graph) map[string]bool {
	set := map[string]bool{}
	g.Table.ForEach(func(hkey uint64) {
		set[g.BKmer(hkey).String(g.KmerSize)] = true
	})
	return set
}

// tipGraph builds a trunk with a one-kmer tip hanging off the junction GAC:
//
//	GGA -> GAC -> ACT -> CTT -> TTG   (trunk)
//	         \-> ACG                  (tip)
func tipGraph(t *testing.T) *graph.Graph {
	g := graph.New(3, 1, 1000)
	buildSeq(t, g, 0, "GGACTTG", 1)
	buildSeq(t, g, 0, "GACG", 1)
	return g
}

func TestSupernodeCoversUnbranchedChain(t *testing.T) {
	g := graph.New(3, 1, 1000)
	defer g.Close()
	buildSeq(t, g, 0, "AAACT", 1)
	bk, _ := bkmer.FromString("AAC")
	hkey, _, ok := g.Find(bk)
	require.True(t, ok)
	sn := Supernode(g, hkey, nil)
	assert.Equal(t, 3, len(sn))
}

func TestRemoveTips(t *testing.T) {
	// A one-kmer dead-end branch is a tip of length 1 < 2 and is clipped;
	// the trunk and the junction's remaining edge survive.
	g := tipGraph(t)
	defer g.Close()
	before := kmerSet(g)
	require.True(t, before[mustCanon(t, "ACG")])

	v := NewBitSet(g.Capacity())
	removed := RemoveTips(g, 2, v)
	assert.Equal(t, 1, removed)

	after := kmerSet(g)
	assert.False(t, after[mustCanon(t, "ACG")])
	for _, s := range []string{"GGA", "GAC", "ACT", "CTT", "TTG"} {
		assert.True(t, after[mustCanon(t, s)], "lost trunk kmer %s", s)
	}
	// The junction no longer advertises the clipped branch.
	bk, _ := bkmer.FromString("GAC")
	hkey, orient, ok := g.Find(bk)
	require.True(t, ok)
	var out [4]graph.Next
	nibble := g.UnionEdges(hkey).WithOrientation(orient)
	n := g.NextNodes(g.OrientedBKmer(hkey, orient), nibble, &out)
	require.Equal(t, 1, n)
	expect.EQ(t, out[0].BKmer.String(3), "ACT")
}

func TestRemoveTipsMonotone(t *testing.T) {
	// A second pass with the same length limit removes nothing.
	g := tipGraph(t)
	defer g.Close()
	v := NewBitSet(g.Capacity())
	RemoveTips(g, 2, v)
	n := g.NumKmers()
	v.Reset()
	removed := RemoveTips(g, 2, v)
	assert.Equal(t, 0, removed)
	assert.Equal(t, n, g.NumKmers())
}

func mustCanon(t *testing.T, s string) string {
	bk, ok := bkmer.FromString(s)
	require.True(t, ok)
	key, _ := bk.Canonical(len(s))
	return key.String(len(s))
}

func TestAutoThreshold(t *testing.T) {
	hist := make([]uint64, CovgHistCap)
	hist[1], hist[2], hist[3], hist[4] = 20, 5, 2, 1
	for c := 7; c < 40; c++ {
		hist[c] = 1
	}
	// First non-decreasing step at c=5 (0 <= 0).
	expect.EQ(t, AutoThreshold(hist), graph.Covg(5))

	// Strictly decreasing histogram: no threshold.
	for i := range hist {
		hist[i] = 0
	}
	hist[1], hist[2], hist[3] = 100, 50, 10
	expect.EQ(t, AutoThreshold(hist), graph.Covg(0))
}

func TestDepthThreshold(t *testing.T) {
	// depth*(R-K+1)/R with R=100, K=31: 20*(70/100) = 14.
	expect.EQ(t, DepthThreshold(20, 100, 31), graph.Covg(14))
	expect.EQ(t, DepthThreshold(20, 10, 31), graph.Covg(0))
}

func TestRemoveSupernodesByCoverage(t *testing.T) {
	// Two disconnected supernodes with mean coverages 1 and 40; the
	// histogram-derived threshold removes the weak one.
	g := graph.New(5, 1, 1000)
	defer g.Close()
	buildSeq(t, g, 0, "ACCTTGGAA", 40)
	buildSeq(t, g, 0, "AACCAACTGTA", 1)

	v := NewBitSet(g.Capacity())
	hist := SupernodeCovgHist(g, -1, v)
	expect.EQ(t, hist[1], uint64(1))
	expect.EQ(t, hist[40], uint64(1))
	thresh := AutoThreshold(hist)
	expect.EQ(t, thresh, graph.Covg(2))

	v.Reset()
	removed := RemoveSupernodes(g, -1, thresh, v)
	assert.Equal(t, 7, removed)
	after := kmerSet(g)
	assert.True(t, after[mustCanon(t, "ACCTT")])
	assert.False(t, after[mustCanon(t, "AACCA")])
}

func TestSupernodeLenHist(t *testing.T) {
	g := graph.New(3, 1, 1000)
	defer g.Close()
	buildSeq(t, g, 0, "AAACT", 1) // one supernode of 3 kmers
	v := NewBitSet(g.Capacity())
	hist := SupernodeLenHist(g, v)
	expect.EQ(t, hist[3], uint64(1))
}

func TestBitSetDirtyReuse(t *testing.T) {
	b := NewBitSet(128)
	b.Set(5)
	b.MarkDirty()
	assert.True(t, b.Test(5))
	b.Reset()
	assert.False(t, b.Test(5))
	assert.False(t, b.Test(0))
	// Resetting a clean set is a no-op.
	b.Set(7)
	b.Reset()
	assert.True(t, b.Test(7))
}
