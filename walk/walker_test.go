package walk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
	"github.com/zhaoc1/mccortex/paths"
)

const testK = 3

func buildSeqs(t *testing.T, ncols int, seqs map[int][]string) *graph.Graph {
	g := graph.New(testK, ncols, 1000)
	for col, list := range seqs {
		for _, seq := range list {
			var prev graph.Next
			havePrev := false
			for i := 0; i+testK <= len(seq); i++ {
				bk, ok := bkmer.FromString(seq[i : i+testK])
				require.True(t, ok)
				hkey, orient, _, err := g.FindOrInsert(bk)
				require.NoError(t, err)
				g.AddCovg(hkey, col, 1)
				cur := graph.Next{Node: hkey, Orient: orient, BKmer: bk}
				if havePrev {
					g.LinkNodes(col, prev, cur)
				}
				prev, havePrev = cur, true
			}
		}
	}
	return g
}

func mustFind(t *testing.T, g *graph.Graph, s string) (uint64, bkmer.Orientation) {
	bk, ok := bkmer.FromString(s)
	require.True(t, ok)
	hkey, orient, found := g.Find(bk)
	require.True(t, found, "kmer %s not in graph", s)
	return hkey, orient
}

func appendPath(t *testing.T, g *graph.Graph, ps *paths.Store, col int, anchor, bases string) {
	hkey, orient := mustFind(t, g, anchor)
	nucs := make([]bkmer.Nuc, len(bases))
	for i := range bases {
		n, ok := bkmer.NucFromChar(bases[i])
		require.True(t, ok)
		nucs[i] = n
	}
	_, err := ps.AppendCol(hkey, orient, nucs, col)
	require.NoError(t, err)
}

// forkGraph returns a graph with a fork after AAT (extensions A and C)
// reachable from TAA, plus a second predecessor GAA merging in before the
// fork.
func forkGraph(t *testing.T) *graph.Graph {
	return buildSeqs(t, 1, map[int][]string{
		0: {"TAATA", "TAATC", "GAATC"},
	})
}

func TestChooseNeedsCounterCoverage(t *testing.T) {
	// One committed path proposing A at a two-way fork is not enough on
	// its own: without evidence covering the sibling, there is no choice.
	g := forkGraph(t)
	defer g.Close()
	ps := paths.NewStore(1, 1<<16, g.Capacity())
	appendPath(t, g, ps, 0, "TAA", "AG")

	w := New(g, ps, 0)
	hkey, orient := mustFind(t, g, "TAA")
	w.Init(0, hkey, orient)
	require.True(t, w.Traverse()) // TAA -> AAT, unambiguous
	assert.Equal(t, 1, w.NumCurr())
	assert.Equal(t, 0, w.NumCounter())
	assert.False(t, w.Traverse(), "fork sibling has no evidence")
	w.Finish()
}

func TestChooseWithCounterCoverage(t *testing.T) {
	g := forkGraph(t)
	defer g.Close()
	ps := paths.NewStore(1, 1<<16, g.Capacity())
	appendPath(t, g, ps, 0, "TAA", "AG")
	appendPath(t, g, ps, 0, "GAA", "C")

	w := New(g, ps, 0)
	hkey, orient := mustFind(t, g, "TAA")
	w.Init(0, hkey, orient)
	require.True(t, w.Traverse()) // TAA -> AAT picks up GAA's counter path
	assert.Equal(t, 1, w.NumCounter())
	require.True(t, w.Traverse(), "counter evidence covers the sibling")
	assert.Equal(t, "ATA", w.BKmer.String(testK))
	// Crossing the fork consumed the counter path (it proposed C, the
	// walk took A) and advanced the committed path past its first base.
	assert.Equal(t, 0, w.NumCounter())
	assert.Equal(t, 1, w.NumCurr())
	w.Finish()
}

func TestChooseDeterministic(t *testing.T) {
	// Choose is a pure function of walker state.
	g := forkGraph(t)
	defer g.Close()
	ps := paths.NewStore(1, 1<<16, g.Capacity())
	appendPath(t, g, ps, 0, "TAA", "AG")
	appendPath(t, g, ps, 0, "GAA", "C")

	w := New(g, ps, 0)
	hkey, orient := mustFind(t, g, "TAA")
	w.Init(0, hkey, orient)
	require.True(t, w.Traverse())

	var next [4]graph.Next
	nibble := g.UnionEdges(w.Node).WithOrientation(w.Orient)
	n := g.NextNodes(w.BKmer, nibble, &next)
	require.Equal(t, 2, n)
	first := w.Choose(next[:n])
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, w.Choose(next[:n]))
	}
	require.True(t, first >= 0)
	assert.Equal(t, bkmer.NucA, next[first].Nuc)
	w.Finish()
}

func TestWalkerSingleExtensionNeedsNoPaths(t *testing.T) {
	g := buildSeqs(t, 1, map[int][]string{0: {"TAATA"}})
	defer g.Close()
	ps := paths.NewStore(1, 1<<16, g.Capacity())

	w := New(g, ps, 0)
	hkey, orient := mustFind(t, g, "TAA")
	w.Init(0, hkey, orient)
	got := "TAA"
	for w.Traverse() {
		got += string(w.BKmer.LastNuc().Char())
	}
	assert.Equal(t, "TAATA", got)
	w.Finish()
}

func TestWalkerColorRestriction(t *testing.T) {
	// The fork sibling exists only in color 1; walking color 0 sees a
	// single extension and needs no path evidence.
	g := buildSeqs(t, 2, map[int][]string{
		0: {"TAATA"},
		1: {"TAATC"},
	})
	defer g.Close()
	ps := paths.NewStore(2, 1<<16, g.Capacity())

	w := New(g, ps, 0)
	hkey, orient := mustFind(t, g, "TAA")
	w.Init(0, hkey, orient)
	require.True(t, w.Traverse())
	require.True(t, w.Traverse())
	assert.Equal(t, "ATA", w.BKmer.String(testK))
	w.Finish()
}

func TestFinishRecyclesPaths(t *testing.T) {
	g := forkGraph(t)
	defer g.Close()
	ps := paths.NewStore(1, 1<<16, g.Capacity())
	appendPath(t, g, ps, 0, "TAA", "AG")

	w := New(g, ps, 0)
	for i := 0; i < 100; i++ {
		hkey, orient := mustFind(t, g, "TAA")
		w.Init(0, hkey, orient)
		for w.Traverse() {
		}
		w.Finish()
	}
	assert.Equal(t, 0, w.NumCurr())
	assert.Equal(t, 0, w.NumCounter())
	assert.Equal(t, len(w.pool), len(w.unused))
}
