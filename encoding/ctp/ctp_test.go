package ctp

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
	"github.com/zhaoc1/mccortex/paths"
)

func testGraph(t *testing.T) *graph.Graph {
	g := graph.New(5, 2, 1000)
	for _, seq := range []string{"ACCTTGGAA", "AACCAACTGTA"} {
		for i := 0; i+5 <= len(seq); i++ {
			bk, ok := bkmer.FromString(seq[i : i+5])
			require.True(t, ok)
			hkey, _, _, err := g.FindOrInsert(bk)
			require.NoError(t, err)
			g.AddCovg(hkey, 0, 1)
		}
	}
	return g
}

func storeDump(t *testing.T, g *graph.Graph, ps *paths.Store) map[string][]string {
	out := map[string][]string{}
	ps.ForEachHead(func(hkey, head uint64) {
		var entries []string
		for off := head; off != paths.NullOffset; off = ps.Prev(off) {
			n, orient := ps.LenOrient(off)
			bases := make([]bkmer.Nuc, n)
			ps.Fetch(off, bases)
			s := orient.String() + ":"
			for _, b := range bases {
				s += string(b.Char())
			}
			s += ":"
			for col := 0; col < ps.NumCols(); col++ {
				if ps.HasCol(off, col) {
					s += "x"
				} else {
					s += "."
				}
			}
			entries = append(entries, s)
		}
		out[g.BKmer(hkey).String(g.KmerSize)] = entries
	})
	return out
}

func TestPathFileRoundTrip(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	g := testGraph(t)
	defer g.Close()
	ps := paths.NewStore(2, 1<<16, g.Capacity())

	add := func(anchor string, orient bkmer.Orientation, bases []bkmer.Nuc, col int) {
		bk, _ := bkmer.FromString(anchor)
		hkey, _, ok := g.Find(bk)
		require.True(t, ok)
		_, err := ps.AppendCol(hkey, orient, bases, col)
		require.NoError(t, err)
	}
	add("ACCTT", bkmer.Forward, []bkmer.Nuc{0, 2, 3}, 0)
	add("ACCTT", bkmer.Forward, []bkmer.Nuc{0, 2, 3}, 1) // merges colors
	add("ACCTT", bkmer.Reverse, []bkmer.Nuc{1}, 0)
	add("AACCA", bkmer.Forward, []bkmer.Nuc{3, 3}, 1)

	path := filepath.Join(tempDir, "p.ctp")
	require.NoError(t, WritePathsFile(path, g, ps))

	hdr, err := Probe(ctx, path)
	require.NoError(t, err)
	expect.EQ(t, hdr.NumPaths, ps.NumPaths())
	expect.EQ(t, hdr.NumPathBytes, ps.NumBytes())
	expect.EQ(t, hdr.NumKmersWithPaths, uint64(2))
	expect.EQ(t, hdr.NumCols, uint32(2))

	ps2 := paths.NewStore(2, 1<<16, g.Capacity())
	require.NoError(t, ReadPathsFile(ctx, path, g, ps2))
	expect.EQ(t, storeDump(t, g, ps2), storeDump(t, g, ps))
	expect.EQ(t, ps2.NumPaths(), ps.NumPaths())
}

func TestReadIntoNonEmptyStoreMerges(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	g := testGraph(t)
	defer g.Close()
	ps := paths.NewStore(2, 1<<16, g.Capacity())
	bk, _ := bkmer.FromString("ACCTT")
	hkey, _, ok := g.Find(bk)
	require.True(t, ok)
	_, err := ps.AppendCol(hkey, bkmer.Forward, []bkmer.Nuc{0, 2, 3}, 0)
	require.NoError(t, err)

	path := filepath.Join(tempDir, "p.ctp")
	require.NoError(t, WritePathsFile(path, g, ps))

	// Loading the same file twice into one store leaves a single entry
	// per distinct path.
	ps2 := paths.NewStore(2, 1<<18, g.Capacity())
	require.NoError(t, ReadPathsFile(ctx, path, g, ps2))
	require.NoError(t, ReadPathsFile(ctx, path, g, ps2))
	expect.EQ(t, ps2.NumPaths(), uint64(1))
}
