// Package thread converts long-range read evidence into stored paths: for
// each read it records, at the nodes where future walks could need it, the
// sequence of choices the read made at graph junctions.
package thread

import (
	"strings"

	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
	"github.com/zhaoc1/mccortex/paths"
)

// Threader threads reads for one color. One threader per worker
// goroutine; the path store append is the only shared operation.
type Threader struct {
	g   *graph.Graph
	ps  *paths.Store
	col int

	sc      *bkmer.Scanner
	steps   []step
	juncs   []int // indices into steps that are junctions
	choices []bkmer.Nuc
}

type step struct {
	node   uint64
	orient bkmer.Orientation
	bk     bkmer.Kmer
}

// New returns a threader writing color col.
func New(g *graph.Graph, ps *paths.Store, col int) *Threader {
	return &Threader{g: g, ps: ps, col: col, sc: bkmer.NewScanner(g.KmerSize)}
}

// ThreadRead threads a read in both directions. Kmers missing from the
// graph split the read into independently threaded runs. Returns the
// number of path entries recorded.
func (t *Threader) ThreadRead(seq string) (int, error) {
	added, err := t.threadOne(seq)
	if err != nil {
		return added, err
	}
	more, err := t.threadOne(revcomp(seq))
	return added + more, err
}

func revcomp(seq string) string {
	var sb strings.Builder
	sb.Grow(len(seq))
	for i := len(seq) - 1; i >= 0; i-- {
		if n, ok := bkmer.NucFromChar(seq[i]); ok {
			sb.WriteByte(n.Complement().Char())
		} else {
			sb.WriteByte('N')
		}
	}
	return sb.String()
}

func (t *Threader) threadOne(seq string) (int, error) {
	t.sc.Reset(seq)
	t.steps = t.steps[:0]
	added := 0
	lastPos := -2
	for t.sc.Scan() {
		bk := t.sc.Kmer()
		hkey, orient, ok := t.g.Find(bk)
		if !ok || t.sc.Pos() != lastPos+1 {
			// Gap: thread what we have and start a new run.
			n, err := t.threadRun()
			added += n
			if err != nil {
				return added, err
			}
			t.steps = t.steps[:0]
		}
		if ok {
			t.steps = append(t.steps, step{hkey, orient, bk})
			lastPos = t.sc.Pos()
		}
	}
	n, err := t.threadRun()
	t.steps = t.steps[:0]
	return added + n, err
}

// threadRun records the junction choices of one gap-free run of nodes.
// Paths are attached where walks consume them: the run start (fresh
// pickup), fork nodes (counter evidence for walks merging just past the
// fork) and nodes feeding a merge (counter evidence for walks passing
// through the merge). Attaching at the merge node itself would hand a
// walk arriving on the other branch conflicting same-age evidence, so
// merges are deliberately skipped.
func (t *Threader) threadRun() (int, error) {
	if len(t.steps) < 2 {
		return 0, nil
	}
	t.juncs = t.juncs[:0]
	t.choices = t.choices[:0]
	for i := 0; i+1 < len(t.steps); i++ {
		s := t.steps[i]
		if t.g.UnionEdges(s.node).Outdegree(s.orient) > 1 {
			t.juncs = append(t.juncs, i)
			t.choices = append(t.choices, t.steps[i+1].bk.LastNuc())
		}
	}
	if len(t.juncs) == 0 {
		return 0, nil
	}
	added := 0
	j := 0 // first junction at or after step i
	for i := 0; i < len(t.steps)-1; i++ {
		for j < len(t.juncs) && t.juncs[j] < i {
			j++
		}
		if j == len(t.juncs) {
			break
		}
		s := t.steps[i]
		fork := t.juncs[j] == i
		next := t.steps[i+1]
		preMerge := t.g.UnionEdges(next.node).Indegree(next.orient) > 1
		if i > 0 && !fork && !preMerge {
			continue
		}
		if _, err := t.ps.AppendCol(s.node, s.orient, t.choices[j:], t.col); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
