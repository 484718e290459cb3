// Package walk implements the path-guided graph walker: a single-threaded
// state machine that traverses the de Bruijn graph in one color, consuming
// stored path evidence to pick a unique extension at forks.
package walk

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"github.com/zhaoc1/mccortex/graph"
	"github.com/zhaoc1/mccortex/paths"
)

// followPath is one piece of path evidence. pos advances each time the
// walk crosses a fork consistent with bases[pos].
type followPath struct {
	bases []bkmer.Nuc
	pos   uint32
	n     uint32
}

// Walker holds the anchor position and four partitions of path evidence:
// curr (committed to the walk), nw (picked up at the anchor, not yet past
// a fork), counter (contradicting evidence from fork siblings) and a free
// pool. Partitions are index lists into one shared arena, so pool growth
// never invalidates a held path.
//
// A walker is never shared between goroutines; traversal only reads the
// graph and path store.
type Walker struct {
	g     *graph.Graph
	store *paths.Store
	color int

	Node   uint64
	BKmer  bkmer.Kmer // oriented in the direction of travel
	Orient bkmer.Orientation

	pool    []followPath
	curr    []int32
	nw      []int32
	counter []int32
	unused  []int32
}

// New creates a walker over g and its path store for one color.
func New(g *graph.Graph, store *paths.Store, color int) *Walker {
	w := &Walker{g: g, store: store, color: color}
	w.grow(4)
	return w
}

func (w *Walker) grow(n int) {
	for len(w.pool) < n {
		w.unused = append(w.unused, int32(len(w.pool)))
		w.pool = append(w.pool, followPath{})
	}
}

func (w *Walker) take() int32 {
	if len(w.unused) == 0 {
		w.grow(2 * len(w.pool))
	}
	idx := w.unused[len(w.unused)-1]
	w.unused = w.unused[:len(w.unused)-1]
	return idx
}

func (w *Walker) release(idx int32) { w.unused = append(w.unused, idx) }

// NumCurr returns the committed evidence count.
func (w *Walker) NumCurr() int { return len(w.curr) }

// NumCounter returns the contradicting evidence count.
func (w *Walker) NumCounter() int { return len(w.counter) }

// Init anchors the walker at (node, orient) in color and picks up the
// node's paths. Any prior walk must have been ended with Finish.
func (w *Walker) Init(color int, node uint64, orient bkmer.Orientation) {
	if len(w.curr) != 0 || len(w.nw) != 0 || len(w.counter) != 0 {
		log.Panicf("walker re-initialized mid-walk")
	}
	w.color = color
	w.Node = node
	w.Orient = orient
	w.BKmer = w.g.OrientedBKmer(node, orient)
	w.pickup(node, orient, false)
}

// Finish returns all held paths to the pool, readying the walker for the
// next Init.
func (w *Walker) Finish() {
	for _, idx := range w.curr {
		w.release(idx)
	}
	for _, idx := range w.nw {
		w.release(idx)
	}
	for _, idx := range w.counter {
		w.release(idx)
	}
	w.curr = w.curr[:0]
	w.nw = w.nw[:0]
	w.counter = w.counter[:0]
}

// pickup walks the node's path chain and claims every entry witnessed by
// the walker's color with a matching anchor orientation. Claimed paths go
// to counter or nw. Returns the number claimed.
func (w *Walker) pickup(node uint64, orient bkmer.Orientation, counter bool) int {
	taken := 0
	for off := w.store.Head(node); off != paths.NullOffset; off = w.store.Prev(off) {
		n, porient := w.store.LenOrient(off)
		if porient != orient || !w.store.HasCol(off, w.color) {
			continue
		}
		idx := w.take()
		p := &w.pool[idx]
		if uint32(cap(p.bases)) < n {
			p.bases = make([]bkmer.Nuc, n)
		}
		p.bases = p.bases[:n]
		w.store.Fetch(off, p.bases)
		p.pos, p.n = 0, n
		if counter {
			w.counter = append(w.counter, idx)
		} else {
			w.nw = append(w.nw, idx)
		}
		taken++
	}
	return taken
}

// Choose picks the extension among next that the walk's evidence supports.
// It returns -1 when the evidence does not determine a unique, fully
// witnessed choice.
func (w *Walker) Choose(next []graph.Next) int {
	if len(next) == 0 {
		return -1
	}
	if len(next) == 1 {
		return 0
	}

	// Restrict to extensions present in the walker's color.
	var indices [4]int
	m := 0
	for i := range next {
		if w.g.HasCol(next[i].Node, w.color) {
			indices[m] = i
			m++
		}
	}
	if m == 1 {
		return indices[0]
	}
	if m == 0 || len(w.curr) == 0 {
		return -1
	}

	// The oldest committed paths must agree on the next base.
	oldest := &w.pool[w.curr[0]]
	greatestAge := oldest.pos
	greatestNuc := oldest.bases[oldest.pos]
	for _, idx := range w.curr[1:] {
		p := &w.pool[idx]
		if p.pos < greatestAge {
			break
		}
		if p.bases[p.pos] != greatestNuc {
			return -1
		}
	}

	// Every sibling extension needs a witnessing path, or the choice is
	// unfounded.
	var c [4]bool
	seen := 0
	mark := func(n bkmer.Nuc) {
		if !c[n] {
			c[n] = true
			seen++
		}
	}
	for _, idx := range w.curr {
		if seen >= m {
			break
		}
		p := &w.pool[idx]
		mark(p.bases[p.pos])
	}
	for _, idx := range w.counter {
		if seen >= m {
			break
		}
		p := &w.pool[idx]
		mark(p.bases[p.pos])
	}
	if seen < m {
		return -1
	}
	if seen > m {
		log.Panicf("counter path corruption at fork:\n%s", w.dumpState(next[:]))
	}

	for i := 0; i < m; i++ {
		if next[indices[i]].Nuc == greatestNuc {
			return indices[i]
		}
	}
	log.Panicf("path corruption: no extension matches %c at fork:\n%s",
		greatestNuc.Char(), w.dumpState(next[:]))
	return -1
}

func (w *Walker) dumpState(next []graph.Next) string {
	k := w.g.KmerSize
	var sb strings.Builder
	fmt.Fprintf(&sb, "anchor %s (%s:%s)\n", w.BKmer.String(k),
		w.g.BKmer(w.Node).String(k), w.Orient)
	for i := range next {
		fmt.Fprintf(&sb, "  next %s [%c]\n", next[i].BKmer.String(k), next[i].Nuc.Char())
	}
	dump := func(name string, list []int32) {
		fmt.Fprintf(&sb, "%s:\n", name)
		for _, idx := range list {
			p := &w.pool[idx]
			fmt.Fprintf(&sb, "  %c [%d/%d]\n", p.bases[p.pos].Char(), p.pos, p.n)
		}
	}
	dump("curr_paths", w.curr)
	dump("counter_paths", w.counter)
	return sb.String()
}

// filterForked keeps the paths consistent with crossing a fork on base,
// advancing their position, and releases the rest. in may alias keep's
// backing array.
func (w *Walker) filterForked(keep []int32, in []int32, base bkmer.Nuc) []int32 {
	for _, idx := range in {
		p := &w.pool[idx]
		if p.bases[p.pos] == base && p.pos+1 < p.n {
			p.pos++
			keep = append(keep, idx)
		} else {
			w.release(idx)
		}
	}
	return keep
}

// TraverseForceJump moves the anchor to (node, bk). If the move crossed a
// fork, evidence disagreeing with the taken base (or exhausted by it) is
// dropped. New paths at the landing node are then picked up.
func (w *Walker) TraverseForceJump(node uint64, bk bkmer.Kmer, forked bool) {
	if forked {
		base := bk.LastNuc()
		keep := w.filterForked(w.curr[:0], w.curr, base)
		keep = w.filterForked(keep, w.nw, base)
		w.curr = keep
		w.nw = w.nw[:0]
		w.counter = w.filterForked(w.counter[:0], w.counter, base)
	} else {
		w.curr = append(w.curr, w.nw...)
		w.nw = w.nw[:0]
	}

	w.Node = node
	w.BKmer = bk
	w.Orient = w.g.Orientation(node, bk)
	w.pickup(node, w.Orient, false)
}

// TraverseForce extends the anchor kmer by nuc and jumps.
func (w *Walker) TraverseForce(node uint64, nuc bkmer.Nuc, forked bool) {
	w.TraverseForceJump(node, w.BKmer.ShiftLeftAdd(w.g.KmerSize, nuc), forked)
}

// PickupCounterPaths claims paths from the anchor's other predecessors:
// nodes that merge into the walk here and whose own branching could later
// contradict it. loseNuc is the first base of the kmer the walk just left;
// when exclude is set the predecessor along the walk itself is skipped.
// Predecessor paths get one base consumed when the predecessor truly
// branches; single-base paths carry no remaining constraint and are
// dropped.
func (w *Walker) PickupCounterPaths(exclude bool, loseNuc bkmer.Nuc) {
	var prev [4]graph.Next
	n := w.g.PrevNodes(w.Node, w.Orient, exclude, loseNuc, &prev)
	for i := 0; i < n; i++ {
		start := len(w.counter)
		w.pickup(prev[i].Node, prev[i].Orient, true)
		if w.g.UnionEdges(prev[i].Node).Outdegree(prev[i].Orient) > 1 {
			keep := w.counter[:start]
			for _, idx := range w.counter[start:] {
				p := &w.pool[idx]
				if p.n > 1 {
					p.pos++
					keep = append(keep, idx)
				} else {
					w.release(idx)
				}
			}
			w.counter = keep
		}
	}
}

// Traverse advances the walker one node, resolving forks with path
// evidence. It returns false when the walk cannot continue: a dead end, or
// a fork the evidence does not decide.
func (w *Walker) Traverse() bool {
	var next [4]graph.Next
	nibble := w.g.UnionEdges(w.Node).WithOrientation(w.Orient)
	n := w.g.NextNodes(w.BKmer, nibble, &next)
	idx := w.Choose(next[:n])
	if idx < 0 {
		return false
	}
	lose := w.BKmer.FirstNuc(w.g.KmerSize)
	w.TraverseForce(next[idx].Node, next[idx].Nuc, n > 1)
	w.PickupCounterPaths(true, lose)
	return true
}
