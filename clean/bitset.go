package clean

// BitSet is a visited set indexed by hkey. Because hkey 0 is never a live
// node, bit 0 doubles as a dirty flag: passes that share one allocation
// mark it after use and Reset zeroes the words only when a prior pass
// actually touched them.
type BitSet []uint64

// NewBitSet returns a set covering hkeys 0..n.
func NewBitSet(n uint64) BitSet { return make(BitSet, n/64+1) }

// Set marks hkey i.
func (b BitSet) Set(i uint64) { b[i/64] |= 1 << (i % 64) }

// Test reports whether hkey i is marked.
func (b BitSet) Test(i uint64) bool { return b[i/64]&(1<<(i%64)) != 0 }

// MarkDirty records that a pass has written to the set.
func (b BitSet) MarkDirty() { b.Set(0) }

// Reset zeroes the set if a prior pass dirtied it.
func (b BitSet) Reset() {
	if !b.Test(0) {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
