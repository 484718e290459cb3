package graph

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaoc1/mccortex/bkmer"
)

func randKmer(r *rand.Rand, k int) bkmer.Kmer {
	var sb []byte
	for i := 0; i < k; i++ {
		sb = append(sb, bkmer.Nuc(r.Intn(4)).Char())
	}
	bk, _ := bkmer.FromString(string(sb))
	key, _ := bk.Canonical(k)
	return key
}

func TestInsertIdempotent(t *testing.T) {
	tab := NewTable(1000)
	defer tab.Close()
	bk := randKmer(rand.New(rand.NewSource(1)), 21)
	slot, inserted, err := tab.FindOrInsert(bk)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, KeyNil, slot)
	for i := 0; i < 10; i++ {
		s, ins, err := tab.FindOrInsert(bk)
		require.NoError(t, err)
		expect.EQ(t, s, slot)
		assert.False(t, ins)
	}
	expect.EQ(t, tab.NumKmers(), int64(1))
	expect.EQ(t, tab.Find(bk), slot)
	expect.EQ(t, tab.KmerAt(slot), bk)
}

func TestFindMissing(t *testing.T) {
	tab := NewTable(100)
	defer tab.Close()
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		_, _, err := tab.FindOrInsert(randKmer(r, 31))
		require.NoError(t, err)
	}
	// Kmers from a disjoint stream are almost surely absent.
	miss := 0
	for i := 0; i < 50; i++ {
		if tab.Find(randKmer(r, 31)) == KeyNil {
			miss++
		}
	}
	assert.Equal(t, 50, miss)
}

func TestRemoveKeepsProbing(t *testing.T) {
	tab := NewTable(500)
	defer tab.Close()
	r := rand.New(rand.NewSource(3))
	kmers := make([]bkmer.Kmer, 300)
	slots := make([]uint64, 300)
	for i := range kmers {
		kmers[i] = randKmer(r, 17)
		slot, _, err := tab.FindOrInsert(kmers[i])
		require.NoError(t, err)
		slots[i] = slot
	}
	// Remove every third key; every remaining key must stay findable at
	// its original slot.
	removed := map[int]bool{}
	for i := 0; i < len(kmers); i += 3 {
		tab.Remove(slots[i])
		removed[i] = true
	}
	for i := range kmers {
		if removed[i] {
			expect.EQ(t, tab.Find(kmers[i]), KeyNil)
		} else {
			expect.EQ(t, tab.Find(kmers[i]), slots[i])
		}
	}
}

func TestConcurrentInsertMatchesSerial(t *testing.T) {
	// The same multiset inserted by 8 goroutines and by one goroutine
	// must produce the same kmer count.
	const nKmers = 100000
	const nThreads = 8
	r := rand.New(rand.NewSource(4))
	kmers := make([]bkmer.Kmer, nKmers)
	for i := range kmers {
		kmers[i] = randKmer(r, 31)
	}
	// Duplicate a slice of them to exercise the insert-exists path.
	kmers = append(kmers, kmers[:nKmers/4]...)

	serial := NewTable(nKmers * 2)
	defer serial.Close()
	for _, bk := range kmers {
		_, _, err := serial.FindOrInsert(bk)
		require.NoError(t, err)
	}

	conc := NewTable(nKmers * 2)
	defer conc.Close()
	var wg sync.WaitGroup
	for th := 0; th < nThreads; th++ {
		wg.Add(1)
		go func(th int) {
			defer wg.Done()
			for i := th; i < len(kmers); i += nThreads {
				if _, _, err := conc.FindOrInsert(kmers[i]); err != nil {
					t.Error(err)
					return
				}
			}
		}(th)
	}
	wg.Wait()
	expect.EQ(t, conc.NumKmers(), serial.NumKmers())

	// And every kmer is findable in both.
	for _, bk := range kmers[:1000] {
		assert.NotEqual(t, KeyNil, conc.Find(bk))
	}
}
