package graph

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/zhaoc1/mccortex/bkmer"
	"golang.org/x/sys/unix"
)

// The table is an open-addressed set of canonical kmers arranged in buckets
// of 32 slots. A kmer hashes to a bucket; if the bucket is full the key is
// rehashed with a perturbed seed, up to maxRehashes buckets. Lookups scan
// whole buckets, so emptying a slot during exclusive-mode cleaning never
// breaks a probe chain; the per-bucket fill counter (slots ever claimed,
// monotone) tells a lookup whether an absent key could live in a later
// rehash bucket.
//
// Slot 0 is reserved: valid hkeys are 1..capacity, which leaves hkey 0 free
// as a nil sentinel and bit 0 of capacity-sized bitsets free as a dirty
// flag.
const (
	bucketSize  = 32
	maxRehashes = 16
	maxLoad     = 0.75
)

// KeyNil is the invalid hkey.
const KeyNil uint64 = 0

// Slot word-0 sentinels. A canonical kmer of size <= 63 always leaves the
// top two bits of its high word clear, so these two patterns never collide
// with stored keys.
const (
	slotEmpty uint64 = ^uint64(0)
	slotBusy  uint64 = ^uint64(0) - 1
)

// ErrCapacityExhausted is returned when an insert runs out of rehash
// buckets. The table is sized up front from the memory budget, so this is
// fatal for the operation; re-run with more memory.
var ErrCapacityExhausted = errors.New("kmer table capacity exhausted; increase --memory or --nkmers")

// Table is the kmer hash set. It has two access modes: concurrent-insert
// (FindOrInsert from many goroutines, no removals) and exclusive-mutate
// (Remove, single goroutine). Mixing the two is a programming error.
type Table struct {
	nbuckets uint64
	mask     uint64
	capacity uint64
	raw      []byte   // anonymous mapping backing words
	words    []uint64 // 2 words per slot, slot 0 reserved
	fill     []uint32 // per bucket: slots ever claimed, never decremented
	numKmers int64
}

// NewTable creates a table with room for at least nkmers keys at a load
// factor of at most 0.75. The slot array is allocated with an anonymous
// hugepage-advised mapping to keep TLB pressure down on multi-gigabyte
// tables.
func NewTable(nkmers int64) *Table {
	minBuckets := uint64(float64(nkmers)/(maxLoad*bucketSize)) + 1
	nbuckets := uint64(1)
	for nbuckets < minBuckets {
		nbuckets *= 2
	}
	capacity := nbuckets * bucketSize

	nbytes := int((capacity + 1) * 2 * 8)
	raw, err := unix.Mmap(-1, 0, nbytes, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		log.Panicf("mmap %d bytes for kmer table: %v", nbytes, err)
	}
	if err := unix.Madvise(raw, unix.MADV_HUGEPAGE); err != nil {
		log.Error.Printf("madvise(MADV_HUGEPAGE): %v", err)
	}
	words := unsafe.Slice((*uint64)(unsafe.Pointer(&raw[0])), (capacity+1)*2)
	for i := uint64(0); i <= capacity; i++ {
		words[2*i] = slotEmpty
	}
	return &Table{
		nbuckets: nbuckets,
		mask:     nbuckets - 1,
		capacity: capacity,
		raw:      raw,
		words:    words,
		fill:     make([]uint32, nbuckets),
	}
}

// Close releases the slot mapping. The table is unusable afterwards.
func (t *Table) Close() error {
	t.words = nil
	raw := t.raw
	t.raw = nil
	return unix.Munmap(raw)
}

// Capacity returns the number of usable slots; hkeys are 1..Capacity.
func (t *Table) Capacity() uint64 { return t.capacity }

// NumKmers returns the live key count.
func (t *Table) NumKmers() int64 { return atomic.LoadInt64(&t.numKmers) }

func (t *Table) bucketBase(bkey bkmer.Kmer, attempt uint32) uint64 {
	return 1 + (bkey.Hash64(attempt)&t.mask)*bucketSize
}

// loadSlot reads slot word 0, spinning past an in-flight publish.
func (t *Table) loadSlot(hkey uint64) uint64 {
	for {
		w0 := atomic.LoadUint64(&t.words[2*hkey])
		if w0 != slotBusy {
			return w0
		}
		runtime.Gosched()
	}
}

// KmerAt returns the canonical kmer stored at hkey.
func (t *Table) KmerAt(hkey uint64) bkmer.Kmer {
	return bkmer.Kmer{t.words[2*hkey], t.words[2*hkey+1]}
}

// Occupied reports whether hkey holds a live key.
func (t *Table) Occupied(hkey uint64) bool {
	return hkey != KeyNil && t.words[2*hkey] != slotEmpty
}

// Find returns the slot holding bkey, or KeyNil.
func (t *Table) Find(bkey bkmer.Kmer) uint64 {
	for attempt := uint32(0); attempt < maxRehashes; attempt++ {
		base := t.bucketBase(bkey, attempt)
		bucket := (base - 1) / bucketSize
		for i := uint64(0); i < bucketSize; i++ {
			w0 := t.loadSlot(base + i)
			if w0 == slotEmpty {
				continue
			}
			if w0 == bkey[0] && atomic.LoadUint64(&t.words[2*(base+i)+1]) == bkey[1] {
				return base + i
			}
		}
		if atomic.LoadUint32(&t.fill[bucket]) < bucketSize {
			return KeyNil
		}
	}
	return KeyNil
}

// FindOrInsert returns the slot for bkey, inserting it if absent. Inserting
// an existing key returns the prior slot with inserted == false. Safe for
// concurrent use in concurrent-insert mode.
func (t *Table) FindOrInsert(bkey bkmer.Kmer) (hkey uint64, inserted bool, err error) {
	for attempt := uint32(0); attempt < maxRehashes; attempt++ {
		base := t.bucketBase(bkey, attempt)
		bucket := (base - 1) / bucketSize
	scan:
		firstEmpty := KeyNil
		for i := uint64(0); i < bucketSize; i++ {
			slot := base + i
			w0 := t.loadSlot(slot)
			if w0 == slotEmpty {
				if firstEmpty == KeyNil {
					firstEmpty = slot
				}
				continue
			}
			if w0 == bkey[0] && atomic.LoadUint64(&t.words[2*slot+1]) == bkey[1] {
				return slot, false, nil
			}
		}
		if firstEmpty == KeyNil {
			continue // bucket full, rehash
		}
		if !atomic.CompareAndSwapUint64(&t.words[2*firstEmpty], slotEmpty, slotBusy) {
			goto scan // lost the claim race, rescan the bucket
		}
		atomic.StoreUint64(&t.words[2*firstEmpty+1], bkey[1])
		atomic.StoreUint64(&t.words[2*firstEmpty], bkey[0])
		atomicMaxUint32(&t.fill[bucket], uint32(firstEmpty-base)+1)
		atomic.AddInt64(&t.numKmers, 1)
		return firstEmpty, true, nil
	}
	return KeyNil, false, ErrCapacityExhausted
}

// Remove empties the slot. Exclusive-mutate mode only: no concurrent
// operations of any kind. The bucket fill count is left alone so lookups of
// other keys keep probing correctly.
func (t *Table) Remove(hkey uint64) {
	t.words[2*hkey] = slotEmpty
	t.words[2*hkey+1] = 0
	atomic.AddInt64(&t.numKmers, -1)
}

// ForEach calls fn for every live slot in hkey order.
func (t *Table) ForEach(fn func(hkey uint64)) {
	for hkey := uint64(1); hkey <= t.capacity; hkey++ {
		if t.words[2*hkey] != slotEmpty {
			fn(hkey)
		}
	}
}

func atomicMaxUint32(p *uint32, v uint32) {
	for {
		cur := atomic.LoadUint32(p)
		if v <= cur || atomic.CompareAndSwapUint32(p, cur, v) {
			return
		}
	}
}
