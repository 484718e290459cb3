package paths

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/zhaoc1/mccortex/bkmer"
)

// NullOffset terminates a node's path chain.
const NullOffset = ^uint64(0)

// ErrArenaFull is returned when an append outruns the arena budget. The
// arena is sized up front; this is fatal for the operation.
var ErrArenaFull = errors.New("path arena exhausted; increase --memory")

// Store is the path arena. Entries are append-only and chained per node:
//
//	prev u64 | colors ceil(C/8) bytes | lenorient u32 | packed bases
//
// Offsets are byte positions in the arena and never move once issued. The
// bump pointer advances with fetch-add; an entry's bytes are fully written
// before the node head is published, so readers following published
// offsets always see complete entries.
type Store struct {
	ncols    int
	colBytes int
	data     []byte
	end      uint64
	heads    []uint64 // per hkey; NullOffset when the node has no paths

	numPaths       uint64
	kmersWithPaths uint64

	locks [1024]sync.Mutex
}

// NewStore allocates an arena of arenaBytes for a graph of the given slot
// capacity and color count.
func NewStore(ncols int, arenaBytes uint64, capacity uint64) *Store {
	s := &Store{
		ncols:    ncols,
		colBytes: (ncols + 7) / 8,
		data:     make([]byte, arenaBytes),
		heads:    make([]uint64, capacity+1),
	}
	for i := range s.heads {
		s.heads[i] = NullOffset
	}
	return s
}

// NumCols returns the color count the store was sized for.
func (s *Store) NumCols() int { return s.ncols }

// NumPaths returns the number of distinct entries appended.
func (s *Store) NumPaths() uint64 { return atomic.LoadUint64(&s.numPaths) }

// NumBytes returns the bytes of arena in use.
func (s *Store) NumBytes() uint64 { return atomic.LoadUint64(&s.end) }

// NumKmersWithPaths returns how many nodes have a non-empty chain.
func (s *Store) NumKmersWithPaths() uint64 { return atomic.LoadUint64(&s.kmersWithPaths) }

// Head returns the newest entry offset for hkey, or NullOffset.
func (s *Store) Head(hkey uint64) uint64 {
	return atomic.LoadUint64(&s.heads[hkey])
}

// Prev returns the next-older entry in the chain containing off.
func (s *Store) Prev(off uint64) uint64 {
	return binary.LittleEndian.Uint64(s.data[off:])
}

// Cols returns the color bitmap bytes of the entry at off.
func (s *Store) Cols(off uint64) []byte {
	p := off + 8
	return s.data[p : p+uint64(s.colBytes)]
}

// HasCol reports whether color col witnessed the entry at off.
func (s *Store) HasCol(off uint64, col int) bool {
	return s.Cols(off)[col>>3]&(1<<uint(col&7)) != 0
}

// LenOrient returns the base count and anchor orientation of the entry.
func (s *Store) LenOrient(off uint64) (uint32, bkmer.Orientation) {
	w := binary.LittleEndian.Uint32(s.data[off+8+uint64(s.colBytes):])
	return SplitLenOrient(w)
}

// PackedBases returns the packed base bytes of the entry at off.
func (s *Store) PackedBases(off uint64) []byte {
	n, _ := s.LenOrient(off)
	p := off + 8 + uint64(s.colBytes) + 4
	return s.data[p : p+uint64(PackedLen(int(n)))]
}

// Fetch unpacks the entry's bases into dst, which must have room for the
// entry length.
func (s *Store) Fetch(off uint64, dst []bkmer.Nuc) {
	n, _ := s.LenOrient(off)
	UnpackBases(s.PackedBases(off), dst, int(n))
}

// Append records a path at hkey, or merges cols into an existing entry
// with the same orientation, length and bases. It returns the entry
// offset. Safe for concurrent use; appends to one node serialize on a
// striped lock, so each chain is a single linked list in publication
// order.
func (s *Store) Append(hkey uint64, orient bkmer.Orientation, bases []bkmer.Nuc, cols []byte) (uint64, error) {
	packed := make([]byte, PackedLen(len(bases)))
	PackBases(packed, bases)
	want := CombineLenOrient(uint32(len(bases)), orient)

	mu := &s.locks[hkey&1023]
	mu.Lock()
	defer mu.Unlock()

	head := atomic.LoadUint64(&s.heads[hkey])
	for off := head; off != NullOffset; off = s.Prev(off) {
		w := binary.LittleEndian.Uint32(s.data[off+8+uint64(s.colBytes):])
		if w == want && bytes.Equal(s.PackedBases(off), packed) {
			dst := s.Cols(off)
			for i, b := range cols {
				dst[i] |= b
			}
			return off, nil
		}
	}

	size := uint64(8 + s.colBytes + 4 + len(packed))
	off := atomic.AddUint64(&s.end, size) - size
	if off+size > uint64(len(s.data)) {
		return NullOffset, ErrArenaFull
	}
	binary.LittleEndian.PutUint64(s.data[off:], head)
	copy(s.data[off+8:], cols)
	binary.LittleEndian.PutUint32(s.data[off+8+uint64(s.colBytes):], want)
	copy(s.data[off+8+uint64(s.colBytes)+4:], packed)

	atomic.StoreUint64(&s.heads[hkey], off)
	atomic.AddUint64(&s.numPaths, 1)
	if head == NullOffset {
		atomic.AddUint64(&s.kmersWithPaths, 1)
	}
	return off, nil
}

// AppendCol is Append for a single witnessing color.
func (s *Store) AppendCol(hkey uint64, orient bkmer.Orientation, bases []bkmer.Nuc, col int) (uint64, error) {
	cols := make([]byte, s.colBytes)
	cols[col>>3] = 1 << uint(col&7)
	return s.Append(hkey, orient, bases, cols)
}

// ForEachHead calls fn for every node with a non-empty chain, in hkey
// order. Read phases only.
func (s *Store) ForEachHead(fn func(hkey, head uint64)) {
	for hkey, head := range s.heads {
		if head != NullOffset {
			fn(uint64(hkey), head)
		}
	}
}

// Arena exposes the in-use arena bytes for serialization.
func (s *Store) Arena() []byte { return s.data[:s.NumBytes()] }
