package bkmer

// Scanner iterates the kmers of a read with a rolling update, restarting
// cleanly after ambiguity codes such as 'N'.
type Scanner struct {
	k     int
	seq   string
	si    int
	cur   Kmer
	valid int
}

// NewScanner returns a scanner for kmers of size k.
func NewScanner(k int) *Scanner { return &Scanner{k: k} }

// Reset points the scanner at a new read.
func (s *Scanner) Reset(seq string) {
	s.seq = seq
	s.si = 0
	s.valid = 0
	s.cur = Kmer{}
}

// Scan advances to the next kmer, returning false at the end of the read.
func (s *Scanner) Scan() bool {
	for s.si < len(s.seq) {
		n, ok := NucFromChar(s.seq[s.si])
		s.si++
		if !ok {
			s.valid = 0
			continue
		}
		s.cur = s.cur.ShiftLeftAdd(s.k, n)
		if s.valid++; s.valid >= s.k {
			return true
		}
	}
	return false
}

// Kmer returns the current kmer.
func (s *Scanner) Kmer() Kmer { return s.cur }

// Pos returns the start offset of the current kmer in the read.
func (s *Scanner) Pos() int { return s.si - s.k }
