package graph

// ErrorCleaning records which cleaning passes have been applied to a color,
// as carried in graph file headers.
type ErrorCleaning struct {
	CleanedTips        bool
	CleanedSupernodes  bool
	SupernodeThreshold uint32
	NodeThreshold      uint32
	IsCleanedAgainst   bool
	CleanedAgainstName string
}

// GraphInfo is the per-color provenance block of a graph file: sequencing
// stats for the sample plus its cleaning history.
type GraphInfo struct {
	MeanReadLength uint32
	TotalSequence  uint64
	SampleName     string
	ErrorRate      float64
	Cleaning       ErrorCleaning

	numReads uint64 // loads in progress only; not serialized
}

// Merge folds o into gi: read lengths are averaged weighted by total
// sequence, totals sum, and cleaning survives only if both sides were
// cleaned (keeping the smaller threshold).
func (gi *GraphInfo) Merge(o GraphInfo) {
	if *gi == (GraphInfo{}) {
		*gi = o
		return
	}
	total := gi.TotalSequence + o.TotalSequence
	if total > 0 {
		mrl := (uint64(gi.MeanReadLength)*gi.TotalSequence +
			uint64(o.MeanReadLength)*o.TotalSequence) / total
		gi.MeanReadLength = uint32(mrl)
	}
	gi.TotalSequence = total
	if gi.SampleName == "" {
		gi.SampleName = o.SampleName
	}
	if o.ErrorRate > gi.ErrorRate {
		gi.ErrorRate = o.ErrorRate
	}
	gi.Cleaning.CleanedTips = gi.Cleaning.CleanedTips && o.Cleaning.CleanedTips
	both := gi.Cleaning.CleanedSupernodes && o.Cleaning.CleanedSupernodes
	if both {
		if o.Cleaning.SupernodeThreshold < gi.Cleaning.SupernodeThreshold {
			gi.Cleaning.SupernodeThreshold = o.Cleaning.SupernodeThreshold
		}
	} else {
		gi.Cleaning.SupernodeThreshold = 0
	}
	gi.Cleaning.CleanedSupernodes = both
}

// AddReadStats accumulates one read into the running mean read length and
// total-bases counters for a color.
func (gi *GraphInfo) AddReadStats(readLen int) {
	gi.numReads++
	gi.TotalSequence += uint64(readLen)
	gi.MeanReadLength = uint32(gi.TotalSequence / gi.numReads)
}
