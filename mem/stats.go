package mem

// Stats accounts pool and chunk usage, with peaks.
type Stats struct {
	PoolsCount          int
	PeakPoolsCount      int
	AllocatedChunks     int
	PeakAllocatedChunks int
	FreeChunks          int
}

func (s *Stats) init() {
	*s = Stats{}
}

func (s *Stats) allocPool(freeChunks int) {
	s.PoolsCount++
	s.FreeChunks = freeChunks
	if s.PoolsCount > s.PeakPoolsCount {
		s.PeakPoolsCount = s.PoolsCount
	}
}

func (s *Stats) freePool(freeChunks int) {
	s.PoolsCount--
	s.FreeChunks = freeChunks
}

func (s *Stats) allocChunk() {
	s.AllocatedChunks++
	s.FreeChunks--
	if s.AllocatedChunks > s.PeakAllocatedChunks {
		s.PeakAllocatedChunks = s.AllocatedChunks
	}
}

func (s *Stats) freeChunk() {
	s.AllocatedChunks--
	s.FreeChunks++
}

// GetStats returns a copy of the current usage statistics.
func (p *Pools) GetStats() Stats {
	return p.stats
}

// ResetPeaks resets the peak values to the current levels.
func (p *Pools) ResetPeaks() {
	p.stats.PeakPoolsCount = p.stats.PoolsCount
	p.stats.PeakAllocatedChunks = p.stats.AllocatedChunks
}
