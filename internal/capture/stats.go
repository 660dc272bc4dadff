package capture

import (
	"sync/atomic"
	"time"
)

// Stats counts what the acquisition loop has done. Safe for concurrent use.
type Stats struct {
	ticks     atomic.Uint64
	processed atomic.Uint64
	empty     atomic.Uint64
	failed    atomic.Uint64
	faces     atomic.Uint64
	smiles    atomic.Uint64
	lastTick  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Ticks        uint64
	Processed    uint64
	EmptyReads   uint64
	Failures     uint64
	Faces        uint64
	Smiling      uint64
	LastDuration time.Duration
}

func (s *Stats) recordTick(d time.Duration) {
	s.ticks.Add(1)
	s.lastTick.Store(int64(d))
}

func (s *Stats) recordFrame(faces, smiling int) {
	s.processed.Add(1)
	s.faces.Add(uint64(faces))
	s.smiles.Add(uint64(smiling))
}

func (s *Stats) recordEmpty() {
	s.empty.Add(1)
}

func (s *Stats) recordFailure() {
	s.failed.Add(1)
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Ticks:        s.ticks.Load(),
		Processed:    s.processed.Load(),
		EmptyReads:   s.empty.Load(),
		Failures:     s.failed.Load(),
		Faces:        s.faces.Load(),
		Smiling:      s.smiles.Load(),
		LastDuration: time.Duration(s.lastTick.Load()),
	}
}
