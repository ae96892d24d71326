package session

import "sync/atomic"

// sequencer hands out monotonically increasing request numbers.
type sequencer struct{ n atomic.Uint64 }

func (s *sequencer) next() uint64 { return s.n.Add(1) }

// ticket identifies a dispatched request and the session generation it was
// dispatched against.
type ticket struct {
	seq uint64
	gen uint64
}
