package indexer

import "sync"

// Progress is a snapshot of the six counters named by §4.6: bytes and
// objects received from the stream, plus objects/deltas indexed so far
// during resolution, against the totals announced by the pack header.
type Progress struct {
	ReceivedBytes   uint64
	ReceivedObjects uint64
	IndexedObjects  uint64
	IndexedDeltas   uint64
	TotalObjects    uint64
	TotalDeltas     uint64
}

// ProgressFunc is the cancellation channel described in §5/§6: a non-zero
// return aborts the operation at the next boundary.
type ProgressFunc func(Progress) int

// progressReporter collates the counters under a mutex (the caller may be
// multi-threaded even though this indexer itself is not) and checks the
// observer's return value.
type progressReporter struct {
	mu  sync.Mutex
	cur Progress
	fn  ProgressFunc
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn}
}

func (r *progressReporter) addReceived(bytes uint64, objects uint64) {
	r.mu.Lock()
	r.cur.ReceivedBytes += bytes
	r.cur.ReceivedObjects += objects
	r.mu.Unlock()
}

func (r *progressReporter) setTotals(objects, deltas uint64) {
	r.mu.Lock()
	r.cur.TotalObjects = objects
	r.cur.TotalDeltas = deltas
	r.mu.Unlock()
}

func (r *progressReporter) addIndexed(objects, deltas uint64) {
	r.mu.Lock()
	r.cur.IndexedObjects += objects
	r.cur.IndexedDeltas += deltas
	r.mu.Unlock()
}

// report takes a copy of the current counters and, if an observer is
// registered, delivers it and reports whether the observer requested abort.
func (r *progressReporter) report() (aborted bool) {
	if r.fn == nil {
		return false
	}
	r.mu.Lock()
	snap := r.cur
	r.mu.Unlock()
	return r.fn(snap) != 0
}
