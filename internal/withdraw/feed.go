package withdraw

import "sync"

// Feed buffers the newest snapshot for a consumer on another goroutine.
// Offer never blocks, so it can be passed to Subscribe directly. Older
// snapshots are overwritten.
type Feed struct {
	ready chan struct{}
	done  chan struct{}
	snap  Snapshot
	once  sync.Once
	mu    sync.Mutex
	has   bool
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Offer stores s unless a newer snapshot is already waiting.
func (f *Feed) Offer(s Snapshot) {
	f.mu.Lock()
	if !f.has || s.Version > f.snap.Version {
		f.snap = s
		f.has = true
	}
	f.mu.Unlock()

	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// Ready fires when a snapshot may be waiting.
func (f *Feed) Ready() <-chan struct{} {
	return f.ready
}

// Done is closed by Close.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Take returns the waiting snapshot, if any, and empties the feed.
func (f *Feed) Take() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.has {
		return Snapshot{}, false
	}
	s := f.snap
	f.has = false
	return s, true
}

// Close releases consumers blocked on Done. It is safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}
