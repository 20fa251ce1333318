package draftstore

import (
	"sync"
)

// Autosaver persists the latest snapshot of one slice in the background.
// Rapid changes coalesce: only the newest pending snapshot is written.
type Autosaver struct {
	store *Store
	slice string

	mu      sync.Mutex
	latest  interface{}
	pending bool

	writeMu sync.Mutex
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewAutosaver(store *Store, slice string) *Autosaver {
	a := &Autosaver{
		store: store,
		slice: slice,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

// Schedule records snapshot as the value to write next. It never blocks.
func (a *Autosaver) Schedule(snapshot interface{}) {
	a.mu.Lock()
	a.latest = snapshot
	a.pending = true
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Autosaver) loop() {
	for {
		select {
		case <-a.wake:
			a.Flush()
		case <-a.done:
			return
		}
	}
}

// Flush writes the pending snapshot, if any, before returning.
func (a *Autosaver) Flush() {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	snapshot, pending := a.latest, a.pending
	a.latest, a.pending = nil, false
	a.mu.Unlock()

	if pending {
		a.store.Persist(map[string]interface{}{a.slice: snapshot})
	}
}

// RemoveSlice drops pending writes and deletes the slice.
func (a *Autosaver) RemoveSlice(name string) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if name == a.slice {
		a.mu.Lock()
		a.latest, a.pending = nil, false
		a.mu.Unlock()
	}
	a.store.RemoveSlice(name)
}

// Close flushes and stops the background writer.
func (a *Autosaver) Close() {
	a.once.Do(func() {
		close(a.done)
		a.Flush()
	})
}
