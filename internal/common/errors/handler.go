package errors

import (
	"sync"
)

// SuggestClearCacheAfter is the number of recovered failures after which the
// recovery screen offers to clear locally stored progress.
const SuggestClearCacheAfter = 2

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// Recovery describes what the presentation layer offers after an unhandled failure.
type Recovery struct {
	Err               *StandardError
	Message           string
	Actions           []string
	Count             int
	SuggestClearCache bool
}

// CountStore keeps the failure count between runs of the program.
type CountStore interface {
	LoadCount() int
	SaveCount(n int)
}

// Boundary is the top-level recovery boundary around event handlers.
type Boundary struct {
	logger Logger
	store  CountStore

	mu    sync.Mutex
	count int
}

func NewBoundary(logger Logger) *Boundary {
	return &Boundary{logger: logger}
}

// WithCountStore continues counting from the stored value and saves every
// change back to store.
func (b *Boundary) WithCountStore(store CountStore) *Boundary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store = store
	if store != nil {
		b.count = store.LoadCount()
	}
	return b
}

// Guard runs fn and converts a panic into an UnhandledRuntimeError. Regular
// errors are returned unchanged and do not count as unhandled.
func (b *Boundary) Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewUnhandledRuntimeError(r)
		}
	}()
	return fn()
}

// Recover records an unhandled failure and builds the recovery screen.
func (b *Boundary) Recover(err error) Recovery {
	stdErr := Normalize(err)

	b.mu.Lock()
	b.count++
	count := b.count
	if b.store != nil {
		b.store.SaveCount(count)
	}
	b.mu.Unlock()

	b.logger.Error("Unhandled failure", map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"details":       stdErr.Details,
		"errorCount":    count,
	})

	return Recovery{
		Err:               stdErr,
		Message:           stdErr.Message,
		Actions:           []string{"reload", "goHome"},
		Count:             count,
		SuggestClearCache: count > SuggestClearCacheAfter,
	}
}

// Count returns how many failures were recovered so far.
func (b *Boundary) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Reset clears the counter, e.g. after the user cleared local progress.
func (b *Boundary) Reset() {
	b.mu.Lock()
	b.count = 0
	if b.store != nil {
		b.store.SaveCount(0)
	}
	b.mu.Unlock()
}
