// Package draftstore persists named slices of application state as a single
// JSON blob under a fixed top-level key.
package draftstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/logger"
	"social-support/internal/common/metrics"
)

const (
	DefaultKey     = "appState"
	defaultTimeout = 3 * time.Second
)

// Backend is the durable local key/value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Store merges slices into the blob. Failures are logged and counted, never
// returned: losing a local save must not break the wizard.
type Store struct {
	backend Backend
	key     string
	timeout time.Duration
	logger  logger.Logger

	// mu serializes read-modify-write cycles on the blob.
	mu sync.Mutex
}

func NewStore(backend Backend, key string, log logger.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		backend: backend,
		key:     key,
		timeout: defaultTimeout,
		logger:  log.WithFields(map[string]interface{}{"component": "draftstore", "key": key}),
	}
}

// Key returns the top-level key of the blob.
func (s *Store) Key() string { return s.key }

// Persist writes the given slices, keeping every other slice in the blob.
func (s *Store) Persist(slices map[string]interface{}) {
	if len(slices) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	blob, ok := s.load(ctx, "persist")
	if !ok {
		return
	}

	for name, value := range slices {
		raw, err := json.Marshal(value)
		if err != nil {
			s.fail("persist", apperrors.NewPersistenceFailedError("marshal "+name, err))
			return
		}
		blob[name] = raw
	}
	s.write(ctx, "persist", blob)
}

// Restore returns, for each key, the persisted slice or the default. A
// corrupt or unreadable blob yields the defaults for every key.
func (s *Store) Restore(keys []string, defaults map[string]json.RawMessage) map[string]json.RawMessage {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	blob, _ := s.load(ctx, "restore")

	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if raw, ok := blob[k]; ok && len(raw) > 0 {
			out[k] = raw
			continue
		}
		if def, ok := defaults[k]; ok {
			out[k] = def
		}
	}
	return out
}

// RemoveSlice deletes one slice. When it was the last one the blob itself is
// removed.
func (s *Store) RemoveSlice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	blob, ok := s.load(ctx, "remove")
	if !ok {
		return
	}
	if _, exists := blob[name]; !exists {
		return
	}
	delete(blob, name)

	if len(blob) == 0 {
		if err := s.backend.Remove(ctx, s.key); err != nil {
			s.fail("remove", apperrors.NewPersistenceFailedError("remove", err))
		}
		return
	}
	s.write(ctx, "remove", blob)
}

// Clear removes the whole blob.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.backend.Remove(ctx, s.key); err != nil {
		s.fail("clear", apperrors.NewPersistenceFailedError("clear", err))
	}
}

// load reads and decodes the blob. ok is false only when the backend itself
// failed, in which case callers must not overwrite what is stored. A corrupt
// blob is reported and treated as empty.
func (s *Store) load(ctx context.Context, op string) (map[string]json.RawMessage, bool) {
	blob := make(map[string]json.RawMessage)

	data, found, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.fail(op, apperrors.NewPersistenceFailedError("read", err))
		return blob, false
	}
	if !found || data == "" {
		return blob, true
	}
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		s.logger.Warn("Stored state is corrupt, falling back to defaults", map[string]interface{}{
			"op":    op,
			"error": err.Error(),
		})
		metrics.PersistenceFailures.WithLabelValues("decode").Inc()
		return make(map[string]json.RawMessage), true
	}
	return blob, true
}

func (s *Store) write(ctx context.Context, op string, blob map[string]json.RawMessage) {
	data, err := json.Marshal(blob)
	if err != nil {
		s.fail(op, apperrors.NewPersistenceFailedError("marshal", err))
		return
	}
	if err := s.backend.Set(ctx, s.key, string(data)); err != nil {
		s.fail(op, apperrors.NewPersistenceFailedError("write", err))
	}
}

func (s *Store) fail(op string, err *apperrors.StandardError) {
	metrics.PersistenceFailures.WithLabelValues(op).Inc()
	s.logger.Error("Draft store operation failed", map[string]interface{}{
		"op":        op,
		"errorCode": string(err.Code),
		"details":   err.Details,
	})
}
