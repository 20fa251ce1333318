package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-support/internal/common/logger"
	"social-support/internal/common/metrics"
)

type formSlice struct {
	FormData    map[string]string `json:"formData"`
	CurrentStep int               `json:"currentStep"`
}

func newMemoryStore(t *testing.T) (*Store, *MemoryBackend) {
	backend := NewMemoryBackend()
	return NewStore(backend, DefaultKey, logger.NewTestLogger(t)), backend
}

// failingBackend fails every operation selected by its flags.
type failingBackend struct {
	*MemoryBackend
	failGet, failSet, failRemove bool
}

var errDiskFull = errors.New("disk full")

func (f *failingBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errDiskFull
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *failingBackend) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errDiskFull
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func (f *failingBackend) Remove(ctx context.Context, key string) error {
	if f.failRemove {
		return errDiskFull
	}
	return f.MemoryBackend.Remove(ctx, key)
}

// ==========================
// Persist / Restore
// ==========================

func TestStore_RoundTrip(t *testing.T) {
	store, _ := newMemoryStore(t)
	value := formSlice{FormData: map[string]string{"name": "Jane"}, CurrentStep: 1}
	want, err := json.Marshal(value)
	require.NoError(t, err)

	store.Persist(map[string]interface{}{"socialSupportForm": value})

	got := store.Restore([]string{"socialSupportForm"}, nil)
	assert.Equal(t, string(want), string(got["socialSupportForm"]))
}

func TestStore_PersistKeepsOtherSlices(t *testing.T) {
	store, backend := newMemoryStore(t)

	store.Persist(map[string]interface{}{"preferences": map[string]string{"theme": "dark"}})
	store.Persist(map[string]interface{}{"socialSupportForm": formSlice{CurrentStep: 2}})

	raw, ok, err := backend.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"preferences":{"theme":"dark"},"socialSupportForm":{"formData":null,"currentStep":2}}`, raw)
}

func TestStore_RestoreDefaults(t *testing.T) {
	store, _ := newMemoryStore(t)
	store.Persist(map[string]interface{}{"a": 1})

	got := store.Restore([]string{"a", "b", "c"}, map[string]json.RawMessage{
		"a": json.RawMessage(`0`),
		"b": json.RawMessage(`"default"`),
	})

	assert.Equal(t, json.RawMessage(`1`), got["a"])
	assert.Equal(t, json.RawMessage(`"default"`), got["b"])
	assert.NotContains(t, got, "c")
}

func TestStore_RestoreCorruptBlobFallsBackEntirely(t *testing.T) {
	store, backend := newMemoryStore(t)
	require.NoError(t, backend.Set(context.Background(), DefaultKey, `{"socialSupportForm": {"formData": `))

	before := testutil.ToFloat64(metrics.PersistenceFailures.WithLabelValues("decode"))
	got := store.Restore([]string{"socialSupportForm"}, map[string]json.RawMessage{
		"socialSupportForm": json.RawMessage(`{"currentStep":0}`),
	})

	assert.Equal(t, json.RawMessage(`{"currentStep":0}`), got["socialSupportForm"])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PersistenceFailures.WithLabelValues("decode")))
}

func TestStore_PersistOverwritesCorruptBlob(t *testing.T) {
	store, backend := newMemoryStore(t)
	require.NoError(t, backend.Set(context.Background(), DefaultKey, `not json`))

	store.Persist(map[string]interface{}{"a": "x"})

	raw, _, _ := backend.Get(context.Background(), DefaultKey)
	assert.JSONEq(t, `{"a":"x"}`, raw)
}

// ==========================
// RemoveSlice
// ==========================

func TestStore_RemoveSliceOnlyThatSlice(t *testing.T) {
	store, _ := newMemoryStore(t)
	store.Persist(map[string]interface{}{"a": 1, "b": 2})

	store.RemoveSlice("a")

	got := store.Restore([]string{"a", "b"}, nil)
	assert.NotContains(t, got, "a")
	assert.Equal(t, json.RawMessage(`2`), got["b"])
}

func TestStore_RemoveLastSliceDeletesBlob(t *testing.T) {
	store, backend := newMemoryStore(t)
	store.Persist(map[string]interface{}{"a": 1})

	store.RemoveSlice("a")
	store.RemoveSlice("missing")

	_, found, err := backend.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Clear(t *testing.T) {
	store, backend := newMemoryStore(t)
	store.Persist(map[string]interface{}{"a": 1, "b": 2})

	store.Clear()

	_, found, _ := backend.Get(context.Background(), DefaultKey)
	assert.False(t, found)
}

// ==========================
// Failures never escape
// ==========================

func TestStore_BackendFailuresAreSwallowed(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	store := NewStore(backend, "", logger.NewTestLogger(t))
	assert.Equal(t, DefaultKey, store.Key())

	store.Persist(map[string]interface{}{"a": 1})

	backend.failSet = true
	before := testutil.ToFloat64(metrics.PersistenceFailures.WithLabelValues("persist"))
	assert.NotPanics(t, func() { store.Persist(map[string]interface{}{"a": 2}) })
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PersistenceFailures.WithLabelValues("persist")))

	backend.failSet = false
	backend.failGet = true
	assert.NotPanics(t, func() { store.Persist(map[string]interface{}{"b": 3}) })
	got := store.Restore([]string{"a"}, map[string]json.RawMessage{"a": json.RawMessage(`0`)})
	assert.Equal(t, json.RawMessage(`0`), got["a"])

	backend.failGet = false
	backend.failRemove = true
	assert.NotPanics(t, func() { store.RemoveSlice("a") })
	assert.NotPanics(t, func() { store.Clear() })

	// the successful first write survived every failure
	backend.failRemove = false
	got = store.Restore([]string{"a"}, nil)
	assert.Equal(t, json.RawMessage(`1`), got["a"])
}

func TestStore_UnmarshalableSliceIsSwallowed(t *testing.T) {
	store, _ := newMemoryStore(t)
	assert.NotPanics(t, func() {
		store.Persist(map[string]interface{}{"bad": make(chan int)})
	})
}
