package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordOperation_NoopAndNil(t *testing.T) {
	var nilObs *Observability
	assert.NotPanics(t, func() {
		nilObs.RecordOperation(context.Background(), "assist.generate", "ready", time.Second)
		nilObs.Shutdown()
	})

	noop := NewNoop()
	assert.NotPanics(t, func() {
		noop.RecordOperation(context.Background(), "submission.submit", "success", time.Second)
		noop.Shutdown()
	})
}

func TestNew_RecordsOperations(t *testing.T) {
	obs := New("ssa-test")
	defer obs.Shutdown()

	assert.NotPanics(t, func() {
		obs.RecordOperation(context.Background(), "submission.submit", "failure", 250*time.Millisecond)
	})
}
