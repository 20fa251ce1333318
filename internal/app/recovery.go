package app

import (
	"encoding/json"

	"social-support/internal/draftstore"
)

// RecoverySliceKey holds the unhandled failure count next to the draft.
const RecoverySliceKey = "errorBoundary"

type recoveryState struct {
	ErrorCount int `json:"errorCount"`
}

// recoveryCounter stores the recovery boundary's count in the draft store so
// the clear-cache hint works across separate CLI invocations.
type recoveryCounter struct {
	drafts *draftstore.Store
}

func (r recoveryCounter) LoadCount() int {
	raw, ok := r.drafts.Restore([]string{RecoverySliceKey}, nil)[RecoverySliceKey]
	if !ok {
		return 0
	}
	var s recoveryState
	if err := json.Unmarshal(raw, &s); err != nil || s.ErrorCount < 0 {
		return 0
	}
	return s.ErrorCount
}

func (r recoveryCounter) SaveCount(n int) {
	if n <= 0 {
		r.drafts.RemoveSlice(RecoverySliceKey)
		return
	}
	r.drafts.Persist(map[string]interface{}{RecoverySliceKey: recoveryState{ErrorCount: n}})
}
