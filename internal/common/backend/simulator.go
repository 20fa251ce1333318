package backend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"social-support/internal/form"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Simulator stands in for the service when no endpoint is configured. It
// accepts every draft after Delay.
type Simulator struct {
	Delay time.Duration
	Now   func() time.Time
	// Fail, when set, is returned instead of a response.
	Fail error
}

func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{Delay: delay, Now: time.Now}
}

func (s *Simulator) Submit(ctx context.Context, _ form.ApplicationDraft) (Response, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if s.Fail != nil {
		return Response{}, s.Fail
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now()
	return Response{
		ApplicationID: NewApplicationID(ts),
		Status:        StatusSuccess,
		Message:       "Application submitted successfully",
		Timestamp:     ts.UTC().Format(time.RFC3339),
	}, nil
}

// NewApplicationID formats SSA-<last 6 digits of the unix millis>-<6 random chars>.
func NewApplicationID(ts time.Time) string {
	millis := fmt.Sprintf("%06d", ts.UnixMilli())
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return fmt.Sprintf("SSA-%s-%s", millis[len(millis)-6:], b.String())
}
