package wizard

import (
	"encoding/json"
	"reflect"
	"sync"

	"social-support/internal/common/logger"
	"social-support/internal/common/metrics"
	"social-support/internal/common/validation"
	"social-support/internal/form"
)

// Subscriber receives the state after every change. It runs on the
// dispatching goroutine and must not dispatch.
type Subscriber func(State)

// Store owns the wizard state.
type Store struct {
	env    Env
	logger logger.Logger

	dispatchMu sync.Mutex

	mu     sync.RWMutex
	state  State
	subs   map[int]Subscriber
	nextID int
}

func NewStore(initial State, env Env, log logger.Logger) *Store {
	return &Store{
		env:    env,
		logger: log.WithFields(map[string]interface{}{"component": "wizard"}),
		state:  normalize(initial),
		subs:   make(map[int]Subscriber),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// State returns a snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces a and notifies subscribers when the state changed.
func (s *Store) Dispatch(a Action) (State, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next, err := Reduce(prev, a, s.env)
	if err != nil {
		s.mu.Unlock()
		return prev, err
	}
	s.state = next
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if reflect.DeepEqual(prev, next) {
		return next, nil
	}
	for _, fn := range subs {
		fn(next)
	}
	return next, nil
}

// UpdateStep checks values against the step record and merges them.
func (s *Store) UpdateStep(step form.StepKey, values map[string]interface{}) error {
	p, err := form.NewPatch(step, values)
	if err != nil {
		return err
	}
	_, err = s.Dispatch(UpdateStep(p))
	return err
}

// GoNext advances when the current step validates and returns that result so
// the caller can show inline errors.
func (s *Store) GoNext() (validation.Result, bool) {
	before := s.State()
	res := s.Validate(before.CurrentStep)

	after, _ := s.Dispatch(GoNext())
	moved := after.CurrentStep != before.CurrentStep

	result := "blocked"
	if res.IsValid {
		result = "advanced"
		if !moved {
			result = "clamped"
		}
	}
	metrics.StepTransitions.WithLabelValues(string(ActionGoNext), result).Inc()
	s.logger.Debug("Go next", map[string]interface{}{
		"fromStep": before.CurrentStep,
		"toStep":   after.CurrentStep,
		"errors":   len(res.FieldErrors),
	})
	return res, moved
}

func (s *Store) GoPrevious() bool {
	before := s.State()
	after, _ := s.Dispatch(GoPrevious())
	moved := after.CurrentStep != before.CurrentStep
	metrics.StepTransitions.WithLabelValues(string(ActionGoPrevious), outcome(moved)).Inc()
	return moved
}

// JumpTo moves to an already visited step. Forward jumps are ignored.
func (s *Store) JumpTo(index int) bool {
	before := s.State()
	after, _ := s.Dispatch(JumpTo(index))
	moved := after.CurrentStep != before.CurrentStep
	metrics.StepTransitions.WithLabelValues(string(ActionJumpTo), outcome(moved)).Inc()
	return moved
}

func (s *Store) ResetAll() {
	_, _ = s.Dispatch(ResetAll())
	s.logger.Info("Wizard reset", nil)
}

func (s *Store) SetLanguage(lang form.Language) {
	_, _ = s.Dispatch(SetLanguage(lang))
}

// Validate runs the step validator on the current draft.
func (s *Store) Validate(index int) validation.Result {
	if s.env.Validator == nil {
		return validation.Result{IsValid: true, FieldErrors: map[string]validation.ReasonCode{}}
	}
	return s.env.Validator.ValidateStep(index, s.State().Draft)
}

func outcome(moved bool) string {
	if moved {
		return "moved"
	}
	return "ignored"
}

// SliceRestorer reads slices from the Draft Store.
type SliceRestorer interface {
	Restore(keys []string, defaults map[string]json.RawMessage) map[string]json.RawMessage
}

// Restore loads the persisted wizard state. Missing or undecodable data yields
// the initial state.
func Restore(r SliceRestorer, log logger.Logger) State {
	initial := InitialState()
	def, err := json.Marshal(initial)
	if err != nil {
		return initial
	}

	raw := r.Restore([]string{SliceKey}, map[string]json.RawMessage{SliceKey: def})[SliceKey]

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		log.Warn("Discarding undecodable wizard state", map[string]interface{}{
			"slice": SliceKey,
			"error": err.Error(),
		})
		return initial
	}
	return normalize(st)
}
