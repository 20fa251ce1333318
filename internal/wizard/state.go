// Package wizard is the explicit state container for the three-step
// application wizard: a pure reducer plus a store that serializes dispatches
// and notifies subscribers.
package wizard

import (
	"time"

	"social-support/internal/common/validation"
	"social-support/internal/form"
)

// SliceKey is the Draft Store slice holding the wizard state.
const SliceKey = "socialSupportForm"

// State is the persisted wizard state.
type State struct {
	Draft       form.ApplicationDraft `json:"formData"`
	CurrentStep int                   `json:"currentStep"`
}

func InitialState() State {
	return State{Draft: form.EmptyDraft()}
}

// StepKey returns the key of the current step.
func (s State) StepKey() form.StepKey {
	k, _ := form.StepAt(s.CurrentStep)
	return k
}

type ActionType string

const (
	ActionUpdateStep  ActionType = "updateStep"
	ActionGoNext      ActionType = "goNext"
	ActionGoPrevious  ActionType = "goPrevious"
	ActionJumpTo      ActionType = "jumpTo"
	ActionResetAll    ActionType = "resetAll"
	ActionSetLanguage ActionType = "setLanguage"
)

type Action struct {
	Type     ActionType
	Patch    form.Patch
	Index    int
	Language form.Language
}

func UpdateStep(p form.Patch) Action { return Action{Type: ActionUpdateStep, Patch: p} }
func GoNext() Action                 { return Action{Type: ActionGoNext} }
func GoPrevious() Action             { return Action{Type: ActionGoPrevious} }
func JumpTo(index int) Action        { return Action{Type: ActionJumpTo, Index: index} }
func ResetAll() Action               { return Action{Type: ActionResetAll} }

func SetLanguage(lang form.Language) Action {
	return Action{Type: ActionSetLanguage, Language: lang}
}

// StepValidator validates the slice a step edits.
type StepValidator interface {
	ValidateStep(index int, d form.ApplicationDraft) validation.Result
}

// Env carries the reducer's collaborators.
type Env struct {
	Now       func() time.Time
	Validator StepValidator
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// Reduce applies one action. It never mutates s; the only error is a patch
// that cannot be merged.
func Reduce(s State, a Action, env Env) (State, error) {
	switch a.Type {
	case ActionUpdateStep:
		draft, err := s.Draft.Apply(a.Patch)
		if err != nil {
			return s, err
		}
		saved := env.now()
		draft.Meta.LastSavedAt = &saved
		s.Draft = draft

	case ActionGoNext:
		if env.Validator != nil && !env.Validator.ValidateStep(s.CurrentStep, s.Draft).IsValid {
			return s, nil
		}
		if s.CurrentStep < form.StepCount-1 {
			s.CurrentStep++
		}

	case ActionGoPrevious:
		if s.CurrentStep > 0 {
			s.CurrentStep--
		}

	case ActionJumpTo:
		if a.Index >= 0 && a.Index <= s.CurrentStep {
			s.CurrentStep = a.Index
		}

	case ActionResetAll:
		lang := s.Draft.Language()
		s = InitialState()
		s.Draft.Meta.Language = lang

	case ActionSetLanguage:
		if lang, ok := form.ParseLanguage(string(a.Language)); ok {
			s.Draft.Meta.Language = lang
		}
	}
	return s, nil
}

// normalize repairs a restored state.
func normalize(s State) State {
	if s.CurrentStep < 0 {
		s.CurrentStep = 0
	}
	if s.CurrentStep > form.StepCount-1 {
		s.CurrentStep = form.StepCount - 1
	}
	s.Draft.Meta.Language = s.Draft.Language()
	return s
}
