package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StepDefinition is one prompt/validate/advance unit of a flow.
type StepDefinition struct {
	Name      StepName
	Validate  Validator
	Prompt    string
	ErrorText string
	// Next is the successor step or StepResolve.
	Next StepName
}

// Flow is the step table of one dialog kind.
type Flow struct {
	Kind  Kind
	First StepName
	Steps map[StepName]StepDefinition
}

// NewFlow builds a flow whose first step is steps[0]. The successor links must
// form one acyclic chain that visits every step and ends at StepResolve.
func NewFlow(kind Kind, steps ...StepDefinition) (Flow, error) {
	if kind == "" || len(steps) == 0 {
		return Flow{}, fmt.Errorf("dialog: flow %q has no steps", kind)
	}
	f := Flow{Kind: kind, First: steps[0].Name, Steps: make(map[StepName]StepDefinition, len(steps))}
	for _, st := range steps {
		switch {
		case st.Name == "" || st.Name == StepResolve:
			return Flow{}, fmt.Errorf("dialog: flow %s: invalid step name %q", kind, st.Name)
		case st.Validate == nil:
			return Flow{}, fmt.Errorf("dialog: flow %s: step %s has no validator", kind, st.Name)
		}
		if _, dup := f.Steps[st.Name]; dup {
			return Flow{}, fmt.Errorf("dialog: flow %s: duplicate step %s", kind, st.Name)
		}
		f.Steps[st.Name] = st
	}

	seen := make(map[StepName]bool, len(f.Steps))
	for cur := f.First; cur != StepResolve; {
		if seen[cur] {
			return Flow{}, fmt.Errorf("dialog: flow %s: cycle at step %s", kind, cur)
		}
		seen[cur] = true
		st, ok := f.Steps[cur]
		if !ok {
			return Flow{}, fmt.Errorf("dialog: flow %s: unknown step %s", kind, cur)
		}
		cur = st.Next
	}
	if len(seen) != len(f.Steps) {
		return Flow{}, fmt.Errorf("dialog: flow %s: %d steps unreachable from %s", kind, len(f.Steps)-len(seen), f.First)
	}
	return f, nil
}

// Chain lists the steps of f in order, without StepResolve.
func (f Flow) Chain() []StepName {
	var out []StepName
	for cur := f.First; cur != StepResolve; cur = f.Steps[cur].Next {
		out = append(out, cur)
	}
	return out
}

// Outcome is the result of one Advance.
type Outcome string

const (
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeReprompt  Outcome = "reprompt"
	OutcomeCompleted Outcome = "completed"
)

// Transition is what Advance decided. Session is the state after the input;
// for a reprompt it equals the input session.
type Transition struct {
	Outcome  Outcome
	Session  Session
	Messages []string
	// Invalid is the validation failure behind a reprompt.
	Invalid error
}

// Advance applies text to the current step of s. It never mutates s. A
// non-nil error is a collaborator fault; the session must be kept as it was.
func Advance(ctx context.Context, f Flow, s Session, text string, now time.Time) (Transition, error) {
	st, ok := f.Steps[s.Step]
	if !ok {
		return Transition{}, fmt.Errorf("dialog: flow %s has no step %s", f.Kind, s.Step)
	}

	val, err := st.Validate(ctx, text)
	if err != nil {
		var inputErr *InputError
		if !errors.As(err, &inputErr) {
			return Transition{}, err
		}
		return Transition{
			Outcome:  OutcomeReprompt,
			Session:  s,
			Messages: []string{st.ErrorText, st.Prompt},
			Invalid:  err,
		}, nil
	}

	next := s.Clone()
	next.Answers[st.Name] = val
	next.UpdatedAt = now
	if st.Next == StepResolve {
		next.Step = StepResolve
		return Transition{Outcome: OutcomeCompleted, Session: next}, nil
	}
	next.Step = st.Next
	return Transition{
		Outcome:  OutcomeAdvanced,
		Session:  next,
		Messages: []string{f.Steps[st.Next].Prompt},
	}, nil
}
