// Package dialog drives the multi-step conversations of the bot: one engine,
// parametrized by a step table per dialog kind.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/aviabot/core/logger"
)

// Resolver turns a completed session into reply messages.
type Resolver interface {
	Resolve(ctx context.Context, s Session) ([]string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, s Session) ([]string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, s Session) ([]string, error) { return f(ctx, s) }

// Metrics receives dialog lifecycle events. A nil Metrics is ignored.
type Metrics interface {
	DialogEvent(kind Kind, event string)
	DialogStep(kind Kind, step StepName, outcome Outcome)
}

// Reply is what the bot sends back for one engine call.
type Reply struct {
	Kind      Kind
	SessionID string
	Outcome   Outcome
	// Step is the step now awaiting input; StepResolve once completed.
	Step     StepName
	Messages []string
}

// Engine owns all sessions and moves them through their flows.
type Engine struct {
	flows     map[Kind]Flow
	resolvers map[Kind]Resolver
	store     *Store
	metrics   Metrics
	now       func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithMetrics reports lifecycle events to m.
func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineClock replaces time.Now, for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires flows to resolvers. Every flow needs a resolver.
func NewEngine(store *Store, flows []Flow, resolvers map[Kind]Resolver, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("dialog: nil store")
	}
	e := &Engine{
		flows:     make(map[Kind]Flow, len(flows)),
		resolvers: make(map[Kind]Resolver, len(resolvers)),
		store:     store,
		now:       time.Now,
	}
	for _, f := range flows {
		if len(f.Steps) == 0 {
			return nil, fmt.Errorf("dialog: flow %q is empty", f.Kind)
		}
		if _, dup := e.flows[f.Kind]; dup {
			return nil, fmt.Errorf("dialog: duplicate flow %s", f.Kind)
		}
		r := resolvers[f.Kind]
		if r == nil {
			return nil, fmt.Errorf("dialog: no resolver for %s", f.Kind)
		}
		e.flows[f.Kind] = f
		e.resolvers[f.Kind] = r
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start opens a dialog of kind for userID and returns the first prompt. If
// the user is already in a dialog, nothing changes and the returned Reply
// describes the existing dialog along with ErrDialogInProgress.
func (e *Engine) Start(ctx context.Context, userID int64, kind Kind) (Reply, error) {
	return e.open(ctx, userID, kind, false)
}

// Restart replaces any dialog of userID with a new one of kind.
func (e *Engine) Restart(ctx context.Context, userID int64, kind Kind) (Reply, error) {
	return e.open(ctx, userID, kind, true)
}

func (e *Engine) open(ctx context.Context, userID int64, kind Kind, replace bool) (Reply, error) {
	flow, ok := e.flows[kind]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	slot := e.store.Acquire(userID)
	defer slot.Release()

	if cur, active := slot.Session(); active {
		if !replace {
			return Reply{Kind: cur.Kind, SessionID: cur.ID, Step: cur.Step}, ErrDialogInProgress
		}
		e.event(logger.WithDialogID(ctx, cur.ID), cur.Kind, "replaced")
	}

	now := e.now()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Step:      flow.First,
		Answers:   Answers{},
		StartedAt: now,
		UpdatedAt: now,
	}
	slot.Put(sess)
	e.event(logger.WithDialogID(ctx, sess.ID), kind, "started")

	return Reply{
		Kind:      kind,
		SessionID: sess.ID,
		Outcome:   OutcomeAdvanced,
		Step:      flow.First,
		Messages:  []string{flow.Steps[flow.First].Prompt},
	}, nil
}

// Submit feeds text to the user's current step. On the terminal step the
// session is dropped and its resolver runs exactly once while the user's slot
// is still held. A resolver error is returned with Outcome completed.
func (e *Engine) Submit(ctx context.Context, userID int64, text string) (Reply, error) {
	slot := e.store.Acquire(userID)
	defer slot.Release()

	sess, ok := slot.Session()
	if !ok {
		return Reply{}, ErrNoDialog
	}
	ctx = logger.WithDialogID(ctx, sess.ID)
	flow := e.flows[sess.Kind]

	start := e.now()
	tr, err := Advance(ctx, flow, sess, text, start)
	if err != nil {
		logger.Error(ctx, logger.CompDialog, "dialog.step",
			slog.String("status", "fail"),
			slog.String("kind", string(sess.Kind)),
			slog.String("step", string(sess.Step)),
			slog.String("err", err.Error()),
		)
		return Reply{Kind: sess.Kind, SessionID: sess.ID, Step: sess.Step}, err
	}
	e.step(ctx, sess, tr)

	reply := Reply{
		Kind:      sess.Kind,
		SessionID: sess.ID,
		Outcome:   tr.Outcome,
		Step:      tr.Session.Step,
		Messages:  tr.Messages,
	}
	switch tr.Outcome {
	case OutcomeReprompt:
		touched := sess
		touched.UpdatedAt = start
		slot.Put(touched)
		return reply, nil
	case OutcomeAdvanced:
		slot.Put(tr.Session)
		return reply, nil
	}

	slot.Drop()
	msgs, err := e.resolvers[sess.Kind].Resolve(ctx, tr.Session)
	if err != nil {
		e.event(ctx, sess.Kind, "failed")
		return reply, err
	}
	e.event(ctx, sess.Kind, "completed")
	reply.Messages = msgs
	return reply, nil
}

// Cancel drops the user's dialog and reports whether there was one.
func (e *Engine) Cancel(ctx context.Context, userID int64) bool {
	slot := e.store.Acquire(userID)
	defer slot.Release()
	sess, ok := slot.Session()
	if !ok {
		return false
	}
	slot.Drop()
	e.event(logger.WithDialogID(ctx, sess.ID), sess.Kind, "cancelled")
	return true
}

// Current returns the prompt of the step the user's dialog is waiting on,
// or ErrNoDialog.
func (e *Engine) Current(_ context.Context, userID int64) (Reply, error) {
	slot := e.store.Acquire(userID)
	defer slot.Release()
	sess, ok := slot.Session()
	if !ok {
		return Reply{}, ErrNoDialog
	}
	return Reply{
		Kind:      sess.Kind,
		SessionID: sess.ID,
		Outcome:   OutcomeReprompt,
		Step:      sess.Step,
		Messages:  []string{e.flows[sess.Kind].Steps[sess.Step].Prompt},
	}, nil
}

// Active reports whether userID is in a dialog. It waits for an in-flight
// Submit of the same user to finish.
func (e *Engine) Active(userID int64) bool {
	slot := e.store.Acquire(userID)
	defer slot.Release()
	_, ok := slot.Session()
	return ok
}

// ActiveCount is the number of users with a dialog or a pending call.
func (e *Engine) ActiveCount() int {
	return e.store.Len()
}

func (e *Engine) event(ctx context.Context, kind Kind, event string) {
	if e.metrics != nil {
		e.metrics.DialogEvent(kind, event)
	}
	logger.Info(ctx, logger.CompDialog, "dialog."+event,
		slog.String("kind", string(kind)),
	)
}

func (e *Engine) step(ctx context.Context, before Session, tr Transition) {
	if e.metrics != nil {
		e.metrics.DialogStep(before.Kind, before.Step, tr.Outcome)
	}
	attrs := []slog.Attr{
		slog.String("kind", string(before.Kind)),
		slog.String("step", string(before.Step)),
		slog.String("next_step", string(tr.Session.Step)),
		slog.String("outcome", string(tr.Outcome)),
	}
	if tr.Invalid != nil {
		var ie *InputError
		if errors.As(tr.Invalid, &ie) {
			attrs = append(attrs, slog.String("err_code", ie.Code()))
		}
	}
	logger.Debug(ctx, logger.CompDialog, "dialog.step", attrs...)
}
