package dialog

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/m3rciful/aviabot/internal/reference"
)

func testCities() *reference.MemoryStore {
	return reference.NewMemoryStore([]reference.City{
		{Name: "Moscow", Ru: "Москва", Code: "MOW", Lat: 55.75, Lon: 37.62},
		{Name: "Paris", Ru: "Париж", Code: "PAR", Lat: 48.85, Lon: 2.35},
	}, nil)
}

type recordingResolver struct {
	mu       sync.Mutex
	sessions []Session
	err      error
}

func (r *recordingResolver) Resolve(_ context.Context, s Session) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s.Clone())
	if r.err != nil {
		return nil, r.err
	}
	return []string{"resolved " + string(s.Kind)}, nil
}

func newTestEngine(t *testing.T, res Resolver) *Engine {
	t.Helper()
	flows, err := DefaultFlows(testCities())
	if err != nil {
		t.Fatalf("DefaultFlows: %v", err)
	}
	resolvers := map[Kind]Resolver{KindLow: res, KindHigh: res, KindCustom: res, KindWeather: res}
	e, err := NewEngine(NewStore(), flows, resolvers)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func answerKeys(a Answers) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func TestEveryKindResolvesOnceWithExpectedAnswers(t *testing.T) {
	cases := []struct {
		kind   Kind
		inputs []string
		keys   []string
	}{
		{KindLow, []string{"Москва", "Париж", "2024-02"}, []string{"destination", "month", "origin"}},
		{KindHigh, []string{"Москва", "Париж", "2024-02"}, []string{"destination", "month", "origin"}},
		{KindCustom, []string{"Москва", "Париж", "2024-02", "5000-10000"}, []string{"destination", "month", "origin", "price_range"}},
		{KindWeather, []string{"Париж"}, []string{"city"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			res := &recordingResolver{}
			e := newTestEngine(t, res)
			ctx := context.Background()

			if _, err := e.Start(ctx, 7, tc.kind); err != nil {
				t.Fatalf("start: %v", err)
			}
			var last Reply
			for i, in := range tc.inputs {
				r, err := e.Submit(ctx, 7, in)
				if err != nil {
					t.Fatalf("submit %d (%q): %v", i, in, err)
				}
				last = r
			}
			if last.Outcome != OutcomeCompleted {
				t.Fatalf("final outcome = %s", last.Outcome)
			}
			if len(res.sessions) != 1 {
				t.Fatalf("resolver calls = %d, want 1", len(res.sessions))
			}
			if got := answerKeys(res.sessions[0].Answers); !reflect.DeepEqual(got, tc.keys) {
				t.Fatalf("answer keys = %v, want %v", got, tc.keys)
			}
			if e.Active(7) {
				t.Fatal("session must be dropped after completion")
			}
			if _, err := e.Submit(ctx, 7, "Москва"); !errors.Is(err, ErrNoDialog) {
				t.Fatalf("submit after completion err = %v", err)
			}
			if len(res.sessions) != 1 {
				t.Fatal("resolver ran more than once")
			}
		})
	}
}

func TestInvalidInputKeepsStepAndAnswers(t *testing.T) {
	flows, err := DefaultFlows(testCities())
	if err != nil {
		t.Fatal(err)
	}
	valid := map[StepName]string{
		StepOrigin: "Москва", StepDestination: "Париж", StepMonth: "2024-02",
		StepPriceRange: "5000-10000", StepCity: "Москва",
	}
	bad := map[StepName]string{
		StepOrigin: "Атлантида", StepDestination: "москва", StepMonth: "2024-2",
		StepPriceRange: "5000 - 10000", StepCity: "Nowhere",
	}
	ctx := context.Background()
	for _, f := range flows {
		s := Session{Kind: f.Kind, Step: f.First, Answers: Answers{}}
		for _, step := range f.Chain() {
			before := s.Clone()
			tr, err := Advance(ctx, f, s, bad[step], s.UpdatedAt)
			if err != nil {
				t.Fatalf("%s/%s: unexpected fault %v", f.Kind, step, err)
			}
			if tr.Outcome != OutcomeReprompt {
				t.Fatalf("%s/%s: outcome = %s, want reprompt", f.Kind, step, tr.Outcome)
			}
			if tr.Session.Step != before.Step || !reflect.DeepEqual(tr.Session.Answers, before.Answers) {
				t.Fatalf("%s/%s: session changed on invalid input", f.Kind, step)
			}
			def := f.Steps[step]
			if len(tr.Messages) != 2 || tr.Messages[0] != def.ErrorText || tr.Messages[1] != def.Prompt {
				t.Fatalf("%s/%s: messages = %q", f.Kind, step, tr.Messages)
			}

			tr, err = Advance(ctx, f, s, valid[step], s.UpdatedAt)
			if err != nil || tr.Outcome == OutcomeReprompt {
				t.Fatalf("%s/%s: valid input rejected: %v", f.Kind, step, err)
			}
			if !reflect.DeepEqual(s.Answers, before.Answers) {
				t.Fatalf("%s/%s: Advance mutated its input", f.Kind, step)
			}
			s = tr.Session
		}
	}
}

func TestUnknownOriginRepromptsThenSucceeds(t *testing.T) {
	e := newTestEngine(t, &recordingResolver{})
	ctx := context.Background()
	if _, err := e.Start(ctx, 1, KindLow); err != nil {
		t.Fatal(err)
	}

	r, err := e.Submit(ctx, 1, "Готэм")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r.Outcome != OutcomeReprompt || r.Step != StepOrigin {
		t.Fatalf("reply = %+v", r)
	}
	if r.Messages[0] != errOrigin {
		t.Fatalf("message = %q, want not-found text", r.Messages[0])
	}
	slot := e.store.Acquire(1)
	sess, _ := slot.Session()
	slot.Release()
	if len(sess.Answers) != 0 {
		t.Fatalf("answers = %v, want empty", sess.Answers)
	}

	r, err = e.Submit(ctx, 1, "Москва")
	if err != nil || r.Outcome != OutcomeAdvanced || r.Step != StepDestination {
		t.Fatalf("second submit = %+v, %v", r, err)
	}
	if r.Messages[0] != promptDestination {
		t.Fatalf("prompt = %q", r.Messages[0])
	}
}

func TestStartWhileInProgressNeedsRestart(t *testing.T) {
	e := newTestEngine(t, &recordingResolver{})
	ctx := context.Background()
	first, _ := e.Start(ctx, 3, KindCustom)
	_, _ = e.Submit(ctx, 3, "Москва")

	r, err := e.Start(ctx, 3, KindLow)
	if !errors.Is(err, ErrDialogInProgress) {
		t.Fatalf("err = %v, want ErrDialogInProgress", err)
	}
	if r.Kind != KindCustom || r.SessionID != first.SessionID || r.Step != StepDestination {
		t.Fatalf("in-progress reply = %+v", r)
	}
	// The running dialog is untouched.
	if r, err := e.Submit(ctx, 3, "Париж"); err != nil || r.Step != StepMonth {
		t.Fatalf("continue = %+v, %v", r, err)
	}

	r, err = e.Restart(ctx, 3, KindLow)
	if err != nil || r.Kind != KindLow || r.Step != StepOrigin || r.SessionID == first.SessionID {
		t.Fatalf("restart = %+v, %v", r, err)
	}
}

func TestCurrentRepeatsWaitingPrompt(t *testing.T) {
	e := newTestEngine(t, &recordingResolver{})
	ctx := context.Background()
	if _, err := e.Current(ctx, 4); !errors.Is(err, ErrNoDialog) {
		t.Fatalf("err = %v, want ErrNoDialog", err)
	}
	started, _ := e.Start(ctx, 4, KindLow)
	next, _ := e.Submit(ctx, 4, "Москва")

	r, err := e.Current(ctx, 4)
	if err != nil || r.SessionID != started.SessionID || r.Step != StepDestination {
		t.Fatalf("current = %+v, %v", r, err)
	}
	if !reflect.DeepEqual(r.Messages, next.Messages) {
		t.Fatalf("messages = %q, want %q", r.Messages, next.Messages)
	}
	// Asking again changes nothing.
	if r, err := e.Submit(ctx, 4, "Париж"); err != nil || r.Step != StepMonth {
		t.Fatalf("continue = %+v, %v", r, err)
	}
}

func TestCancel(t *testing.T) {
	e := newTestEngine(t, &recordingResolver{})
	ctx := context.Background()
	if e.Cancel(ctx, 9) {
		t.Fatal("cancel without dialog must report false")
	}
	_, _ = e.Start(ctx, 9, KindWeather)
	if !e.Cancel(ctx, 9) || e.Active(9) {
		t.Fatal("cancel must drop the dialog")
	}
}

func TestResolverErrorStillDropsSession(t *testing.T) {
	boom := errors.New("api down")
	e := newTestEngine(t, &recordingResolver{err: boom})
	ctx := context.Background()
	_, _ = e.Start(ctx, 5, KindWeather)

	r, err := e.Submit(ctx, 5, "Москва")
	if !errors.Is(err, boom) || r.Outcome != OutcomeCompleted {
		t.Fatalf("reply = %+v, err = %v", r, err)
	}
	if e.Active(5) {
		t.Fatal("session must not survive a resolver failure")
	}
}

type faultyCities struct{ err error }

func (f faultyCities) CityByName(context.Context, string) (reference.City, error) {
	return reference.City{}, f.err
}

func (f faultyCities) AirportByCode(context.Context, string) (reference.Airport, error) {
	return reference.Airport{}, f.err
}

func TestStoreFaultKeepsSession(t *testing.T) {
	boom := errors.New("connection refused")
	flows, _ := DefaultFlows(faultyCities{err: boom})
	res := &recordingResolver{}
	e, err := NewEngine(NewStore(), flows, map[Kind]Resolver{KindLow: res, KindHigh: res, KindCustom: res, KindWeather: res})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = e.Start(ctx, 2, KindLow)

	if _, err := e.Submit(ctx, 2, "Москва"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !e.Active(2) {
		t.Fatal("a lookup fault must not drop the session")
	}
}

func TestUsersDoNotShareSessions(t *testing.T) {
	e := newTestEngine(t, &recordingResolver{})
	ctx := context.Background()
	_, _ = e.Start(ctx, 1, KindLow)
	_, _ = e.Start(ctx, 2, KindWeather)

	if r, err := e.Submit(ctx, 1, "Москва"); err != nil || r.Step != StepDestination {
		t.Fatalf("user 1 = %+v, %v", r, err)
	}
	if r, err := e.Submit(ctx, 2, "Москва"); err != nil || r.Outcome != OutcomeCompleted {
		t.Fatalf("user 2 = %+v, %v", r, err)
	}
	if !e.Active(1) || e.Active(2) {
		t.Fatal("sessions leaked between users")
	}
}

func TestConcurrentSubmitsForOneUserAreSerialised(t *testing.T) {
	res := &recordingResolver{}
	e := newTestEngine(t, res)
	ctx := context.Background()
	_, _ = e.Start(ctx, 4, KindWeather)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Submit(ctx, 4, "Париж")
		}()
	}
	wg.Wait()
	if len(res.sessions) != 1 {
		t.Fatalf("resolver calls = %d, want 1", len(res.sessions))
	}
}

func TestNewEngineRequiresResolvers(t *testing.T) {
	flows, _ := DefaultFlows(testCities())
	if _, err := NewEngine(NewStore(), flows, map[Kind]Resolver{KindLow: &recordingResolver{}}); err == nil {
		t.Fatal("expected error for missing resolvers")
	}
	if _, err := e0().Start(context.Background(), 1, "unknown"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func e0() *Engine {
	e, _ := NewEngine(NewStore(), nil, nil)
	return e
}
