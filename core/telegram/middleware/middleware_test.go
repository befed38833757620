package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type stubContext struct {
	tele.Context
	user   *tele.User
	upd    tele.Update
	values map[string]any
	sends  int
}

func newStubContext(userID int64) *stubContext {
	return &stubContext{
		user:   &tele.User{ID: userID},
		upd:    tele.Update{ID: 1, Message: &tele.Message{}},
		values: map[string]any{},
	}
}

func (s *stubContext) Sender() *tele.User        { return s.user }
func (s *stubContext) Chat() *tele.Chat          { return &tele.Chat{ID: s.user.ID} }
func (s *stubContext) Update() tele.Update       { return s.upd }
func (s *stubContext) Get(key string) any        { return s.values[key] }
func (s *stubContext) Set(key string, value any) { s.values[key] = value }
func (s *stubContext) Send(any, ...any) error    { s.sends++; return nil }

type observation struct {
	kind     string
	failed   bool
	messages int
}

type recordingObserver struct{ got []observation }

func (r *recordingObserver) ObserveUpdate(kind string, failed bool, _ time.Duration, messages int) {
	r.got = append(r.got, observation{kind, failed, messages})
}

func TestRateLimitPerUser(t *testing.T) {
	now := time.Unix(1000, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Now:       func() time.Time { return now },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(newStubContext(1))
	_ = h(newStubContext(1))
	_ = h(newStubContext(2))
	now = now.Add(time.Second)
	_ = h(newStubContext(1))

	if calls != 3 || limited != 1 {
		t.Fatalf("calls=%d limited=%d, want 3 and 1", calls, limited)
	}
}

func TestRateLimitExcludedKind(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"callback": {}},
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })
	for i := 0; i < 3; i++ {
		c := newStubContext(1)
		c.upd = tele.Update{Callback: &tele.Callback{}}
		_ = h(c)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestMetricsMiddlewareCountsSends(t *testing.T) {
	obs := &recordingObserver{}
	boom := errors.New("boom")
	h := MetricsMiddleware(obs)(func(c tele.Context) error {
		_ = c.Send("one")
		_ = c.Send("two", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
		return boom
	})
	c := newStubContext(1)
	if err := h(c); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	msgs, kb := GetCounters(c)
	if msgs != 2 || !kb {
		t.Fatalf("counters = %d, %v", msgs, kb)
	}
	if len(obs.got) != 1 || obs.got[0] != (observation{"message", true, 2}) {
		t.Fatalf("observations = %+v", obs.got)
	}
}

func TestRecoverSwallowsPanic(t *testing.T) {
	notified := false
	h := RecoverMiddleware(func(tele.Context) error { notified = true; return nil })(
		func(tele.Context) error { panic("kaboom") },
	)
	if err := h(newStubContext(1)); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if !notified {
		t.Fatal("onPanic not called")
	}
}

func TestAdminOnly(t *testing.T) {
	ran, rejected := 0, 0
	h := AdminOnly(42, func(tele.Context) error { ran++; return nil },
		func(tele.Context) error { rejected++; return nil })
	_ = h(newStubContext(42))
	_ = h(newStubContext(7))
	closed := AdminOnly(0, func(tele.Context) error { ran++; return nil }, nil)
	_ = closed(newStubContext(42))
	if ran != 1 || rejected != 1 {
		t.Fatalf("ran=%d rejected=%d", ran, rejected)
	}
}
