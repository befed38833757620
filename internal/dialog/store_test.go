package dialog

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreLazyExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	var expired []Session
	s := NewStore(WithTTL(time.Minute), WithClock(clock.Now), WithExpireHook(func(sess Session) {
		expired = append(expired, sess)
	}))

	slot := s.Acquire(1)
	slot.Put(Session{ID: "a", UserID: 1, Kind: KindLow, Step: StepOrigin, UpdatedAt: clock.Now()})
	slot.Release()

	clock.Advance(59 * time.Second)
	slot = s.Acquire(1)
	if _, ok := slot.Session(); !ok {
		t.Fatal("session expired too early")
	}
	slot.Release()

	clock.Advance(2 * time.Second)
	slot = s.Acquire(1)
	if _, ok := slot.Session(); ok {
		t.Fatal("session should have expired")
	}
	slot.Release()

	if len(expired) != 1 || expired[0].ID != "a" {
		t.Fatalf("expire hook calls = %+v", expired)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestStoreSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(WithTTL(time.Minute), WithClock(clock.Now))

	for id := int64(1); id <= 3; id++ {
		slot := s.Acquire(id)
		slot.Put(Session{ID: "s", UserID: id, UpdatedAt: clock.Now()})
		slot.Release()
	}
	clock.Advance(30 * time.Second)
	slot := s.Acquire(3)
	sess, _ := slot.Session()
	sess.UpdatedAt = clock.Now()
	slot.Put(sess)
	slot.Release()

	clock.Advance(45 * time.Second)
	if n := s.Sweep(); n != 2 {
		t.Fatalf("Sweep removed %d, want 2", n)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStoreSweepSkipsHeldSlots(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(WithTTL(time.Second), WithClock(clock.Now))

	slot := s.Acquire(1)
	slot.Put(Session{ID: "held", UserID: 1, UpdatedAt: clock.Now()})
	clock.Advance(time.Hour)
	if n := s.Sweep(); n != 0 {
		t.Fatalf("Sweep removed %d while slot held", n)
	}
	slot.Release()
	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d after release, want 1", n)
	}
}

func TestStoreRunStopsWithContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
