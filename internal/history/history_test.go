package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeMetrics struct{ ok, failed, evicted int }

func (m *fakeMetrics) HistoryWrite(ok, evicted bool) {
	if ok {
		m.ok++
	} else {
		m.failed++
	}
	if evicted {
		m.evicted++
	}
}

func TestRecordKeepsLastTen(t *testing.T) {
	ctx := context.Background()
	metrics := &fakeMetrics{}
	log := NewLog(NewMemoryRepository(nil), WithMetrics(metrics))

	for i := 1; i <= 11; i++ {
		if err := log.Record(ctx, 42, fmt.Sprintf("/cmd%d", i)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	got, err := log.List(ctx, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for i, cmd := range got {
		if want := fmt.Sprintf("/cmd%d", i+2); cmd != want {
			t.Fatalf("entry %d = %s, want %s", i, cmd, want)
		}
	}
	if metrics.ok != 11 || metrics.evicted != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
}

func TestRecordTiesBrokenByInsertionOrder(t *testing.T) {
	fixed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	log := NewLog(NewMemoryRepository(func() time.Time { return fixed }), WithLimit(3))

	for _, cmd := range []string{"/a", "/b", "/c", "/d"} {
		_ = log.Record(ctx, 1, cmd)
	}
	got, _ := log.List(ctx, 1)
	want := []string{"/b", "/c", "/d"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	log := NewLog(NewMemoryRepository(nil))
	_ = log.Record(ctx, 1, "/low")
	_ = log.Record(ctx, 2, "/high")

	got, _ := log.List(ctx, 1)
	if len(got) != 1 || got[0] != "/low" {
		t.Fatalf("user 1 history = %v", got)
	}
	empty, err := log.List(ctx, 3)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("unknown user history = %v, %v; want empty non-nil slice", empty, err)
	}
}

type failingRepo struct{ err error }

func (f failingRepo) Append(context.Context, int64, string, int) (bool, error) { return false, f.err }
func (f failingRepo) List(context.Context, int64) ([]Entry, error)             { return nil, f.err }

func TestRecordReportsStorageFault(t *testing.T) {
	boom := errors.New("disk full")
	metrics := &fakeMetrics{}
	log := NewLog(failingRepo{err: boom}, WithMetrics(metrics))

	if err := log.Record(context.Background(), 1, "/low"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if metrics.failed != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
}

func TestLoweredLimitTrimsInOneWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(nil)
	full := NewLog(repo)
	for i := 1; i <= 10; i++ {
		_ = full.Record(ctx, 1, fmt.Sprintf("/cmd%d", i))
	}

	small := NewLog(repo, WithLimit(3))
	if err := small.Record(ctx, 1, "/cmd11"); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, _ := small.List(ctx, 1)
	want := []string{"/cmd9", "/cmd10", "/cmd11"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestLimitNeverExceedsTen(t *testing.T) {
	ctx := context.Background()
	log := NewLog(NewMemoryRepository(nil), WithLimit(50))
	for i := 0; i < 15; i++ {
		_ = log.Record(ctx, 1, fmt.Sprintf("/cmd%d", i))
	}
	if got, _ := log.List(ctx, 1); len(got) != DefaultLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultLimit)
	}
}
