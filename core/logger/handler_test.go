package logger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *lineWriter) {
	aw := newLineWriter([]io.Writer{buf}, 1024)
	return newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	}), aw
}

func closeWriter(t *testing.T, aw *lineWriter) {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", CompDialog)
	LogEvent(ctx, log, slog.LevelInfo, "dialog.step",
		slog.String("status", "ok"),
		slog.String("step", "origin"),
	)
	closeWriter(t, aw)

	tokens := strings.Split(strings.TrimSpace(buf.String()), " ")
	expected := []string{"ts=", "level=INFO", "component=dialog", "event=dialog.step", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%v)", len(tokens), tokens)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)
	ctx := WithRID(Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	log := slog.New(handler).With("component", CompFlights)
	LogEvent(ctx, log, slog.LevelError, "search.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)
	closeWriter(t, aw)

	line := strings.TrimSpace(buf.String())
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.flights"`, `"event":"search.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	rawRID := "123:456:789"
	LogEvent(WithRID(Background(), rawRID), slog.New(handler), slog.LevelInfo, "rid.test")
	closeWriter(t, aw)

	line := buf.String()
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)
	rawRID := "12:34:56"
	LogEvent(WithRID(Background(), rawRID), slog.New(handler), slog.LevelInfo, "rid.test")
	closeWriter(t, aw)

	line := buf.String()
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", line)
	}
}

func TestStructuredHandlerDialogAndDuration(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	ctx := WithDialogID(Background(), "d-1")
	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "search.done",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.String("outcome", "not-an-outcome"),
	)
	closeWriter(t, aw)

	line := buf.String()
	for _, want := range []string{"dialog_id=d-1", "duration_ms=2", "component=app"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unknown outcome should be dropped, got %s", line)
	}
}

func TestDebugRateCountsPerEvent(t *testing.T) {
	r := newDebugRate(1, 3)
	var updates, steps int
	for i := 0; i < 9; i++ {
		if r.Allow("update.received") {
			updates++
		}
	}
	for i := 0; i < 3; i++ {
		if r.Allow("dialog.step") {
			steps++
		}
	}
	if updates != 3 || steps != 1 {
		t.Fatalf("allowed updates=%d steps=%d, want 3 and 1", updates, steps)
	}

	r.Set(0, 0)
	if !r.Allow("update.received") {
		t.Fatal("disabled rate must pass everything")
	}

	for spec, want := range map[string][2]int{"2/5": {2, 5}, "10": {1, 10}, "x/5": {0, 0}, "": {0, 0}} {
		if k, w := parseRate(spec); k != want[0] || w != want[1] {
			t.Errorf("parseRate(%q) = %d/%d, want %d/%d", spec, k, w, want[0], want[1])
		}
	}
}

type brokenSink struct{}

func (brokenSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLineWriterRetiresFailingSink(t *testing.T) {
	buf := &bytes.Buffer{}
	lw := newLineWriter([]io.Writer{brokenSink{}, buf}, 16)
	for _, line := range []string{"one\n", "two\n"} {
		if err := lw.Write([]byte(line)); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
	}
	if err := lw.Flush(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("flush err = %v, want the sink error", err)
	}
	if err := lw.Close(); err == nil {
		t.Fatal("close must report the retired sink")
	}
	if buf.String() != "one\ntwo\n" {
		t.Fatalf("healthy sink got %q", buf.String())
	}
}

func TestLineWriterFailsWithoutSinks(t *testing.T) {
	lw := newLineWriter([]io.Writer{brokenSink{}}, 16)
	_ = lw.Write([]byte("lost\n"))
	_ = lw.Flush()
	if err := lw.Write([]byte("next\n")); err == nil || !strings.Contains(err.Error(), "all sinks failed") {
		t.Fatalf("err = %v", err)
	}
	_ = lw.Close()
}
