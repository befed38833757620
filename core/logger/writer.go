package logger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
)

// logItem is either a line to write or, when ack is set, a flush barrier.
type logItem struct {
	line []byte
	ack  chan error
}

type lineSink struct {
	buf *bufio.Writer
	err error
}

// lineWriter serialises log lines onto its sinks from one goroutine. A sink
// that fails is retired; the writer keeps serving the others.
type lineWriter struct {
	items  chan logItem
	done   chan struct{}
	closed sync.Once

	mu    sync.Mutex
	sinks []*lineSink
	live  int
}

func newLineWriter(writers []io.Writer, bufSize int) *lineWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	lw := &lineWriter{
		items: make(chan logItem, 256),
		done:  make(chan struct{}),
	}
	for _, w := range writers {
		if w != nil {
			lw.sinks = append(lw.sinks, &lineSink{buf: bufio.NewWriterSize(w, bufSize)})
		}
	}
	lw.live = len(lw.sinks)
	go lw.run()
	return lw
}

func (w *lineWriter) run() {
	defer close(w.done)
	for it := range w.items {
		if it.ack != nil {
			it.ack <- w.flush()
			continue
		}
		w.write(it.line)
	}
	_ = w.flush()
}

// Write queues a copy of p. It blocks on a full queue and fails once every
// sink has been retired.
func (w *lineWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := w.deadErr(); err != nil {
		return err
	}
	w.items <- logItem{line: append([]byte(nil), p...)}
	return nil
}

// Flush returns once every line queued before it reached the sinks.
func (w *lineWriter) Flush() error {
	ack := make(chan error, 1)
	w.items <- logItem{ack: ack}
	return <-ack
}

// Close drains the queue and joins the errors of retired sinks.
func (w *lineWriter) Close() error {
	w.closed.Do(func() { close(w.items) })
	<-w.done
	return w.sinkErrs()
}

func (w *lineWriter) write(line []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if s.err != nil {
			continue
		}
		if _, err := s.buf.Write(line); err != nil {
			w.retire(s, err)
			continue
		}
		if err := s.buf.Flush(); err != nil {
			w.retire(s, err)
		}
	}
}

func (w *lineWriter) flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if s.err == nil {
			if err := s.buf.Flush(); err != nil {
				w.retire(s, err)
			}
		}
	}
	return w.sinkErrsLocked()
}

func (w *lineWriter) retire(s *lineSink, err error) {
	s.err = err
	w.live--
}

func (w *lineWriter) deadErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.live > 0 || len(w.sinks) == 0 {
		return nil
	}
	return fmt.Errorf("logger: all sinks failed: %w", w.sinkErrsLocked())
}

func (w *lineWriter) sinkErrs() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sinkErrsLocked()
}

func (w *lineWriter) sinkErrsLocked() error {
	var errs []error
	for _, s := range w.sinks {
		if s.err != nil {
			errs = append(errs, s.err)
		}
	}
	return errors.Join(errs...)
}
