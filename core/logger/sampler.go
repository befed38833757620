package logger

import (
	"strconv"
	"strings"
	"sync"
)

// debugRate passes keep out of every window debug events, counted per
// event name so a chatty event cannot starve a quiet one.
type debugRate struct {
	mu     sync.Mutex
	keep   int
	window int
	seen   map[string]int
}

func newDebugRate(keep, window int) *debugRate {
	r := &debugRate{}
	r.Set(keep, window)
	return r
}

// Set replaces the rate and resets all counters. A non-positive value in
// either place turns sampling off, so everything passes.
func (r *debugRate) Set(keep, window int) {
	if keep <= 0 || window <= 0 {
		keep, window = 0, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keep = min(keep, window)
	r.window = window
	r.seen = make(map[string]int)
}

// Allow counts one occurrence of event. The first keep occurrences of each
// window pass.
func (r *debugRate) Allow(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.window == 0 {
		return true
	}
	n := r.seen[event] % r.window
	r.seen[event] = n + 1
	return n < r.keep
}

// parseRate reads LOG_DEBUG_SAMPLE: "keep/window", or "window" for 1/window.
// Anything else yields 0, 0.
func parseRate(spec string) (keep, window int) {
	spec = strings.TrimSpace(spec)
	k, w, ratio := strings.Cut(spec, "/")
	if !ratio {
		if v, err := strconv.Atoi(spec); err == nil && v > 0 {
			return 1, v
		}
		return 0, 0
	}
	keep, err := strconv.Atoi(strings.TrimSpace(k))
	if err != nil {
		return 0, 0
	}
	window, err = strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0
	}
	return keep, window
}
