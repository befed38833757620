package dialog

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionTTL bounds how long an idle dialog is kept.
const DefaultSessionTTL = 30 * time.Minute

type entry struct {
	mu      sync.Mutex
	session *Session
}

// Store keeps at most one session per user. Each user has a separate lock so
// different users never wait on each other.
type Store struct {
	mu       sync.Mutex
	entries  map[int64]*entry
	ttl      time.Duration
	now      func() time.Time
	onExpire func(Session)
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithTTL sets the idle timeout; zero or negative disables expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithExpireHook is called, outside any lock, for every expired session.
func WithExpireHook(fn func(Session)) StoreOption {
	return func(s *Store) { s.onExpire = fn }
}

// NewStore returns an empty store with DefaultSessionTTL.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{entries: make(map[int64]*entry), ttl: DefaultSessionTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slot is exclusive access to one user's session until Release.
type Slot struct {
	store   *Store
	userID  int64
	e       *entry
	expired *Session
}

// Acquire blocks until the caller holds userID's slot.
func (s *Store) Acquire(userID int64) *Slot {
	for {
		s.mu.Lock()
		e := s.entries[userID]
		if e == nil {
			e = &entry{}
			s.entries[userID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		s.mu.Lock()
		current := s.entries[userID] == e
		s.mu.Unlock()
		if current {
			return &Slot{store: s, userID: userID, e: e}
		}
		// Swept while we waited; take the fresh entry.
		e.mu.Unlock()
	}
}

// Session returns a copy of the held session. An idle-expired session is
// dropped here and reported as absent.
func (sl *Slot) Session() (Session, bool) {
	cur := sl.e.session
	if cur == nil {
		return Session{}, false
	}
	if sl.store.expired(*cur, sl.store.now()) {
		expired := cur.Clone()
		sl.expired = &expired
		sl.e.session = nil
		return Session{}, false
	}
	return cur.Clone(), true
}

// Put stores sess as the user's session.
func (sl *Slot) Put(sess Session) {
	c := sess.Clone()
	sl.e.session = &c
}

// Drop removes the user's session.
func (sl *Slot) Drop() {
	sl.e.session = nil
}

// Release gives the slot back. Empty entries are removed from the store.
func (sl *Slot) Release() {
	st := sl.store
	if sl.e.session == nil {
		st.mu.Lock()
		if st.entries[sl.userID] == sl.e {
			delete(st.entries, sl.userID)
		}
		st.mu.Unlock()
	}
	expired := sl.expired
	sl.e.mu.Unlock()
	if expired != nil && st.onExpire != nil {
		st.onExpire(*expired)
	}
}

func (s *Store) expired(sess Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}

// Len reports how many users hold a slot or a session.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops every idle-expired session and returns how many were removed.
// Slots currently held are skipped and checked on the next sweep.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	candidates := make(map[int64]*entry, len(s.entries))
	for id, e := range s.entries {
		candidates[id] = e
	}
	s.mu.Unlock()

	var expired []Session
	for id, e := range candidates {
		if !e.mu.TryLock() {
			continue
		}
		if e.session != nil && s.expired(*e.session, now) {
			expired = append(expired, e.session.Clone())
			e.session = nil
		}
		if e.session == nil {
			s.mu.Lock()
			if s.entries[id] == e {
				delete(s.entries, id)
			}
			s.mu.Unlock()
		}
		e.mu.Unlock()
	}

	if s.onExpire != nil {
		for _, sess := range expired {
			s.onExpire(sess)
		}
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep()
		}
	}
}
