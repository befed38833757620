package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps entries in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	byUser map[int64][]Entry
	now    func() time.Time
}

// NewMemoryRepository returns an empty repository. now defaults to time.Now.
func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{byUser: make(map[int64][]Entry), now: now}
}

// Append implements Repository.
func (r *MemoryRepository) Append(_ context.Context, userID int64, command string, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.byUser[userID]
	evicted := false
	if limit > 0 && len(entries) >= limit {
		sortEntries(entries)
		entries = append(entries[:0:0], entries[len(entries)-limit+1:]...)
		evicted = true
	}
	r.nextID++
	entries = append(entries, Entry{ID: r.nextID, UserID: userID, Command: command, CreatedAt: r.now()})
	r.byUser[userID] = entries
	return evicted, nil
}

// List implements Repository.
func (r *MemoryRepository) List(_ context.Context, userID int64) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Entry(nil), r.byUser[userID]...)
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
