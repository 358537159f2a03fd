package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one live pending notification in the index.
type Entry struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ScheduledFor time.Time
}

// Index orders live pending notifications by (scheduled_for, id) for the
// dispatcher's due-scan and the command surface's day-window queries.
//
// The index only ever contains rows with status pending and deleted_at NULL;
// the store republishes on every write, and `active=false` upserts (sent,
// cancelled, deleted, claimed) drop the entry. Correctness of dispatch does
// not depend on index freshness: the conditional claim in the store is the
// serialization point, and the reconcile loop repairs any drift.
type Index struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

// NewIndex builds an empty schedule index.
func NewIndex() *Index {
	return &Index{entries: make(map[uuid.UUID]Entry)}
}

// Upsert inserts or moves an entry. active=false removes it, which is how
// store-side state changes propagate.
func (i *Index) Upsert(entry Entry, active bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !active {
		delete(i.entries, entry.ID)
		return
	}
	i.entries[entry.ID] = entry
}

// Remove drops an entry regardless of its state.
func (i *Index) Remove(id uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, id)
}

// Load replaces the index contents wholesale. Used at startup and by the
// reconcile loop.
func (i *Index) Load(entries []Entry) {
	fresh := make(map[uuid.UUID]Entry, len(entries))
	for _, entry := range entries {
		fresh[entry.ID] = entry
	}
	i.mu.Lock()
	i.entries = fresh
	i.mu.Unlock()
}

// DueBefore returns entries scheduled at or before the instant, ascending by
// (scheduled_for, id). The id tie-break keeps processing order deterministic.
// limit <= 0 means no limit.
func (i *Index) DueBefore(instant time.Time, limit int) []Entry {
	i.mu.RLock()
	due := make([]Entry, 0)
	for _, entry := range i.entries {
		if !entry.ScheduledFor.After(instant) {
			due = append(due, entry)
		}
	}
	i.mu.RUnlock()

	sortEntries(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// Between returns a user's entries with from <= scheduled_for < to, ascending.
func (i *Index) Between(userID uuid.UUID, from, to time.Time) []Entry {
	i.mu.RLock()
	window := make([]Entry, 0)
	for _, entry := range i.entries {
		if entry.UserID != userID {
			continue
		}
		if entry.ScheduledFor.Before(from) || !entry.ScheduledFor.Before(to) {
			continue
		}
		window = append(window, entry)
	}
	i.mu.RUnlock()

	sortEntries(window)
	return window
}

// Len reports how many live pending entries the index holds.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].ScheduledFor.Equal(entries[b].ScheduledFor) {
			return entries[a].ID.String() < entries[b].ID.String()
		}
		return entries[a].ScheduledFor.Before(entries[b].ScheduledFor)
	})
}
