package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"realtime-chat/internal/domain"
)

// TypingEntry is one user typing either in a room or privately to Target.
type TypingEntry struct {
	User   domain.Identity
	Room   string
	Target uuid.UUID
}

// Private reports whether the entry targets a single user.
func (e TypingEntry) Private() bool {
	return e.Target != uuid.Nil
}

type typingKey struct {
	userID uuid.UUID
	room   string
	target uuid.UUID
}

// TypingTracker remembers who is typing where so that stale indicators can be
// cancelled by the server after ttl. A zero ttl disables tracking.
type TypingTracker struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[typingKey]typingRecord
}

type typingRecord struct {
	entry   TypingEntry
	expires time.Time
}

func NewTypingTracker(ttl time.Duration) *TypingTracker {
	return &TypingTracker{
		ttl:     ttl,
		entries: make(map[typingKey]typingRecord),
	}
}

func keyOf(e TypingEntry) typingKey {
	return typingKey{userID: e.User.UserID, room: e.Room, target: e.Target}
}

// Set records the latest typing state for entry at now.
func (t *TypingTracker) Set(e TypingEntry, isTyping bool, now time.Time) {
	if t.ttl <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isTyping {
		delete(t.entries, keyOf(e))
		return
	}
	t.entries[keyOf(e)] = typingRecord{entry: e, expires: now.Add(t.ttl)}
}

// Expire removes and returns every entry whose ttl elapsed before now.
func (t *TypingTracker) Expire(now time.Time) []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []TypingEntry
	for k, rec := range t.entries {
		if !now.Before(rec.expires) {
			expired = append(expired, rec.entry)
			delete(t.entries, k)
		}
	}
	return expired
}

// ClearUser removes and returns every entry of userID.
func (t *TypingTracker) ClearUser(userID uuid.UUID) []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []TypingEntry
	for k, rec := range t.entries {
		if k.userID == userID {
			cleared = append(cleared, rec.entry)
			delete(t.entries, k)
		}
	}
	return cleared
}

func (t *TypingTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
