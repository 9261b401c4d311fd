package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-chat/internal/domain"
)

func TestTypingTracker(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	alice := domain.Identity{UserID: uuid.New(), Username: "alice"}
	bob := domain.Identity{UserID: uuid.New(), Username: "bob"}

	t.Run("refresh extends the deadline", func(t *testing.T) {
		tr := NewTypingTracker(5 * time.Second)
		e := TypingEntry{User: alice, Room: "global"}
		tr.Set(e, true, now)
		tr.Set(e, true, now.Add(4*time.Second))

		assert.Empty(t, tr.Expire(now.Add(6*time.Second)))
		expired := tr.Expire(now.Add(9 * time.Second))
		require.Len(t, expired, 1)
		assert.Equal(t, e, expired[0])
		assert.Equal(t, 0, tr.Len())
	})

	t.Run("explicit stop forgets the entry", func(t *testing.T) {
		tr := NewTypingTracker(5 * time.Second)
		e := TypingEntry{User: alice, Target: bob.UserID}
		tr.Set(e, true, now)
		tr.Set(e, false, now)
		assert.Equal(t, 0, tr.Len())
		assert.True(t, e.Private())
	})

	t.Run("clear user keeps others", func(t *testing.T) {
		tr := NewTypingTracker(5 * time.Second)
		tr.Set(TypingEntry{User: alice, Room: "global"}, true, now)
		tr.Set(TypingEntry{User: alice, Room: "go"}, true, now)
		tr.Set(TypingEntry{User: bob, Room: "global"}, true, now)

		assert.Len(t, tr.ClearUser(alice.UserID), 2)
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("zero ttl disables tracking", func(t *testing.T) {
		tr := NewTypingTracker(0)
		tr.Set(TypingEntry{User: alice, Room: "global"}, true, now)
		assert.Equal(t, 0, tr.Len())
	})
}
