package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GlobalRoom is joined by every connection on open.
const GlobalRoom = "global"

const directRoomPrefix = "direct:"

// DirectRoomKey returns the room shared by a and b, independent of argument order.
func DirectRoomKey(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return directRoomPrefix + lo + ":" + hi
}

// IsDirectRoom reports whether room is a derived direct-message room.
func IsDirectRoom(room string) bool {
	return strings.HasPrefix(room, directRoomPrefix)
}

// ParseDirectRoomKey returns the two participants of a direct room key.
func ParseDirectRoomKey(room string) (uuid.UUID, uuid.UUID, error) {
	if !IsDirectRoom(room) {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %q is not a direct room", ErrValidation, room)
	}
	parts := strings.Split(strings.TrimPrefix(room, directRoomPrefix), ":")
	if len(parts) != 2 {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: malformed direct room %q", ErrValidation, room)
	}
	a, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: malformed direct room %q", ErrValidation, room)
	}
	b, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: malformed direct room %q", ErrValidation, room)
	}
	if DirectRoomKey(a, b) != room {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: non-canonical direct room %q", ErrValidation, room)
	}
	return a, b, nil
}

// CanJoin reports whether userID may subscribe to room. Direct rooms are
// restricted to their two participants.
func CanJoin(room string, userID uuid.UUID) error {
	if strings.TrimSpace(room) == "" {
		return fmt.Errorf("%w: room is required", ErrValidation)
	}
	if !IsDirectRoom(room) {
		return nil
	}
	a, b, err := ParseDirectRoomKey(room)
	if err != nil {
		return err
	}
	if userID != a && userID != b {
		return fmt.Errorf("%w: not a participant of %s", ErrValidation, room)
	}
	return nil
}
