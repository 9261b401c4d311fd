package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/event"
	"realtime-chat/internal/service"
)

// State of a session. Transitions only move forward.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// event outcomes for metrics
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeFailed   = "failed"
	outcomePanic    = "panic"
)

// Session is one authenticated connection. Its handlers run one at a time
// under mu, and teardown takes the same lock.
type Session struct {
	coord  *Coordinator
	conn   Transport
	logger *zap.Logger

	mu    sync.Mutex
	state State
	user  domain.Identity
	rooms map[string]struct{}

	closeOnce sync.Once
}

func (s *Session) User() domain.Identity {
	return s.user
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Rooms returns the rooms the session is subscribed to.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// HandleFrame decodes and handles one raw inbound frame.
func (s *Session) HandleFrame(ctx context.Context, frame []byte) {
	env, err := event.Decode(frame)
	if err != nil {
		s.logger.Debug("Dropped malformed frame", zap.Error(err))
		return
	}
	s.Handle(ctx, env)
}

// Handle routes one inbound event. Events arriving after teardown began
// are dropped.
func (s *Session) Handle(ctx context.Context, env event.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in event handler",
				zap.String("event", env.Event),
				zap.Any("panic", r))
			s.coord.metrics.RecordEvent(env.Event, outcomePanic)
			s.answer(env, event.AckPayload{Status: event.StatusError})
		}
	}()

	var (
		ack event.AckPayload
		err error
	)
	switch env.Event {
	case event.JoinRoom:
		err = s.joinRoom(ctx, env)
	case event.LeaveRoom:
		err = s.leaveRoom(env)
	case event.SendMessage:
		ack, err = s.sendMessage(ctx, env)
	case event.Typing:
		err = s.typing(env)
	case event.ReadMessages:
		err = s.markRead(ctx, env)
	case event.React:
		err = s.react(ctx, env)
	default:
		s.logger.Debug("Ignoring unknown event", zap.String("event", env.Event))
		return
	}
	s.finish(env, ack, err)
}

// finish applies the error policy to a handler result and answers the ack.
func (s *Session) finish(env event.Envelope, ack event.AckPayload, err error) {
	outcome := outcomeOK
	switch {
	case err == nil:
		if ack.Status == "" {
			ack.Status = event.StatusOK
		}
	case errors.Is(err, domain.ErrValidation):
		outcome = outcomeInvalid
		s.logger.Debug("Rejected event", zap.String("event", env.Event), zap.Error(err))
		ack = event.AckPayload{Status: event.StatusError, Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		outcome = outcomeNotFound
		s.logger.Debug("Event target not found", zap.String("event", env.Event), zap.Error(err))
		ack = event.AckPayload{Status: event.StatusOK}
	default:
		outcome = outcomeFailed
		s.logger.Error("Failed to handle event", zap.String("event", env.Event), zap.Error(err))
		ack = event.AckPayload{Status: event.StatusError}
	}
	s.coord.metrics.RecordEvent(env.Event, outcome)
	s.answer(env, ack)
}

// answer sends ack if the client asked for one.
func (s *Session) answer(env event.Envelope, ack event.AckPayload) {
	if env.Ack == nil {
		return
	}
	frame, err := event.EncodeAck(*env.Ack, ack)
	if err != nil {
		s.logger.Error("Failed to encode ack", zap.Error(err))
		return
	}
	s.deliver(frame)
}

func bind(env event.Envelope, v any) error {
	if err := env.Bind(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// resolveRoom defaults an empty room to global and keeps callers out of
// direct rooms they are not part of.
func (s *Session) resolveRoom(room string) (string, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return domain.GlobalRoom, nil
	}
	if err := domain.CanJoin(room, s.user.UserID); err != nil {
		return "", err
	}
	return room, nil
}

func parseTarget(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: invalid toUserId %q", domain.ErrValidation, raw)
	}
	return id, nil
}

func (s *Session) joinRoom(ctx context.Context, env event.Envelope) error {
	var p event.RoomPayload
	if err := bind(env, &p); err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)
	if err := domain.CanJoin(room, s.user.UserID); err != nil {
		return err
	}

	s.join(room)
	s.sendSnapshot(ctx, room)
	s.broadcast(room, event.System, event.SystemPayload{
		Text: fmt.Sprintf("%s joined %s", s.user.Username, room),
		Room: room,
	})
	return nil
}

func (s *Session) leaveRoom(env event.Envelope) error {
	var p event.RoomPayload
	if err := bind(env, &p); err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)
	if room == "" {
		return fmt.Errorf("%w: room is required", domain.ErrValidation)
	}

	s.coord.rooms.Leave(room, s.conn)
	delete(s.rooms, room)
	s.broadcast(room, event.System, event.SystemPayload{
		Text: fmt.Sprintf("%s left %s", s.user.Username, room),
		Room: room,
	})
	return nil
}

func (s *Session) sendMessage(ctx context.Context, env event.Envelope) (event.AckPayload, error) {
	var p event.SendMessagePayload
	if err := bind(env, &p); err != nil {
		return event.AckPayload{}, err
	}

	kind := "room"
	var room string
	if p.ToUserID != "" {
		target, err := parseTarget(p.ToUserID)
		if err != nil {
			return event.AckPayload{}, err
		}
		room = domain.DirectRoomKey(s.user.UserID, target)
		kind = "direct"
	} else {
		var err error
		if room, err = s.resolveRoom(p.Room); err != nil {
			return event.AckPayload{}, err
		}
	}

	msg, err := s.coord.messages.Send(ctx, service.SendInput{
		SenderID: s.user.UserID,
		Room:     room,
		Content:  p.Content,
		Type:     domain.MessageType(p.Type),
	})
	if err != nil {
		return event.AckPayload{}, err
	}
	s.coord.metrics.RecordMessageSent(kind)

	s.broadcast(msg.Room, event.MessageNew, event.ToMessageView(msg))
	return event.AckPayload{Status: event.StatusOK, MessageID: msg.ID.String()}, nil
}

func (s *Session) typing(env event.Envelope) error {
	var p event.TypingPayload
	if err := bind(env, &p); err != nil {
		return err
	}

	entry := TypingEntry{User: s.user}
	if p.ToUserID != "" {
		target, err := parseTarget(p.ToUserID)
		if err != nil {
			return err
		}
		entry.Target = target
	} else {
		room, err := s.resolveRoom(p.Room)
		if err != nil {
			return err
		}
		entry.Room = room
	}

	s.coord.typing.Set(entry, p.IsTyping, s.coord.now())
	s.coord.emitTyping(entry, p.IsTyping)
	return nil
}

func (s *Session) markRead(ctx context.Context, env event.Envelope) error {
	var p event.ReadMessagesPayload
	if err := bind(env, &p); err != nil {
		return err
	}
	room, err := s.resolveRoom(p.Room)
	if err != nil {
		return err
	}
	if len(p.MessageIDs) == 0 {
		return nil
	}

	added, err := s.coord.messages.MarkRead(ctx, p.MessageIDs, s.user.UserID)
	if err != nil {
		return err
	}
	s.logger.Debug("Marked messages read", zap.Int64("added", added), zap.String("room", room))

	s.broadcast(room, event.MessagesRead, event.MessagesReadPayload{
		MessageIDs: p.MessageIDs,
		UserID:     s.user.UserID.String(),
	})
	return nil
}

func (s *Session) react(ctx context.Context, env event.Envelope) error {
	var p event.ReactionPayload
	if err := bind(env, &p); err != nil {
		return err
	}

	msg, err := s.coord.messages.React(ctx, p.MessageID, s.user.UserID, p.Reaction)
	if err != nil {
		return err
	}

	s.broadcast(msg.Room, event.MessageReaction, event.MessageReactionPayload{
		MessageID: msg.ID.String(),
		Reaction:  p.Reaction,
		UserID:    s.user.UserID.String(),
	})
	return nil
}

func (s *Session) join(room string) {
	s.coord.rooms.Join(room, s.conn)
	s.rooms[room] = struct{}{}
}

// sendSnapshot delivers the recent history of room to this connection only.
// A store failure is logged and an empty snapshot is sent.
func (s *Session) sendSnapshot(ctx context.Context, room string) {
	messages, err := s.coord.messages.Recent(ctx, room, s.coord.historyLimit)
	if err != nil {
		s.logger.Error("Failed to load room history", zap.String("room", room), zap.Error(err))
		messages = nil
	}
	s.send(event.MessagesInit, event.ToMessageViews(messages))
}

func (s *Session) send(name string, data any) {
	frame, err := event.Encode(name, data)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}
	s.deliver(frame)
}

func (s *Session) deliver(frame []byte) {
	if err := s.conn.Send(frame); err != nil {
		s.logger.Debug("Dropped outbound frame", zap.Error(err))
		s.coord.metrics.RecordDropped(1)
	}
}

func (s *Session) broadcast(room, name string, data any) {
	frame, err := event.Encode(name, data)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}
	res := s.coord.rooms.Broadcast(room, frame, nil)
	s.coord.metrics.RecordDropped(res.Dropped)
}

// reject sends the one error event of a failed open and closes the transport.
func (s *Session) reject(text string) {
	s.state = StateClosed
	s.send(event.Error, text)
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("Failed to close rejected connection", zap.Error(err))
	}
}

// Close tears the session down. It is safe to call from any goroutine and
// any number of times; only the first call has an effect.
func (s *Session) Close() {
	s.closeOnce.Do(s.teardown)
}

func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coord
	s.state = StateClosed
	for room := range s.rooms {
		c.rooms.Leave(room, s.conn)
	}
	s.rooms = map[string]struct{}{}
	c.unregister(s)
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("Failed to close transport", zap.Error(err))
	}
	c.metrics.RecordConnectionClosed()

	if !c.presence.RemoveConnection(s.user.UserID, s.conn) {
		s.logger.Info("Session closed")
		return
	}

	ctx := context.Background()
	for _, e := range c.typing.ClearUser(s.user.UserID) {
		c.emitTyping(e, false)
	}
	if err := c.users.TouchLastSeen(ctx, s.user.UserID); err != nil {
		s.logger.Error("Failed to persist last seen", zap.Error(err))
	}
	s.logger.Info("Session closed, user offline")
}
