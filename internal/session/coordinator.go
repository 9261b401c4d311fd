// Package session runs the per-connection state machine of the chat server:
// it authenticates a new connection, registers it with the hub, routes its
// inbound events and tears it down exactly once.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/domain"
	"realtime-chat/internal/event"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/service"
)

const (
	authErrorText    = "Authentication error"
	serverErrorText  = "Server error"
	shuttingDownText = "Server shutting down"
)

// ErrShuttingDown is returned by Open once Shutdown has been called.
var ErrShuttingDown = errors.New("session: coordinator shutting down")

// Transport is the duplex connection a session runs on.
type Transport interface {
	hub.Conn
	Close() error
}

// Config wires a Coordinator. Presence, Rooms and Typing default to empty
// tables; Mirror and Metrics may be nil. The caller starts and stops Mirror.
type Config struct {
	Verifier     auth.Verifier
	Users        service.UserService
	Messages     service.MessageService
	Presence     *hub.Presence
	Rooms        *hub.Rooms
	Typing       *TypingTracker
	Mirror       *service.PresenceMirror
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	HistoryLimit int
}

type Coordinator struct {
	verifier     auth.Verifier
	users        service.UserService
	messages     service.MessageService
	presence     *hub.Presence
	rooms        *hub.Rooms
	typing       *TypingTracker
	mirror       *service.PresenceMirror
	metrics      *metrics.Metrics
	logger       *zap.Logger
	historyLimit int
	now          func() time.Time

	mu           sync.Mutex
	sessions     map[string]*Session
	shuttingDown bool
}

func NewCoordinator(cfg Config) *Coordinator {
	c := &Coordinator{
		verifier:     cfg.Verifier,
		users:        cfg.Users,
		messages:     cfg.Messages,
		presence:     cfg.Presence,
		rooms:        cfg.Rooms,
		typing:       cfg.Typing,
		mirror:       cfg.Mirror,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		historyLimit: cfg.HistoryLimit,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
	if c.presence == nil {
		c.presence = hub.NewPresence()
	}
	if c.rooms == nil {
		c.rooms = hub.NewRooms()
	}
	if c.typing == nil {
		c.typing = NewTypingTracker(0)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.historyLimit <= 0 || c.historyLimit > service.MaxHistory {
		c.historyLimit = service.MaxHistory
	}

	c.presence.OnTransition(c.announce)
	return c
}

// Open authenticates conn with token and brings the session to Active.
// On failure the caller receives one error event, conn is closed and a
// nil session is returned.
func (c *Coordinator) Open(ctx context.Context, conn Transport, token string) (*Session, error) {
	s := &Session{
		coord:  c,
		conn:   conn,
		state:  StateConnecting,
		rooms:  make(map[string]struct{}),
		logger: c.logger.With(zap.String("connId", conn.ID())),
	}

	identity, err := c.verifier.Verify(ctx, token)
	if err != nil {
		c.metrics.RecordAuthFailure()
		s.logger.Info("Rejected connection", zap.Error(err))
		s.reject(authErrorText)
		return nil, err
	}

	user, err := c.users.FindOrCreate(ctx, *identity)
	if err != nil {
		s.logger.Error("Failed to resolve connecting user", zap.Error(err))
		s.reject(serverErrorText)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user.Identity()
	s.logger = s.logger.With(zap.String("userId", s.user.UserID.String()))
	s.state = StateAuthenticated

	if !c.register(s) {
		s.reject(shuttingDownText)
		return nil, ErrShuttingDown
	}
	c.metrics.RecordConnectionOpened()

	c.presence.AddConnection(s.user, conn)
	s.join(domain.GlobalRoom)
	s.sendSnapshot(ctx, domain.GlobalRoom)

	s.state = StateActive
	s.logger.Info("Session opened", zap.String("username", s.user.Username))
	return s, nil
}

// announce runs under the presence shard lock of the user, so transitions
// of one user reach the mirror queue in the order they happened.
func (c *Coordinator) announce(t hub.Transition) {
	c.mirror.Enqueue(t.User, t.Online, c.now())

	name := event.UserOffline
	if t.Online {
		name = event.UserOnline
	}
	frame, err := event.Encode(name, event.ToUserPresence(t.User))
	if err != nil {
		c.logger.Error("Failed to encode presence event", zap.Error(err))
		return
	}
	res := c.presence.Broadcast(frame)
	c.metrics.RecordDropped(res.Dropped)
}

func (c *Coordinator) register(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shuttingDown {
		return false
	}
	c.sessions[s.conn.ID()] = s
	return true
}

func (c *Coordinator) unregister(s *Session) {
	c.mu.Lock()
	delete(c.sessions, s.conn.ID())
	c.mu.Unlock()
}

// SessionCount returns the number of open sessions.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// ExpireTyping cancels typing indicators older than the tracker ttl and
// returns how many were cancelled.
func (c *Coordinator) ExpireTyping(now time.Time) int {
	expired := c.typing.Expire(now)
	for _, e := range expired {
		c.emitTyping(e, false)
	}
	return len(expired)
}

// Shutdown refuses new sessions and closes every open one.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.shuttingDown = true
	open := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		open = append(open, s)
	}
	c.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	c.logger.Info("Closed all sessions", zap.Int("count", len(open)))
}

func (c *Coordinator) emitTyping(e TypingEntry, isTyping bool) {
	payload := event.TypingUpdatePayload{
		UserID:   e.User.UserID.String(),
		Username: e.User.Username,
		IsTyping: isTyping,
	}
	if e.Private() {
		payload.Private = true
	} else {
		payload.Room = e.Room
	}
	frame, err := event.Encode(event.TypingUpdate, payload)
	if err != nil {
		c.logger.Error("Failed to encode typing update", zap.Error(err))
		return
	}

	var res hub.PublishResult
	if e.Private() {
		res = c.presence.SendToUser(e.Target, frame)
	} else {
		res = c.rooms.Broadcast(e.Room, frame, nil)
	}
	c.metrics.RecordDropped(res.Dropped)
}
