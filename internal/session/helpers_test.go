package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/event"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/repository"
	"realtime-chat/internal/service"
)

var connSeq atomic.Int64

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("conn-%d", connSeq.Add(1))}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hub.ErrClosed
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// events returns every received envelope named name, in arrival order.
func (c *fakeConn) events(t *testing.T, name string) []event.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []event.Envelope
	for _, f := range c.frames {
		var env event.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fakeVerifier struct {
	mu     sync.Mutex
	tokens map[string]domain.Identity
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id, ok := v.tokens[token]
	if !ok {
		return nil, fmt.Errorf("unknown token: %w", domain.ErrAuthentication)
	}
	return &id, nil
}

type fixture struct {
	coord    *Coordinator
	users    service.UserService
	messages service.MessageService
	presence *hub.Presence
	rooms    *hub.Rooms
	verifier *fakeVerifier
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Message{},
		&domain.MessageReaction{},
		&domain.MessageRead{},
	))
	return db
}

// newFixture builds a coordinator over an in-memory store. opts may swap
// collaborators before the coordinator is created.
func newFixture(t *testing.T, typing *TypingTracker, opts ...func(*Config)) *fixture {
	db := setupTestDB(t)
	logger := zap.NewNop()
	f := &fixture{
		users:    service.NewUserService(repository.NewUserRepository(db), logger),
		messages: service.NewMessageService(repository.NewMessageRepository(db), logger),
		presence: hub.NewPresence(),
		rooms:    hub.NewRooms(),
		verifier: &fakeVerifier{tokens: make(map[string]domain.Identity)},
	}
	cfg := Config{
		Verifier: f.verifier,
		Users:    f.users,
		Messages: f.messages,
		Presence: f.presence,
		Rooms:    f.rooms,
		Typing:   typing,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.coord = NewCoordinator(cfg)
	return f
}

// failingMessages fails or panics on Send and delegates everything else.
type failingMessages struct {
	service.MessageService
	panics bool
}

func (m failingMessages) Send(ctx context.Context, in service.SendInput) (*domain.Message, error) {
	if m.panics {
		panic("store exploded")
	}
	return nil, fmt.Errorf("failed to create message: %w", domain.ErrPersistence)
}

// gatedUsers blocks TouchLastSeen until release is closed.
type gatedUsers struct {
	service.UserService
	entered chan struct{}
	release chan struct{}
}

func (u *gatedUsers) TouchLastSeen(ctx context.Context, userID uuid.UUID) error {
	select {
	case u.entered <- struct{}{}:
	default:
	}
	<-u.release
	return u.UserService.TouchLastSeen(ctx, userID)
}

// user creates a stored user and a token for it; the token is its name.
func (f *fixture) user(t *testing.T, name string) domain.Identity {
	t.Helper()
	u, err := f.users.Login(context.Background(), name)
	require.NoError(t, err)
	f.verifier.mu.Lock()
	f.verifier.tokens[name] = u.Identity()
	f.verifier.mu.Unlock()
	return u.Identity()
}

func (f *fixture) connect(t *testing.T, name string) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	s, err := f.coord.Open(context.Background(), conn, name)
	require.NoError(t, err)
	return s, conn
}

func envelope(t *testing.T, name string, data any, ack int64) event.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env := event.Envelope{Event: name, Data: raw}
	if ack > 0 {
		env.Ack = &ack
	}
	return env
}

func decodeAck(t *testing.T, env event.Envelope) event.AckPayload {
	t.Helper()
	var ack event.AckPayload
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	return ack
}
