package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"realtime-chat/internal/domain"
)

const (
	presenceOnlineKey   = "chat:presence:online"   // hash userId -> username
	presenceLastSeenKey = "chat:presence:lastseen" // hash userId -> RFC3339 time
	presenceChannel     = "chat:presence"
)

const mirrorWriteTimeout = 5 * time.Second

// PresenceMirror publishes online/offline changes to Redis so that other
// services can read who is connected to this chat server. It never feeds
// back into the in-process registry. A nil mirror is a no-op.
//
// Transitions passed to Enqueue are written by a single worker in the order
// they were enqueued.
type PresenceMirror struct {
	redis  *redis.Client
	logger *zap.Logger

	mu       sync.Mutex
	queue    []presenceUpdate
	stopping bool
	wake     chan struct{}
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
}

type presenceUpdate struct {
	user   domain.Identity
	online bool
	at     time.Time
}

func NewPresenceMirror(redis *redis.Client, logger *zap.Logger) *PresenceMirror {
	if redis == nil {
		return nil
	}
	return &PresenceMirror{
		redis:  redis,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue records a presence transition without blocking on Redis. It is
// safe to call while holding the presence registry lock.
func (m *PresenceMirror) Enqueue(user domain.Identity, online bool, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, presenceUpdate{user: user, online: online, at: at})
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start runs the worker that applies queued transitions.
func (m *PresenceMirror) Start() {
	if m == nil {
		return
	}
	m.start.Do(func() { go m.run() })
}

// Stop refuses new transitions, applies the queued ones and waits for the
// worker to exit.
func (m *PresenceMirror) Stop() {
	if m == nil {
		return
	}
	m.Start()
	m.stop.Do(func() {
		m.mu.Lock()
		m.stopping = true
		m.mu.Unlock()
		select {
		case m.wake <- struct{}{}:
		default:
		}
	})
	<-m.done
}

func (m *PresenceMirror) run() {
	defer close(m.done)
	for {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		stopping := m.stopping
		m.mu.Unlock()

		for _, u := range batch {
			m.apply(u)
		}
		if len(batch) > 0 {
			continue
		}
		if stopping {
			return
		}
		<-m.wake
	}
}

func (m *PresenceMirror) apply(u presenceUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()
	if u.online {
		m.MarkOnline(ctx, u.user)
	} else {
		m.MarkOffline(ctx, u.user, u.at)
	}
}

type presenceNotice struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (m *PresenceMirror) MarkOnline(ctx context.Context, user domain.Identity) {
	if m == nil {
		return
	}
	if err := m.redis.HSet(ctx, presenceOnlineKey, user.UserID.String(), user.Username).Err(); err != nil {
		m.logger.Error("failed to mirror user online", zap.String("userId", user.UserID.String()), zap.Error(err))
		return
	}
	m.publish(ctx, "user:online", user)
}

func (m *PresenceMirror) MarkOffline(ctx context.Context, user domain.Identity, lastSeen time.Time) {
	if m == nil {
		return
	}
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, presenceOnlineKey, user.UserID.String())
		pipe.HSet(ctx, presenceLastSeenKey, user.UserID.String(), lastSeen.UTC().Format(time.RFC3339))
		return nil
	})
	if err != nil {
		m.logger.Error("failed to mirror user offline", zap.String("userId", user.UserID.String()), zap.Error(err))
		return
	}
	m.publish(ctx, "user:offline", user)
}

// Sync replaces the mirrored online set with users.
func (m *PresenceMirror) Sync(ctx context.Context, users []domain.Identity) error {
	if m == nil {
		return nil
	}
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, presenceOnlineKey)
		if len(users) == 0 {
			return nil
		}
		values := make([]interface{}, 0, len(users)*2)
		for _, u := range users {
			values = append(values, u.UserID.String(), u.Username)
		}
		pipe.HSet(ctx, presenceOnlineKey, values...)
		return nil
	})
	return err
}

// OnlineUserIDs reads the mirrored online set.
func (m *PresenceMirror) OnlineUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	if m == nil {
		return nil, nil
	}
	keys, err := m.redis.HKeys(ctx, presenceOnlineKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(keys))
	for _, k := range keys {
		if id, err := uuid.Parse(k); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *PresenceMirror) publish(ctx context.Context, kind string, user domain.Identity) {
	data, err := json.Marshal(presenceNotice{
		Type:     kind,
		UserID:   user.UserID.String(),
		Username: user.Username,
	})
	if err != nil {
		m.logger.Error("failed to marshal presence notice", zap.Error(err))
		return
	}
	if err := m.redis.Publish(ctx, presenceChannel, data).Err(); err != nil {
		m.logger.Error("failed to publish presence notice", zap.Error(err))
	}
}
