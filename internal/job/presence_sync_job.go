package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"realtime-chat/internal/domain"
)

type OnlineLister interface {
	OnlineUsers() []domain.Identity
}

type PresenceSyncer interface {
	Sync(ctx context.Context, users []domain.Identity) error
}

// PresenceSyncJob rewrites the Redis presence mirror from the in-memory
// registry, repairing drift left by failed mirror writes.
type PresenceSyncJob struct {
	presence OnlineLister
	mirror   PresenceSyncer
	logger   *zap.Logger
	timeout  time.Duration
}

func NewPresenceSyncJob(presence OnlineLister, mirror PresenceSyncer, logger *zap.Logger) *PresenceSyncJob {
	return &PresenceSyncJob{
		presence: presence,
		mirror:   mirror,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

func (j *PresenceSyncJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	users := j.presence.OnlineUsers()
	if err := j.mirror.Sync(ctx, users); err != nil {
		j.logger.Error("Failed to sync presence mirror", zap.Error(err))
		return
	}
	j.logger.Debug("Presence mirror synced", zap.Int("online", len(users)))
}
