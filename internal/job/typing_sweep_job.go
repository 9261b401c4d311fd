package job

import (
	"time"

	"go.uber.org/zap"
)

// TypingExpirer cancels typing indicators older than its ttl.
type TypingExpirer interface {
	ExpireTyping(now time.Time) int
}

// TypingSweepJob cancels stale typing indicators of clients that stopped
// sending updates.
type TypingSweepJob struct {
	expirer TypingExpirer
	logger  *zap.Logger
	now     func() time.Time
}

func NewTypingSweepJob(expirer TypingExpirer, logger *zap.Logger) *TypingSweepJob {
	return &TypingSweepJob{
		expirer: expirer,
		logger:  logger,
		now:     time.Now,
	}
}

func (j *TypingSweepJob) Run() {
	if n := j.expirer.ExpireTyping(j.now()); n > 0 {
		j.logger.Debug("Expired typing indicators", zap.Int("count", n))
	}
}
