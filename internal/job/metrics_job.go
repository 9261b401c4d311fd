package job

import (
	"database/sql"

	"realtime-chat/internal/hub"
	"realtime-chat/internal/metrics"
)

// MetricsJob samples gauges that are cheaper to poll than to track on
// every change: hub sizes and the database pool.
type MetricsJob struct {
	presence *hub.Presence
	rooms    *hub.Rooms
	db       *sql.DB
	metrics  *metrics.Metrics
}

// NewMetricsJob creates the job. db may be nil.
func NewMetricsJob(presence *hub.Presence, rooms *hub.Rooms, db *sql.DB, m *metrics.Metrics) *MetricsJob {
	return &MetricsJob{
		presence: presence,
		rooms:    rooms,
		db:       db,
		metrics:  m,
	}
}

func (j *MetricsJob) Run() {
	j.metrics.SetHubStats(len(j.presence.OnlineUsers()), j.rooms.Count())
	if j.db != nil {
		j.metrics.UpdateDBStats(j.db.Stats())
	}
}
