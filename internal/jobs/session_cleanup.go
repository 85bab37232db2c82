package jobs

import (
	"context"
	"log"
	"time"

	"trendscope/internal/services"
)

// SessionCleanupJob evicts sessions that outlived their welcome: any
// session older than maxAge, and terminal sessions past the retention
// window. Eviction is the same Delete path clients use, so each one
// releases its capacity slot.
type SessionCleanupJob struct {
	store     *services.SessionStore
	interval  time.Duration
	maxAge    time.Duration
	retention time.Duration
	lastRun   time.Time
}

// NewSessionCleanupJob creates the sweeper.
// interval: sweep cadence (e.g. 5 minutes)
// maxAge: absolute session age limit (e.g. 60 minutes)
// retention: how long completed/failed sessions stay pollable (e.g. 30 minutes)
func NewSessionCleanupJob(store *services.SessionStore, interval, maxAge, retention time.Duration) *SessionCleanupJob {
	return &SessionCleanupJob{
		store:     store,
		interval:  interval,
		maxAge:    maxAge,
		retention: retention,
	}
}

// Run evicts expired sessions. One failed eviction never stops the sweep.
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	expired := j.store.Expired(time.Now(), j.maxAge, j.retention)
	if len(expired) == 0 {
		return nil
	}

	evicted := 0
	for _, id := range expired {
		if ctx.Err() != nil {
			break
		}
		if err := j.store.Delete(id); err != nil {
			// Raced with an explicit DELETE; nothing left to free.
			log.Printf("⚠️ [CLEANUP] session %s already gone: %v", id, err)
			continue
		}
		evicted++
	}

	log.Printf("🧹 [CLEANUP] Evicted %d expired sessions (%d candidates)", evicted, len(expired))
	return nil
}

// GetNextRunTime returns when this job should next execute.
func (j *SessionCleanupJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		// First sweep shortly after startup
		return time.Now().Add(1 * time.Minute)
	}
	return j.lastRun.Add(j.interval)
}
