package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"trendscope/internal/models"
	"trendscope/internal/services"
)

func TestCleanupEvictsOnlyExpired(t *testing.T) {
	store := services.NewSessionStore(10)

	active := store.Create("still running", "q", "", nil)
	done := store.Create("finished", "q", "", nil)
	phase := models.PhaseCompleted
	if err := store.Update(done.ID, services.Mutation{Phase: &phase}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Zero retention: terminal sessions expire as soon as they complete
	time.Sleep(10 * time.Millisecond)
	job := NewSessionCleanupJob(store, time.Minute, time.Hour, 0)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := store.Get(done.ID); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatal("expired terminal session survived the sweep")
	}
	if _, err := store.Get(active.ID); err != nil {
		t.Fatalf("active session was evicted: %v", err)
	}
}

func TestCleanupEvictsByAbsoluteAge(t *testing.T) {
	store := services.NewSessionStore(10)
	sess := store.Create("ancient", "q", "", nil)

	// Zero max age: everything is expired regardless of phase
	time.Sleep(10 * time.Millisecond)
	job := NewSessionCleanupJob(store, time.Minute, 0, time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := store.Get(sess.ID); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatal("over-age session survived the sweep")
	}
}

func TestCleanupReleasesSlots(t *testing.T) {
	admission := services.NewAdmissionController(2)
	store := services.NewSessionStore(2)

	slot, _ := admission.TryAdmit()
	store.Create("q", "q", "", slot)

	time.Sleep(10 * time.Millisecond)
	job := NewSessionCleanupJob(store, time.Minute, 0, 0)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if admission.Active() != 0 {
		t.Fatalf("eviction leaked the capacity slot: %d active", admission.Active())
	}
}

func TestCleanupFirstRunIsDelayed(t *testing.T) {
	job := NewSessionCleanupJob(services.NewSessionStore(1), 5*time.Minute, time.Hour, time.Hour)

	next := job.GetNextRunTime()
	if until := time.Until(next); until <= 0 || until > 2*time.Minute {
		t.Fatalf("unexpected first run delay: %v", until)
	}

	job.Run(context.Background())
	next = job.GetNextRunTime()
	if until := time.Until(next); until < 4*time.Minute {
		t.Fatalf("reschedule does not honor interval: %v", until)
	}
}

type countingJob struct {
	runs atomic.Int32
	next time.Duration
}

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func (j *countingJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.next)
}

func TestSchedulerRunsAndStops(t *testing.T) {
	scheduler := NewJobScheduler()
	job := &countingJob{next: 10 * time.Millisecond}
	scheduler.Register("counter", job)
	scheduler.Start()

	deadline := time.Now().Add(2 * time.Second)
	for job.runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if job.runs.Load() < 2 {
		t.Fatalf("job ran %d times, expected rescheduling", job.runs.Load())
	}

	scheduler.Stop()
	after := job.runs.Load()
	time.Sleep(50 * time.Millisecond)
	if job.runs.Load() != after {
		t.Fatal("job kept running after Stop")
	}
}

func TestSchedulerRunNow(t *testing.T) {
	scheduler := NewJobScheduler()
	job := &countingJob{next: time.Hour}
	scheduler.Register("counter", job)

	if err := scheduler.RunNow("counter"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if job.runs.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", job.runs.Load())
	}

	if err := scheduler.RunNow("missing"); err != nil {
		t.Fatalf("RunNow on unknown job should be a no-op, got %v", err)
	}
}
