package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/repository"
	"heystak-spider/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// JobRunner executes one claimed job's pipeline from scrape to persist.
type JobRunner interface {
	Run(ctx context.Context, job *model.Job) error
}

// Scheduler drives a bounded set of concurrently-executing job pipelines.
// Each claimed job occupies one slot from claim to terminal state; the
// loop itself never blocks on a pipeline.
type Scheduler struct {
	repo   repository.JobRepository
	runner JobRunner
	slots  int

	busyInterval time.Duration
	idleInterval time.Duration

	mu       sync.Mutex
	inflight map[string]chan struct{}

	log *zerolog.Logger
}

func NewScheduler(repo repository.JobRepository, runner JobRunner, slots int, busy, idle time.Duration, log *zerolog.Logger) *Scheduler {
	if slots <= 0 {
		slots = 1
	}
	if busy <= 0 {
		busy = 500 * time.Millisecond
	}
	if idle <= 0 {
		idle = 2 * time.Second
	}
	return &Scheduler{
		repo:         repo,
		runner:       runner,
		slots:        slots,
		busyInterval: busy,
		idleInterval: idle,
		inflight:     make(map[string]chan struct{}),
		log:          log,
	}
}

// Run loops until ctx is cancelled: reap finished pipelines, claim queued
// jobs into free slots, then sleep. The sleep shrinks while work is in
// flight and grows when idle so an empty queue does not hammer the store.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Int("slots", s.slots).Msg("scheduler started")
	for {
		s.reap()
		busy := s.claimAndStart(ctx)

		interval := s.idleInterval
		if busy {
			interval = s.busyInterval
		}
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			s.drain()
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// reap frees slots whose pipeline goroutines have finished.
func (s *Scheduler) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, done := range s.inflight {
		select {
		case <-done:
			delete(s.inflight, id)
		default:
		}
	}
}

// claimAndStart fills free slots with queued jobs and reports whether any
// slot is occupied afterwards.
func (s *Scheduler) claimAndStart(ctx context.Context) bool {
	s.mu.Lock()
	free := s.slots - len(s.inflight)
	s.mu.Unlock()

	for i := 0; i < free; i++ {
		id, err := s.repo.ClaimNextQueued(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("claim failed; store may be down")
			break
		}
		if id == "" {
			break
		}
		job, err := s.repo.Get(ctx, id)
		if err != nil || job == nil {
			// Deleted between enqueue and claim.
			s.log.Debug().Str("job_id", id).Msg("claimed id has no record; skipping")
			continue
		}
		if job.Status != model.JobStatusQueued {
			s.log.Debug().Str("job_id", id).Str("status", string(job.Status)).Msg("claimed job no longer queued; skipping")
			continue
		}
		if err := s.repo.SetRunning(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("job_id", id).Msg("could not mark running")
			continue
		}
		s.start(ctx, job)
	}

	s.mu.Lock()
	n := len(s.inflight)
	s.mu.Unlock()
	metrics.SetJobsInflight(n)
	return n > 0
}

// start launches the pipeline goroutine for one claimed job and tracks it
// in the in-flight set.
func (s *Scheduler) start(ctx context.Context, job *model.Job) {
	done := make(chan struct{})
	s.mu.Lock()
	s.inflight[job.ID] = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.execute(ctx, job)
	}()
}

// execute runs the pipeline with a panic guard; any escaped failure marks
// the job failed and releases the slot.
func (s *Scheduler) execute(ctx context.Context, job *model.Job) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("internal error: %v", rec)
			s.log.Error().Str("job_id", job.ID).Str("panic", msg).Msg("pipeline panicked")
			_ = s.repo.SetFailed(context.Background(), job.ID, msg)
			metrics.IncJob(string(model.JobStatusFailed))
		}
	}()

	s.log.Info().Str("job_id", job.ID).Str("url", job.URL).Msg("pipeline started")
	err := s.runner.Run(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Dur("duration", elapsed).Msg("pipeline failed")
		_ = s.repo.SetFailed(context.Background(), job.ID, err.Error())
		metrics.IncJob(string(model.JobStatusFailed))
		return
	}
	s.log.Info().Str("job_id", job.ID).Dur("duration", elapsed).Msg("pipeline finished")
	metrics.IncJob(string(model.JobStatusCompleted))
}

// drain waits for in-flight pipelines after the loop stops.
func (s *Scheduler) drain() {
	s.mu.Lock()
	pending := make([]chan struct{}, 0, len(s.inflight))
	for _, done := range s.inflight {
		pending = append(pending, done)
	}
	s.mu.Unlock()
	for _, done := range pending {
		<-done
	}
}

// Inflight returns the number of currently occupied slots.
func (s *Scheduler) Inflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
