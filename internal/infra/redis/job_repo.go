package redis

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"heystak-spider/internal/domain"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/repository"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	jobsHashKey  = "spider:jobs"
	jobsQueueKey = "spider:jobs:queue"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo keeps job records as JSON fields of a single hash and the work
// queue as a list. LPush + RPop gives FIFO consumption; RPop is atomic so
// an id is claimed exactly once.
type JobRepo struct {
	client Client
	log    *zerolog.Logger
}

func NewJobRepo(client Client, log *zerolog.Logger) *JobRepo {
	return &JobRepo{client: client, log: log}
}

func newJobID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
}

func (r *JobRepo) Create(ctx context.Context, spec model.JobSpec) (*model.Job, error) {
	if spec.URL == "" || spec.MaxItems <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	job := model.NewJob(newJobID(), spec)
	if err := r.put(ctx, job); err != nil {
		return nil, err
	}
	if err := r.client.LPush(ctx, jobsQueueKey, job.ID); err != nil {
		r.log.Error().Err(err).Str("job_id", job.ID).Msg("enqueue failed")
		return nil, domain.ErrStoreUnavailable
	}
	return job, nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	raw, err := r.client.HGet(ctx, jobsHashKey, id)
	if err == Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrStoreUnavailable
	}
	var job model.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepo) ClaimNextQueued(ctx context.Context) (string, error) {
	id, err := r.client.RPop(ctx, jobsQueueKey)
	if err == Nil {
		return "", nil
	}
	if err != nil {
		return "", domain.ErrStoreUnavailable
	}
	return id, nil
}

func (r *JobRepo) Update(ctx context.Context, id string, patch model.JobPatch) error {
	return r.mutate(ctx, id, func(job *model.Job) error {
		job.Apply(patch)
		return nil
	})
}

func (r *JobRepo) UpdateProgress(ctx context.Context, id string, patch model.ProgressPatch) error {
	return r.mutate(ctx, id, func(job *model.Job) error {
		job.ApplyProgress(patch)
		return nil
	})
}

func (r *JobRepo) SetRunning(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(job *model.Job) error {
		if !job.Status.CanTransition(model.JobStatusRunning) {
			return domain.ErrNotQueued
		}
		now := time.Now().UTC()
		job.Status = model.JobStatusRunning
		job.StartedAt = &now
		return nil
	})
}

func (r *JobRepo) SetCompleted(ctx context.Context, id string, result *model.RunSummary, message string) error {
	return r.mutate(ctx, id, func(job *model.Job) error {
		now := time.Now().UTC()
		job.Status = model.JobStatusCompleted
		job.Result = result
		job.Message = message
		job.Error = ""
		job.CompletedAt = &now
		return nil
	})
}

func (r *JobRepo) SetFailed(ctx context.Context, id string, errMsg string) error {
	return r.mutate(ctx, id, func(job *model.Job) error {
		now := time.Now().UTC()
		job.Status = model.JobStatusFailed
		job.Error = errMsg
		job.CompletedAt = &now
		return nil
	})
}

func (r *JobRepo) List(ctx context.Context, limit int) ([]*model.Job, error) {
	all, err := r.client.HGetAll(ctx, jobsHashKey)
	if err != nil {
		return nil, domain.ErrStoreUnavailable
	}
	jobs := make([]*model.Job, 0, len(all))
	for id, raw := range all {
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			r.log.Warn().Str("job_id", id).Msg("skipping undecodable job record")
			continue
		}
		jobs = append(jobs, &job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Stats tolerates an empty or unreachable store by returning all-zero
// stats rather than failing.
func (r *JobRepo) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	all, err := r.client.HGetAll(ctx, jobsHashKey)
	if err != nil {
		return stats, nil
	}
	for _, raw := range all {
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		stats.Total++
		switch job.Status {
		case model.JobStatusQueued:
			stats.Queued++
		case model.JobStatusRunning:
			stats.Running++
		case model.JobStatusCompleted:
			stats.Completed++
		case model.JobStatusFailed:
			stats.Failed++
		case model.JobStatusCancelled:
			stats.Cancelled++
		}
		stats.Scraped += job.Progress.Scraped
		stats.Analyzed += job.Progress.Analyzed
		stats.Inserted += job.Progress.Inserted
	}
	return stats, nil
}

func (r *JobRepo) Cancel(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(job *model.Job) error {
		if job.Status != model.JobStatusQueued {
			// Running jobs are not preemptible; terminal jobs stay put.
			return nil
		}
		if err := r.client.LRem(ctx, jobsQueueKey, 0, id); err != nil {
			return domain.ErrStoreUnavailable
		}
		now := time.Now().UTC()
		job.Status = model.JobStatusCancelled
		job.CompletedAt = &now
		return nil
	})
}

func (r *JobRepo) Requeue(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(job *model.Job) error {
		if job.Status == model.JobStatusQueued {
			// Re-affirming queued state is a no-op.
			return nil
		}
		if !job.Status.Terminal() {
			return domain.ErrNotTerminal
		}
		job.Status = model.JobStatusQueued
		job.Progress = model.Progress{Total: job.MaxItems}
		job.Result = nil
		job.Error = ""
		job.Message = ""
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := r.client.LPush(ctx, jobsQueueKey, id); err != nil {
			return domain.ErrStoreUnavailable
		}
		return nil
	})
}

func (r *JobRepo) Delete(ctx context.Context, id string) error {
	if err := r.client.LRem(ctx, jobsQueueKey, 0, id); err != nil {
		return domain.ErrStoreUnavailable
	}
	if err := r.client.HDel(ctx, jobsHashKey, id); err != nil {
		return domain.ErrStoreUnavailable
	}
	return nil
}

func (r *JobRepo) ClearTerminal(ctx context.Context, status model.JobStatus) (int, error) {
	if !status.Terminal() {
		return 0, domain.ErrInvalidArgument
	}
	jobs, err := r.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, job := range jobs {
		if job.Status != status {
			continue
		}
		if err := r.Delete(ctx, job.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (r *JobRepo) put(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, jobsHashKey, job.ID, data); err != nil {
		return domain.ErrStoreUnavailable
	}
	return nil
}

// mutate is a read-modify-write merge over one job record. A job is owned
// by exactly one pipeline execution at a time, so the merge does not need
// compare-and-swap.
func (r *JobRepo) mutate(ctx context.Context, id string, fn func(*model.Job) error) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(job); err != nil {
		return err
	}
	return r.put(ctx, job)
}
