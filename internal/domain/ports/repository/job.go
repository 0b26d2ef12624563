package repository

import (
	"context"

	"heystak-spider/internal/domain/model"
)

// JobRepository is durable CRUD over job records plus the FIFO work queue.
//
// Every method degrades gracefully when the backing store is unreachable:
// reads return domain.ErrStoreUnavailable, never panic. The scheduler keeps
// retrying rather than crashing.
type JobRepository interface {
	Create(ctx context.Context, spec model.JobSpec) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)

	// ClaimNextQueued atomically removes and returns one id from the head
	// of the queue, or "" when the queue is empty. The same id is never
	// handed to two concurrent callers.
	ClaimNextQueued(ctx context.Context) (string, error)

	Update(ctx context.Context, id string, patch model.JobPatch) error
	UpdateProgress(ctx context.Context, id string, patch model.ProgressPatch) error

	SetRunning(ctx context.Context, id string) error
	SetCompleted(ctx context.Context, id string, result *model.RunSummary, message string) error
	SetFailed(ctx context.Context, id string, errMsg string) error

	List(ctx context.Context, limit int) ([]*model.Job, error)
	Stats(ctx context.Context) (model.Stats, error)

	// Cancel removes a still-queued job from the queue and marks it
	// cancelled. Running jobs are not preemptible; cancelling one is a
	// no-op.
	Cancel(ctx context.Context, id string) error

	// Requeue resets a terminal job back to queued with zeroed progress.
	// Requeueing an already-queued job is a no-op; running jobs return
	// domain.ErrNotTerminal.
	Requeue(ctx context.Context, id string) error

	Delete(ctx context.Context, id string) error

	// ClearTerminal deletes all jobs in the given terminal status and
	// returns the count removed.
	ClearTerminal(ctx context.Context, status model.JobStatus) (int, error)
}
