package adapter

import (
	"context"

	"heystak-spider/internal/domain/model"
)

// RunState is the scrape provider's view of a submitted run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
	RunStateAborted   RunState = "aborted"
)

// ScrapeRequest describes one ad-library scrape.
type ScrapeRequest struct {
	URL       string
	MaxItems  int
	StartDate string
	EndDate   string
}

// RunStatus is a single poll observation of a provider run.
type RunStatus struct {
	State          RunState
	ItemsProcessed int
	Message        string
}

// ScrapeProvider is the external actor-run contract: submit work, poll it,
// fetch the dataset when it succeeds.
type ScrapeProvider interface {
	Submit(ctx context.Context, req ScrapeRequest) (runID string, err error)
	PollStatus(ctx context.Context, runID string) (RunStatus, error)
	FetchResults(ctx context.Context, runID string) ([]*model.AdItem, error)
}
