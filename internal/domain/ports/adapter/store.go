package adapter

import (
	"context"

	"heystak-spider/internal/domain/model"
)

// AdStore is the durable relational sink for scraped creatives.
type AdStore interface {
	// UpsertBrand inserts or refreshes the owner entity keyed by the
	// platform page id and returns its row id.
	UpsertBrand(ctx context.Context, pageID, name string) (string, error)
	InsertAd(ctx context.Context, brandID string, item *model.AdItem) error

	// MarkScrapeRequestDone closes out the external request that asked
	// for this page to be scraped. Best-effort.
	MarkScrapeRequestDone(ctx context.Context, pageID string) error
}

// RawStore persists one scrape batch as a single blob. Best-effort.
type RawStore interface {
	SaveBatch(ctx context.Context, jobID string, items []*model.AdItem) error
}

// Notifier emits best-effort operational notifications.
type Notifier interface {
	NotifyJobCompleted(ctx context.Context, job *model.Job) error
	NotifyJobFailed(ctx context.Context, job *model.Job) error
}
