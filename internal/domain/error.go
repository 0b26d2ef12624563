package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrStoreUnavailable   = errors.New("backing store unavailable")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotTerminal        = errors.New("job is not in a terminal state")
	ErrNotQueued          = errors.New("job is not queued")
	ErrNoAdsFound         = errors.New("No ads found")
	ErrUsageLimit         = errors.New("scrape provider monthly usage limit reached")
	ErrScrapeTimeout      = errors.New("scrape run did not finish in time")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
