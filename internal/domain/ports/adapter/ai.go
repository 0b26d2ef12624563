package adapter

import (
	"context"

	"heystak-spider/internal/domain/model"
)

// Analyzer runs per-item creative analysis. Implementations must be safe
// to skip on error: a failed item never corrupts later items.
type Analyzer interface {
	AnalyzeAd(ctx context.Context, item *model.AdItem, mode model.AnalysisMode) (*model.AdAnalysis, error)
}

// Transcriber turns a media URL into a segment-level transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (*model.Transcription, error)
}
