package ai

import (
	"context"

	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.Analyzer = (*MultiAnalyzer)(nil)

// MultiAnalyzer tries the primary provider first and fails over to the
// fallback on error. Either may be nil.
type MultiAnalyzer struct {
	primary  adapter.Analyzer
	fallback adapter.Analyzer
	log      *zerolog.Logger
}

func NewMultiAnalyzer(primary, fallback adapter.Analyzer, log *zerolog.Logger) *MultiAnalyzer {
	return &MultiAnalyzer{primary: primary, fallback: fallback, log: log}
}

func (m *MultiAnalyzer) AnalyzeAd(ctx context.Context, item *model.AdItem, mode model.AnalysisMode) (*model.AdAnalysis, error) {
	if m.primary != nil {
		res, err := m.primary.AnalyzeAd(ctx, item, mode)
		if err == nil {
			return res, nil
		}
		if m.fallback == nil {
			return nil, err
		}
		m.log.Warn().Err(err).Str("ad", item.AdArchiveID).Msg("primary analyzer failed; trying fallback")
	}
	if m.fallback != nil {
		return m.fallback.AnalyzeAd(ctx, item, mode)
	}
	return nil, nil
}
