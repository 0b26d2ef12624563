package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"heystak-spider/internal/domain"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
	"heystak-spider/internal/domain/ports/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ adapter.AdStore = (*adRepo)(nil)

type adRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewAdRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *adRepo {
	return &adRepo{
		pool: pool,
		tm:   tm,
	}
}

// UpsertBrand keys brands by the platform page id. A repeat upsert refreshes
// the display name and the last_scraped_at marker.
func (r *adRepo) UpsertBrand(ctx context.Context, pageID, name string) (string, error) {
	if pageID == "" {
		return "", domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO brands (id, page_id, name, created_at, last_scraped_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (page_id) DO UPDATE SET
  name = COALESCE(NULLIF(EXCLUDED.name, ''), brands.name),
  last_scraped_at = EXCLUDED.last_scraped_at
RETURNING id;`

	row, err := pickRow(ctx, r.pool, nil, q, uuid.NewString(), pageID, name, time.Now())
	if err != nil {
		return "", err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		return "", domain.ErrReadDatabaseRow
	}
	return id, nil
}

// InsertAd writes the creative and its media assets in one transaction.
// The raw payload and analysis land in jsonb columns.
func (r *adRepo) InsertAd(ctx context.Context, brandID string, item *model.AdItem) error {
	if brandID == "" || item == nil || item.AdArchiveID == "" {
		return domain.ErrInvalidArgument
	}

	var analysisJSON []byte
	if item.Analysis != nil {
		b, err := json.Marshal(item.Analysis)
		if err != nil {
			return err
		}
		analysisJSON = b
	}

	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const adQ = `
INSERT INTO ads (id, brand_id, ad_archive_id, body, title, cta_text, landing_url,
                 start_date, end_date, raw, analysis, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (ad_archive_id) DO UPDATE SET
  body = EXCLUDED.body,
  title = EXCLUDED.title,
  cta_text = EXCLUDED.cta_text,
  landing_url = EXCLUDED.landing_url,
  analysis = COALESCE(EXCLUDED.analysis, ads.analysis)
RETURNING id;`

		row, err := pickRow(ctx, r.pool, tx, adQ,
			uuid.NewString(), brandID, item.AdArchiveID, item.Body, item.Title,
			item.CTAText, item.LandingURL, item.StartDate, item.EndDate,
			[]byte(item.Raw), analysisJSON, time.Now())
		if err != nil {
			return err
		}
		var adID string
		if err := row.Scan(&adID); err != nil {
			return domain.ErrReadDatabaseRow
		}

		// Replace assets wholesale so re-scrapes never duplicate rows.
		if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM ad_assets WHERE ad_id = $1`, adID); err != nil {
			return err
		}
		const assetQ = `
INSERT INTO ad_assets (id, ad_id, kind, url)
VALUES ($1, $2, $3, $4);`
		for _, u := range item.ImageURLs {
			if _, err := execSQL(ctx, r.pool, tx, assetQ, uuid.NewString(), adID, "image", u); err != nil {
				return err
			}
		}
		for _, u := range item.VideoURLs {
			if _, err := execSQL(ctx, r.pool, tx, assetQ, uuid.NewString(), adID, "video", u); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkScrapeRequestDone closes any open scrape requests for the page.
func (r *adRepo) MarkScrapeRequestDone(ctx context.Context, pageID string) error {
	if pageID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE scrape_requests
SET status = 'done', completed_at = $2
WHERE page_id = $1 AND status <> 'done';`
	_, err := execSQL(ctx, r.pool, nil, q, pageID, time.Now())
	return err
}

// AdFilter narrows ListAds. Zero values mean "no constraint".
type AdFilter struct {
	BrandID   string
	PageID    string
	HasVideo  bool
	SinceDate string
	Limit     uint64
	Offset    uint64
}

// ListAds reads creatives back with an optional filter, newest first.
func (r *adRepo) ListAds(ctx context.Context, f AdFilter) ([]*model.AdItem, error) {
	qb := sq.Select(
		"a.ad_archive_id", "b.page_id", "b.name", "a.body", "a.title",
		"a.cta_text", "a.landing_url", "a.start_date", "a.end_date", "a.analysis",
	).
		From("ads a").
		Join("brands b ON b.id = a.brand_id").
		OrderBy("a.created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if f.BrandID != "" {
		qb = qb.Where(sq.Eq{"a.brand_id": f.BrandID})
	}
	if f.PageID != "" {
		qb = qb.Where(sq.Eq{"b.page_id": f.PageID})
	}
	if f.HasVideo {
		qb = qb.Where("EXISTS (SELECT 1 FROM ad_assets s WHERE s.ad_id = a.id AND s.kind = 'video')")
	}
	if f.SinceDate != "" {
		qb = qb.Where(sq.GtOrEq{"a.start_date": f.SinceDate})
	}
	if f.Limit > 0 {
		qb = qb.Limit(f.Limit)
	}
	if f.Offset > 0 {
		qb = qb.Offset(f.Offset)
	}

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}

	ex, err := executor(r.pool, nil)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AdItem
	for rows.Next() {
		var (
			item         model.AdItem
			analysisJSON []byte
		)
		if err := rows.Scan(
			&item.AdArchiveID, &item.PageID, &item.PageName, &item.Body, &item.Title,
			&item.CTAText, &item.LandingURL, &item.StartDate, &item.EndDate, &analysisJSON,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				break
			}
			return nil, domain.ErrReadDatabaseRow
		}
		if len(analysisJSON) > 0 {
			var an model.AdAnalysis
			if err := json.Unmarshal(analysisJSON, &an); err == nil {
				item.Analysis = &an
			}
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}
