// Package scrape implements the ScrapeProvider port against the Apify
// actor-run REST API.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"heystak-spider/internal/domain"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
	"heystak-spider/internal/infra/metrics"
)

const (
	defaultBaseURL = "https://api.apify.com/v2"
	// Ad-library scraper actor (internal Apify ID).
	defaultActorID = "JJghSZmShuco4j9gJ"
)

var _ adapter.ScrapeProvider = (*ApifyProvider)(nil)

// ApifyProvider submits actor runs and reads their datasets.
type ApifyProvider struct {
	token    string
	actorID  string
	base     string
	client   *http.Client
	datasets datasetMap
}

// datasetMap remembers the default dataset id a run resolved to, so
// FetchResults doesn't need a second status round-trip.
type datasetMap struct {
	mu sync.Mutex
	m  map[string]string
}

func (d *datasetMap) store(runID, datasetID string) {
	if datasetID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.m == nil {
		d.m = make(map[string]string)
	}
	d.m[runID] = datasetID
}

func (d *datasetMap) load(runID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.m[runID]
	return id, ok
}

func NewApifyProvider(token, actorID string) (*ApifyProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("apify token not set")
	}
	if actorID == "" {
		actorID = defaultActorID
	}
	return &ApifyProvider{
		token:   token,
		actorID: actorID,
		base:    defaultBaseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Submit starts an actor run for one ad-library page and returns the run id.
func (p *ApifyProvider) Submit(ctx context.Context, req adapter.ScrapeRequest) (string, error) {
	url := fmt.Sprintf("%s/acts/%s/runs?token=%s", p.base, p.actorID, p.token)

	input := map[string]interface{}{
		"urls":  []map[string]string{{"url": req.URL}},
		"count": req.MaxItems,
	}
	if req.StartDate != "" {
		input["startDate"] = req.StartDate
	}
	if req.EndDate != "" {
		input["endDate"] = req.EndDate
	}
	body, _ := json.Marshal(input)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		if isUsageLimit(resp.StatusCode, respBody) {
			return "", domain.ErrUsageLimit
		}
		return "", fmt.Errorf("start actor run: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.ID, nil
}

// PollStatus reads one run-status observation.
func (p *ApifyProvider) PollStatus(ctx context.Context, runID string) (adapter.RunStatus, error) {
	url := fmt.Sprintf("%s/actor-runs/%s?token=%s", p.base, runID, p.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return adapter.RunStatus{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return adapter.RunStatus{}, err
	}
	defer resp.Body.Close()

	var status struct {
		Data struct {
			Status           string `json:"status"`
			StatusMessage    string `json:"statusMessage"`
			DefaultDatasetID string `json:"defaultDatasetId"`
			Stats            struct {
				ItemCount int `json:"itemCount"`
			} `json:"stats"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return adapter.RunStatus{}, err
	}

	out := adapter.RunStatus{
		ItemsProcessed: status.Data.Stats.ItemCount,
		Message:        status.Data.StatusMessage,
	}
	switch status.Data.Status {
	case "SUCCEEDED":
		out.State = adapter.RunStateSucceeded
		p.datasets.store(runID, status.Data.DefaultDatasetID)
	case "FAILED", "TIMED-OUT":
		out.State = adapter.RunStateFailed
	case "ABORTED", "ABORTING":
		out.State = adapter.RunStateAborted
	default:
		out.State = adapter.RunStateRunning
	}
	if out.State != adapter.RunStateRunning {
		metrics.IncScrapeRun(string(out.State))
	}
	return out, nil
}

// FetchResults downloads the run's default dataset and maps items into
// the domain shape, keeping the raw payload for the blob store.
func (p *ApifyProvider) FetchResults(ctx context.Context, runID string) ([]*model.AdItem, error) {
	datasetID, ok := p.datasets.load(runID)
	if !ok {
		// PollStatus was skipped; resolve the dataset id now.
		if _, err := p.PollStatus(ctx, runID); err != nil {
			return nil, err
		}
		datasetID, ok = p.datasets.load(runID)
		if !ok {
			return nil, fmt.Errorf("run %s has no dataset", runID)
		}
	}

	url := fmt.Sprintf("%s/datasets/%s/items?token=%s", p.base, datasetID, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	items := make([]*model.AdItem, 0, len(raw))
	for _, blob := range raw {
		items = append(items, mapItem(blob))
	}
	return items, nil
}

// mapItem pulls the fields we rely on out of one dataset record. Field
// names follow the ad-library actor's snapshot shape; anything we don't
// recognize stays available through Raw.
func mapItem(blob json.RawMessage) *model.AdItem {
	var rec struct {
		AdArchiveID string `json:"adArchiveID"`
		PageID      string `json:"pageID"`
		PageName    string `json:"pageName"`
		StartDate   string `json:"startDateFormatted"`
		EndDate     string `json:"endDateFormatted"`
		Snapshot    struct {
			Body struct {
				Text string `json:"text"`
			} `json:"body"`
			Title       string `json:"title"`
			CTAText     string `json:"cta_text"`
			LinkURL     string `json:"link_url"`
			Images      []struct {
				OriginalImageURL string `json:"original_image_url"`
				ResizedImageURL  string `json:"resized_image_url"`
			} `json:"images"`
			Videos []struct {
				VideoHDURL string `json:"video_hd_url"`
				VideoSDURL string `json:"video_sd_url"`
			} `json:"videos"`
		} `json:"snapshot"`
	}
	_ = json.Unmarshal(blob, &rec)

	item := &model.AdItem{
		AdArchiveID: rec.AdArchiveID,
		PageID:      rec.PageID,
		PageName:    rec.PageName,
		Body:        rec.Snapshot.Body.Text,
		Title:       rec.Snapshot.Title,
		CTAText:     rec.Snapshot.CTAText,
		LandingURL:  rec.Snapshot.LinkURL,
		StartDate:   rec.StartDate,
		EndDate:     rec.EndDate,
		Raw:         blob,
	}
	for _, img := range rec.Snapshot.Images {
		if u := firstNonEmpty(img.OriginalImageURL, img.ResizedImageURL); u != "" {
			item.ImageURLs = append(item.ImageURLs, u)
		}
	}
	for _, vid := range rec.Snapshot.Videos {
		if u := firstNonEmpty(vid.VideoHDURL, vid.VideoSDURL); u != "" {
			item.VideoURLs = append(item.VideoURLs, u)
		}
	}
	return item
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// isUsageLimit detects the provider's monthly usage hard-limit response.
func isUsageLimit(status int, body []byte) bool {
	if status != http.StatusPaymentRequired && status != http.StatusForbidden {
		return false
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "usage hard limit") || strings.Contains(lower, "monthly usage")
}
