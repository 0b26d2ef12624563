package model

import "encoding/json"

// AdItem is one creative scraped from the ad library. Raw holds the
// provider payload untouched for the raw-batch store.
type AdItem struct {
	AdArchiveID string          `json:"ad_archive_id"`
	PageID      string          `json:"page_id,omitempty"`
	PageName    string          `json:"page_name,omitempty"`
	Body        string          `json:"body,omitempty"`
	Title       string          `json:"title,omitempty"`
	CTAText     string          `json:"cta_text,omitempty"`
	LandingURL  string          `json:"landing_url,omitempty"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
	VideoURLs   []string        `json:"video_urls,omitempty"`
	StartDate   string          `json:"start_date,omitempty"`
	EndDate     string          `json:"end_date,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`

	Analysis *AdAnalysis `json:"analysis,omitempty"`
}

// HasVideo reports whether the creative carries at least one video asset.
func (a *AdItem) HasVideo() bool { return len(a.VideoURLs) > 0 }

// HasImage reports whether the creative carries at least one still image.
func (a *AdItem) HasImage() bool { return len(a.ImageURLs) > 0 }

// Brand is the owner entity an ad belongs to, keyed by the platform page id.
type Brand struct {
	ID     string `json:"id"`
	PageID string `json:"page_id"`
	Name   string `json:"name"`
}
